package duration

import (
	"testing"
	"time"
)

func TestServerTimeoutsPositive(t *testing.T) {
	for name, d := range map[string]time.Duration{
		"ServerReadHeader": ServerReadHeader,
		"ServerRead":       ServerRead,
		"ServerIdle":       ServerIdle,
		"ServerShutdown":   ServerShutdown,
		"SignalGrace":      SignalGrace,
	} {
		if d <= 0 {
			t.Errorf("%s = %v, want > 0", name, d)
		}
	}
}

func TestHeaderTimeoutTighterThanBody(t *testing.T) {
	// Header reads must time out before full body reads, otherwise the
	// slowloris protection is meaningless.
	if ServerReadHeader >= ServerRead {
		t.Errorf("ServerReadHeader (%v) >= ServerRead (%v)", ServerReadHeader, ServerRead)
	}
}
