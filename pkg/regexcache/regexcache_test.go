package regexcache

import (
	"fmt"
	"testing"

	"github.com/apirisk/apirisk/pkg/testutil"
)

func TestGetValidPattern(t *testing.T) {
	Clear()
	re, err := Get(`^/admin(/.*)?$`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !re.MatchString("/admin/users") {
		t.Error("expected match for /admin/users")
	}
	if re.MatchString("/api/v1/users") {
		t.Error("unexpected match for /api/v1/users")
	}
}

func TestGetInvalidPattern(t *testing.T) {
	Clear()
	if _, err := Get(`[unterminated`); err == nil {
		t.Fatal("expected error for invalid pattern")
	}
	if Size() != 0 {
		t.Errorf("invalid pattern was cached, Size() = %d", Size())
	}
}

func TestGetReturnsCachedInstance(t *testing.T) {
	Clear()
	pattern := `/v\d+/internal/`

	re1, _ := Get(pattern)
	re2, _ := Get(pattern)

	if re1 != re2 {
		t.Error("expected the same regexp instance from the cache")
	}
	if Size() != 1 {
		t.Errorf("Size() = %d; want 1", Size())
	}
}

func TestMustGetPanicsOnInvalid(t *testing.T) {
	Clear()
	defer func() {
		if recover() == nil {
			t.Error("expected panic for invalid pattern")
		}
	}()
	MustGet(`(`)
}

func TestConcurrentGet(t *testing.T) {
	Clear()

	testutil.RunConcurrently(50, func(i int) {
		pattern := fmt.Sprintf(`/tenant/%d/.*`, i%5)
		if _, err := Get(pattern); err != nil {
			t.Errorf("Get failed: %v", err)
		}
	})

	if Size() != 5 {
		t.Errorf("Size() = %d; want 5 distinct patterns", Size())
	}
}
