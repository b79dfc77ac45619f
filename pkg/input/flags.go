// Package input provides flag.Value helpers and input-source resolution
// shared by the apirisk commands.
package input

import (
	"fmt"
	"sort"
	"strings"
)

// StringSliceFlag implements flag.Value for repeated/comma-separated string flags
type StringSliceFlag []string

func (s *StringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *StringSliceFlag) Set(value string) error {
	// Split by comma and append each value
	for _, v := range strings.Split(value, ",") {
		v = strings.TrimSpace(v)
		if v != "" {
			*s = append(*s, v)
		}
	}
	return nil
}

// KeyValueFlag implements flag.Value for repeated KEY=VALUE flags,
// collected into a map. The last value wins on duplicate keys.
type KeyValueFlag map[string]string

func (kv *KeyValueFlag) String() string {
	if len(*kv) == 0 {
		return ""
	}
	parts := make([]string, 0, len(*kv))
	for k, v := range *kv {
		parts = append(parts, k+"="+v)
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

func (kv *KeyValueFlag) Set(value string) error {
	key, val, ok := strings.Cut(value, "=")
	key = strings.TrimSpace(key)
	val = strings.TrimSpace(val)
	if !ok || key == "" || val == "" {
		return fmt.Errorf("expected KEY=VALUE, got %q", value)
	}
	if *kv == nil {
		*kv = make(KeyValueFlag)
	}
	(*kv)[key] = val
	return nil
}
