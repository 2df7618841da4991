package repository

import "testing"

func TestKeyLockStriping(t *testing.T) {
	s := NewClickHouseSignalStore(nil, "sigpulse.signals")

	if s.keyLock("quake A|2025-03-01T12:00:00Z") != s.keyLock("quake A|2025-03-01T12:00:00Z") {
		t.Fatalf("same key must map to the same stripe")
	}

	// distinct keys stay within the fixed stripe table
	stripes := make(map[interface{}]struct{})
	for _, k := range []string{"a", "b", "c", "outcome:1", "outcome:2", "quake B|2025-03-01T13:00:00Z"} {
		stripes[s.keyLock(k)] = struct{}{}
	}
	if len(stripes) > lockStripes {
		t.Fatalf("more stripes than the table holds: %d", len(stripes))
	}
}
