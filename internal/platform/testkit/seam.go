package testkit

import (
	"sync"
	"testing"
)

var serialMu sync.Mutex

// Swap replaces a package-level seam for the duration of the test and
// restores the original in cleanup. Pair with Serial when the seam is
// shared across parallel tests
func Swap[T any](t *testing.T, target *T, replacement T) {
	t.Helper()
	orig := *target
	*target = replacement
	t.Cleanup(func() { *target = orig })
}

// Serial holds a process-wide lock for the whole test so seam mutation
// cannot interleave with other tests
func Serial(t *testing.T) {
	t.Helper()
	serialMu.Lock()
	t.Cleanup(serialMu.Unlock)
}
