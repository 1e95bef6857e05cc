package overlaytest

import (
	"runtime"
	"testing"
	"time"
)

// WaitThisOrTimeout runs cb in its own goroutine and reports whether it
// completed before duration elapsed. Ported from the teacher's
// test/testing.go helper of the same name.
func WaitThisOrTimeout(cb func(), duration time.Duration) bool {
	done := make(chan struct{})
	go func() {
		cb()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(duration):
		return false
	}
}

// PrintStackTrace dumps every goroutine's stack via t.Errorf, for
// diagnosing a test that hit WaitThisOrTimeout's false branch.
func PrintStackTrace(t *testing.T) {
	buf := make([]byte, 1<<16)
	n := runtime.Stack(buf, true)
	t.Errorf("%s", buf[:n])
}
