package engine

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain ensures background index builders and the filesystem watcher
// don't leak goroutines past Shutdown.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("sync.runtime_Semacquire"),
	)
}
