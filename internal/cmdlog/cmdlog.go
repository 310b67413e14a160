package cmdlog

import (
	"time"

	"reputest/internal/logging"
	"reputest/internal/metrics"
)

// Run executes a CLI command body, counting it and logging how it ended.
func Run(cmd string, f func() error) error {
	metrics.IncCommandRun(cmd)
	start := time.Now()
	err := f()
	took := time.Since(start).Round(time.Millisecond).String()
	if err != nil {
		metrics.IncCommandError(cmd)
		logging.Error(cmd+"_error", map[string]any{"error": err.Error(), "took": took})
	} else {
		logging.Info(cmd+"_ok", map[string]any{"took": took})
	}
	return err
}
