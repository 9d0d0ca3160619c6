//go:build linux

package cmd

import (
	perf "github.com/hodgesds/perf-utils"
	"github.com/sirupsen/logrus"
)

// countInstructions runs f under a hardware instruction counter. When the
// counter cannot be opened f is run uncounted.
func countInstructions(f func() error) (err error) {
	var (
		ran    bool
		runErr error
	)
	pv, err := perf.CPUInstructions(func() error {
		ran = true
		runErr = f()
		return runErr
	})
	switch {
	case !ran:
		logrus.WithError(err).Warn("hardware counters unavailable")
		return f()
	case runErr != nil:
		return runErr
	case err != nil:
		logrus.WithError(err).Warn("hardware counters unavailable")
		return nil
	}
	logrus.WithFields(logrus.Fields{
		"instructions": pv.Value,
		"enabled":      pv.TimeEnabled,
		"running":      pv.TimeRunning,
	}).Info("hardware counters")
	return
}
