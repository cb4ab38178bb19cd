package preflight

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// inotifyLimitPath is read on Linux. Tests replace it.
var inotifyLimitPath = "/proc/sys/fs/inotify/max_user_watches"

// CheckInotifyWatches warns when the inotify watch limit is low. Watchers
// that hit it fall back to polling, so this never fails the run.
func (c *Checker) CheckInotifyWatches() CheckResult {
	result := CheckResult{Name: "inotify_watches"}

	if runtime.GOOS != "linux" {
		result.Status = StatusPass
		result.Message = "not applicable on " + runtime.GOOS
		return result
	}

	data, err := os.ReadFile(inotifyLimitPath)
	if err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("cannot read limit: %v", err)
		return result
	}
	limit, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("unexpected limit %q", strings.TrimSpace(string(data)))
		return result
	}

	result.Message = fmt.Sprintf("%d (recommended: %d)", limit, MinInotifyWatches)
	if limit < MinInotifyWatches {
		result.Status = StatusWarn
		result.Details = "Run 'sudo sysctl fs.inotify.max_user_watches=524288' to raise it"
		return result
	}
	result.Status = StatusPass
	return result
}
