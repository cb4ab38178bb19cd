// Package version provides build and version information for fsledger.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

// Version is the fsledger release. Set via ldflags at build time:
// -X github.com/Aman-CERP/fsledger/pkg/version.Version=$(VERSION)
var Version = "dev"

// Build information set via ldflags at build time. When they are left at
// "unknown", GetInfo falls back to the VCS stamp the Go toolchain embeds.
var (
	Commit = "unknown"
	Date   = "unknown"
)

// BuildInfo is structured version information for JSON output.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	Modified  bool   `json:"modified,omitempty"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

var (
	infoOnce sync.Once
	info     BuildInfo
)

// GetInfo returns structured version information.
func GetInfo() BuildInfo {
	infoOnce.Do(func() {
		info = BuildInfo{
			Version:   Version,
			Commit:    Commit,
			Date:      Date,
			GoVersion: runtime.Version(),
			OS:        runtime.GOOS,
			Arch:      runtime.GOARCH,
		}
		if bi, ok := debug.ReadBuildInfo(); ok {
			applyVCS(&info, bi.Settings)
		}
	})
	return info
}

// applyVCS fills commit and date from vcs.* build settings when ldflags did
// not set them.
func applyVCS(b *BuildInfo, settings []debug.BuildSetting) {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if b.Commit == "unknown" && s.Value != "" {
				b.Commit = s.Value
				if len(b.Commit) > 12 {
					b.Commit = b.Commit[:12]
				}
			}
		case "vcs.time":
			if b.Date == "unknown" && s.Value != "" {
				b.Date = s.Value
			}
		case "vcs.modified":
			b.Modified = s.Value == "true"
		}
	}
}

// String returns a one-line version string with all build info.
func String() string {
	b := GetInfo()
	commit := b.Commit
	if b.Modified {
		commit += "-dirty"
	}
	return fmt.Sprintf("fsledger %s (commit: %s, built: %s, go: %s, %s/%s)",
		b.Version, commit, b.Date, b.GoVersion, b.OS, b.Arch)
}

// Short returns just the version string.
func Short() string {
	return Version
}
