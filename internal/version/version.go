// Package version reports the build of the psuctl and psu-bridge binaries.
//
// Release builds stamp both values through the linker:
//
//	go build -ldflags="-X github.com/muurk/psulink/internal/version.Version=v0.3.0 \
//	                   -X github.com/muurk/psulink/internal/version.Commit=abc1234" ./cmd/...
//
// A plain 'go build' from a checkout fills them from the VCS stamp instead,
// giving versions such as "dev-20260301" and commits such as "abc1234-dirty".
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

var (
	// Version is the release tag, or a dev-<date> placeholder
	Version = ""
	// Commit is the short VCS revision
	Commit = ""
)

func init() {
	if Version == "" || Commit == "" {
		if info, ok := debug.ReadBuildInfo(); ok {
			v, c := fromSettings(info.Settings)
			if Version == "" {
				Version = v
			}
			if Commit == "" {
				Commit = c
			}
		}
	}
	if Version == "" {
		Version = "dev-" + time.Now().Format("20060102-150405")
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

// fromSettings derives a version and commit from the vcs.* build settings.
// Either result is empty when the build carries no VCS stamp.
func fromSettings(settings []debug.BuildSetting) (version, commit string) {
	var modified bool
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			commit = s.Value
			if len(commit) > 7 {
				commit = commit[:7]
			}
		case "vcs.modified":
			modified = s.Value == "true"
		case "vcs.time":
			if t, err := time.Parse(time.RFC3339, s.Value); err == nil {
				version = "dev-" + t.Format("20060102")
			}
		}
	}
	if commit != "" && modified {
		commit += "-dirty"
	}
	return version, commit
}

// Full is the string both binaries print for 'version'.
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}

// UserAgent identifies a psulink program, e.g. "psu-bridge/v0.3.0 (linux/arm64)".
// It is published in the bridge's mDNS TXT record and hello event.
func UserAgent(program string) string {
	return fmt.Sprintf("%s/%s (%s/%s)", program, Version, runtime.GOOS, runtime.GOARCH)
}
