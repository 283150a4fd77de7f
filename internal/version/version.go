// Package version provides build information for the cyclenes emulator
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"slices"
	"strings"
)

var (
	// These will be set at build time via -ldflags
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// BuildInfo contains detailed build information
type BuildInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
	Arch      string `json:"arch"`
	Headless  bool   `json:"headless"`
}

// GetBuildInfo returns build information, filling the commit and time
// from the embedded VCS stamp when -ldflags did not set them.
func GetBuildInfo() BuildInfo {
	info := BuildInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS,
		Arch:      runtime.GOARCH,
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range bi.Settings {
			switch setting.Key {
			case "vcs.revision":
				if GitCommit == "unknown" {
					info.GitCommit = setting.Value
				}
			case "vcs.time":
				if BuildTime == "unknown" {
					info.BuildTime = setting.Value
				}
			case "-tags":
				info.Headless = hasTag(setting.Value, "headless")
			}
		}
	}
	return info
}

func hasTag(tags, want string) bool {
	return slices.Contains(strings.Split(tags, ","), want)
}

// GetVersion returns a short version string
func GetVersion() string {
	if Version == "dev" {
		info := GetBuildInfo()
		if len(info.GitCommit) >= 7 && info.GitCommit != "unknown" {
			return "dev-" + info.GitCommit[:7]
		}
	}
	return Version
}

// GetDetailedVersion returns a one-line version description
func GetDetailedVersion() string {
	info := GetBuildInfo()
	s := fmt.Sprintf("cyclenes %s", GetVersion())
	if info.BuildTime != "unknown" {
		s += fmt.Sprintf(" built %s", info.BuildTime)
	}
	s += fmt.Sprintf(" with %s for %s/%s", info.GoVersion, info.Platform, info.Arch)
	if info.Headless {
		s += " (headless)"
	}
	return s
}
