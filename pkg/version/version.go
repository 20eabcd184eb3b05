// Package version provides build and version information for synapsense.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// ProgramName is the binary name used in version strings.
const ProgramName = "synapsense"

// Version is set via ldflags at build time:
//
//	-X github.com/synapsense/synapsense/pkg/version.Version=$(VERSION)
//
// When unset, binaries installed with `go install module@version` report the
// module version recorded in their build info.
var Version = "dev"

// Build information set via ldflags at build time.
var (
	// Commit is the git commit hash.
	Commit = "unknown"

	// Date is the build date in RFC3339 format.
	Date = "unknown"

	// GoVersion is the Go version used to build the binary (set at runtime).
	GoVersion = runtime.Version()
)

func init() {
	if Version != "dev" {
		return
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		Version, Commit, Date = fromBuildInfo(info, Version, Commit, Date)
	}
}

// fromBuildInfo fills version fields from Go build metadata, keeping the
// given values where the metadata has nothing better.
func fromBuildInfo(info *debug.BuildInfo, version, commit, date string) (string, string, string) {
	if v := info.Main.Version; v != "" && v != "(devel)" {
		version = v
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if commit == "unknown" && len(s.Value) >= 7 {
				commit = s.Value[:7]
			}
		case "vcs.time":
			if date == "unknown" {
				date = s.Value
			}
		}
	}
	return version, commit, date
}

// BuildInfo is structured version information for JSON output.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// String returns a formatted version string with all build info.
func String() string {
	return fmt.Sprintf("%s %s (commit: %s, built: %s, go: %s)",
		ProgramName, Version, Commit, Date, GoVersion)
}

// Short returns just the version string.
func Short() string {
	return Version
}

// GetInfo returns structured version information.
func GetInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// Full returns multi-line version and build information.
func Full() string {
	return fmt.Sprintf(
		"%s version %s\n  git commit: %s\n  build time: %s\n  go version: %s\n  platform: %s/%s",
		ProgramName,
		Version,
		Commit,
		Date,
		GoVersion,
		runtime.GOOS,
		runtime.GOARCH,
	)
}
