package version

import (
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Version information for lcs
const (
	Version = "0.1.0"

	// BuildDate is set during build time (use -ldflags)
	BuildDate = "development"

	// GitCommit is set during build time (use -ldflags)
	GitCommit = "unknown"
)

// Info returns version information as a string
func Info() string {
	return Version
}

// FullInfo returns detailed version information
func FullInfo() string {
	return fmt.Sprintf("lcs %s (commit: %s, built: %s, build id: %s)", Version, GitCommit, BuildDate, BuildID())
}

var (
	buildID     string
	buildIDOnce sync.Once
)

// BuildID returns a fingerprint of the running binary, derived from the Go
// version, the main module and the VCS settings recorded at build time.
func BuildID() string {
	buildIDOnce.Do(func() {
		buildID = computeBuildID()
	})
	return buildID
}

func computeBuildID() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Version + "-" + GitCommit
	}

	d := xxhash.New()
	_, _ = d.WriteString(info.GoVersion)
	_, _ = d.WriteString(info.Main.Path)
	_, _ = d.WriteString(info.Main.Version)
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision", "vcs.modified", "vcs.time":
			_, _ = d.WriteString(s.Key)
			_, _ = d.WriteString(s.Value)
		}
	}
	return fmt.Sprintf("%016x", d.Sum64())
}
