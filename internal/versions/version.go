// Package versions reports which build of the source registry server is running.
package versions

import (
	"runtime"
	"runtime/debug"
	"sync"
)

const (
	develVersion = "(devel)"
	unknownStr   = "unknown"
)

// Info identifies the running build
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Modified  bool   `json:"modified,omitempty"`
	GoVersion string `json:"go_version"`
}

// Current returns the build information embedded by the Go toolchain
var Current = sync.OnceValue(func() Info {
	bi, _ := debug.ReadBuildInfo()
	return fromBuildInfo(bi)
})

func fromBuildInfo(bi *debug.BuildInfo) Info {
	info := Info{
		Version:   develVersion,
		Commit:    unknownStr,
		GoVersion: runtime.Version(),
	}
	if bi == nil {
		return info
	}

	if bi.Main.Version != "" {
		info.Version = bi.Main.Version
	}
	for _, setting := range bi.Settings {
		switch setting.Key {
		case "vcs.revision":
			info.Commit = setting.Value
		case "vcs.modified":
			info.Modified = setting.Value == "true"
		}
	}

	// Builds outside a module version still name their commit
	if info.Version == develVersion && info.Commit != unknownStr {
		info.Version = "devel-" + shortCommit(info.Commit)
		if info.Modified {
			info.Version += "-dirty"
		}
	}
	return info
}

func shortCommit(commit string) string {
	if len(commit) > 12 {
		return commit[:12]
	}
	return commit
}
