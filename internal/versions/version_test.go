package versions

import (
	"runtime"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromBuildInfo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		buildInfo    *debug.BuildInfo
		wantVersion  string
		wantCommit   string
		wantModified bool
	}{
		{
			name:        "no build info",
			buildInfo:   nil,
			wantVersion: "(devel)",
			wantCommit:  "unknown",
		},
		{
			name: "tagged module version",
			buildInfo: &debug.BuildInfo{
				Main: debug.Module{Version: "v1.4.0"},
				Settings: []debug.BuildSetting{
					{Key: "vcs.revision", Value: "0123456789abcdef0123"},
					{Key: "vcs.modified", Value: "false"},
				},
			},
			wantVersion: "v1.4.0",
			wantCommit:  "0123456789abcdef0123",
		},
		{
			name: "local build names its commit",
			buildInfo: &debug.BuildInfo{
				Main: debug.Module{Version: "(devel)"},
				Settings: []debug.BuildSetting{
					{Key: "vcs.revision", Value: "0123456789abcdef0123"},
					{Key: "vcs.modified", Value: "true"},
				},
			},
			wantVersion:  "devel-0123456789ab-dirty",
			wantCommit:   "0123456789abcdef0123",
			wantModified: true,
		},
		{
			name:        "local build without vcs",
			buildInfo:   &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}},
			wantVersion: "(devel)",
			wantCommit:  "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			info := fromBuildInfo(tt.buildInfo)
			assert.Equal(t, tt.wantVersion, info.Version)
			assert.Equal(t, tt.wantCommit, info.Commit)
			assert.Equal(t, tt.wantModified, info.Modified)
			assert.Equal(t, runtime.Version(), info.GoVersion)
		})
	}
}

func TestCurrent(t *testing.T) {
	t.Parallel()

	assert.NotEmpty(t, Current().Version)
	assert.Equal(t, Current(), Current())
}
