package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveFromBuildInfo(t *testing.T) {
	info := &debug.BuildInfo{
		Main: debug.Module{Version: "v1.4.0"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef0123"},
			{Key: "vcs.modified", Value: "true"},
		},
	}

	version, commit := resolve("unknown", "unknown", info)
	require.Equal(t, "1.4.0", version)
	require.Equal(t, "0123456789abcdef0123", commit)
	require.True(t, vcsModified(info))
	require.Equal(t, "1.4.0-0123456789ab-dirty", format(version, commit, true))
}

func TestResolveKeepsLinkerValues(t *testing.T) {
	info := &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}}

	version, commit := resolve("2.0.0", "abc", info)
	require.Equal(t, "2.0.0", version)
	require.Equal(t, "abc", commit)
	require.Equal(t, "2.0.0-abc", format(version, commit, vcsModified(info)))
}
