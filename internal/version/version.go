package version

import (
	"fmt"
	"runtime/debug"
	"strings"
)

var (
	Version     = "unknown"
	Commit      = "unknown"
	FullVersion = ""
)

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		FullVersion = format(Version, Commit, false)
		return
	}

	Version, Commit = resolve(Version, Commit, info)
	FullVersion = format(Version, Commit, vcsModified(info))
}

// resolve fills linker-provided values that were left at "unknown" from the
// module build info.
func resolve(version, commit string, info *debug.BuildInfo) (string, string) {
	if version == "unknown" {
		buildVersion := strings.TrimPrefix(info.Main.Version, "v")
		if buildVersion != "" && buildVersion != "(devel)" {
			version = buildVersion
		}
	}

	if commit == "unknown" {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" && setting.Value != "" {
				commit = setting.Value
				break
			}
		}
	}

	return version, commit
}

func vcsModified(info *debug.BuildInfo) bool {
	for _, setting := range info.Settings {
		if setting.Key == "vcs.modified" {
			return setting.Value == "true"
		}
	}
	return false
}

func format(version, commit string, dirty bool) string {
	if len(commit) > 12 {
		commit = commit[:12]
	}
	full := fmt.Sprintf("%s-%s", version, commit)
	if dirty {
		full += "-dirty"
	}
	return full
}
