// Package version reports the silkconv build version.
package version

import (
	"fmt"
	"os/exec"
	"runtime"
	"runtime/debug"
	"strings"
)

// Set through -ldflags at release time.
var (
	Version = "0.3.0"
	Commit  = "unknown"
	Date    = "unknown"
)

// Resolve returns the version string. Development builds run from a git
// checkout that is not on a release tag get a describe suffix.
func Resolve() string {
	return resolveVersion(Version, runGit)
}

// Describe is the long form printed by the version command.
func Describe() string {
	return describe(Resolve(), Commit, Date, debug.ReadBuildInfo)
}

func describe(version, commit, date string, buildInfo func() (*debug.BuildInfo, bool)) string {
	if commit == "unknown" || date == "unknown" {
		vcsCommit, vcsTime := vcsStamp(buildInfo)
		if commit == "unknown" && vcsCommit != "" {
			commit = vcsCommit
		}
		if date == "unknown" && vcsTime != "" {
			date = vcsTime
		}
	}
	if len(commit) > 12 {
		commit = commit[:12]
	}
	return fmt.Sprintf("silkconv %s (commit %s, built %s, %s %s/%s)",
		version, commit, date, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

func vcsStamp(buildInfo func() (*debug.BuildInfo, bool)) (revision, stamp string) {
	info, ok := buildInfo()
	if !ok || info == nil {
		return "", ""
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.time":
			stamp = s.Value
		}
	}
	return revision, stamp
}

func resolveVersion(base string, git func(...string) (string, error)) string {
	if base == "" {
		base = "0.0.0"
	}

	suffix := gitSuffix(base, git)
	if suffix == "" {
		return base
	}
	return base + "-" + suffix
}

func gitSuffix(base string, git func(...string) (string, error)) string {
	if _, err := git("rev-parse", "--git-dir"); err != nil {
		return ""
	}
	if _, err := git("describe", "--tags", "--exact-match"); err == nil {
		return ""
	}

	desc, err := git("describe", "--tags", "--dirty", "--always")
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(desc, "v"+base+"-")
}

func runGit(args ...string) (string, error) {
	out, err := exec.Command("git", args...).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
