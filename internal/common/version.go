package common

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Set at build time with -ldflags "-X .../internal/common.Version=...".
var (
	Version   = "dev"
	Build     = "unknown"
	GitCommit = "unknown"
)

// BuildInfo identifies the running binary. Served by /api/version.
type BuildInfo struct {
	Version string `json:"version"`
	Build   string `json:"build"`
	Commit  string `json:"commit"`
}

// String formats the build as "v (build: b, commit: c)".
func (b BuildInfo) String() string {
	return fmt.Sprintf("%s (build: %s, commit: %s)", b.Version, b.Build, b.Commit)
}

// CurrentBuild returns the build info of this binary.
func CurrentBuild() BuildInfo {
	return BuildInfo{Version: Version, Build: Build, Commit: GitCommit}
}

// GetVersion returns the semantic version string
func GetVersion() string {
	return Version
}

// LoadVersionFromFile fills in version fields still at their defaults from
// a .version file next to the binary. ldflags values always win.
func LoadVersionFromFile() {
	exe, err := os.Executable()
	if err != nil {
		return
	}
	f, err := os.Open(filepath.Join(filepath.Dir(exe), ".version"))
	if err != nil {
		return
	}
	defer f.Close()

	fromFile := parseVersionFile(f)
	if Version == "dev" && fromFile.Version != "" {
		Version = fromFile.Version
	}
	if Build == "unknown" && fromFile.Build != "" {
		Build = fromFile.Build
	}
	if GitCommit == "unknown" && fromFile.Commit != "" {
		GitCommit = fromFile.Commit
	}
}

// parseVersionFile reads "key: value" lines. Blank lines, comments and
// unknown keys are ignored.
func parseVersionFile(r io.Reader) BuildInfo {
	var info BuildInfo
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		val = strings.TrimSpace(val)
		switch strings.TrimSpace(key) {
		case "version":
			info.Version = val
		case "build":
			info.Build = val
		case "commit":
			info.Commit = val
		}
	}
	return info
}
