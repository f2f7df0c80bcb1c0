// Package buildinfo reports the version the binary was built from.
package buildinfo

import (
	"runtime"
	"runtime/debug"
)

// These vars are set at build time via ldflags:
// -X github.com/otherjamesbrown/backoffice/pkg/buildinfo.Version=v0.3.0
// -X github.com/otherjamesbrown/backoffice/pkg/buildinfo.Commit=b806fe7
// -X github.com/otherjamesbrown/backoffice/pkg/buildinfo.BuildTime=2026-10-01T10:30:00Z
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Info holds build information for a service.
type Info struct {
	ServiceName string `json:"service_name" yaml:"service_name"`
	Version     string `json:"version" yaml:"version"`
	Commit      string `json:"commit" yaml:"commit"`
	BuildTime   string `json:"build_time" yaml:"build_time"`
	GoVersion   string `json:"go_version" yaml:"go_version"`
}

// Get returns build info for the named service. When the commit was not set
// with ldflags, the VCS revision stamped by the Go toolchain is used.
func Get(serviceName string) Info {
	info := Info{
		ServiceName: serviceName,
		Version:     Version,
		Commit:      Commit,
		BuildTime:   BuildTime,
		GoVersion:   runtime.Version(),
	}
	if info.Commit == "unknown" {
		if rev, at := vcs(); rev != "" {
			info.Commit = rev
			if info.BuildTime == "unknown" && at != "" {
				info.BuildTime = at
			}
		}
	}
	return info
}

// String returns a one-liner like "v0.3.0 (b806fe7, 2026-10-01T10:30:00Z)".
func String() string {
	return Version + " (" + Commit + ", " + BuildTime + ")"
}

func vcs() (revision, at string) {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ""
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
			if len(revision) > 7 {
				revision = revision[:7]
			}
		case "vcs.time":
			at = s.Value
		}
	}
	return revision, at
}
