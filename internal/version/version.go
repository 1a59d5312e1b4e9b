// Package version reports build information injected at link time, e.g.
//
//	go build -ldflags "-X github.com/information-sharing-networks/ecommerce-api/internal/version.version=v1.2.0"
package version

import "runtime/debug"

var (
	version   = "dev"
	buildDate = "unknown"
	gitCommit = "unknown"
)

type Info struct {
	Version   string
	BuildDate string
	GitCommit string
}

// Get returns the build information. When the binary was built without ldflags
// the VCS revision recorded by the go toolchain is used for the commit, if present.
func Get() Info {
	info := Info{
		Version:   version,
		BuildDate: buildDate,
		GitCommit: gitCommit,
	}

	if info.GitCommit != "unknown" {
		return info
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				info.GitCommit = s.Value
			case "vcs.time":
				if info.BuildDate == "unknown" {
					info.BuildDate = s.Value
				}
			}
		}
	}
	return info
}
