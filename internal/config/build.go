package config

// Linker-injected build metadata, for example:
//
//	go build -ldflags "-X skyview/internal/config.version=1.2.0 \
//	    -X skyview/internal/config.commit=$(git rev-parse --short HEAD) \
//	    -X skyview/internal/config.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// NewBuildInfo returns the linker-injected build metadata.
func NewBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	}
}
