package config

// Set at link time, e.g.
//
//	go build -ldflags "-X telemetry/internal/config.version=$(git describe --tags) \
//	    -X telemetry/internal/config.commit=$(git rev-parse --short HEAD)" ./cmd/telemetry-drain
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

// LogAttrs returns the build metadata as slog key/value pairs, ready to be
// appended to a startup log line.
func (b BuildInfo) LogAttrs() []any {
	return []any{"version", b.Version, "commit", b.Commit, "build_time", b.BuildTime}
}
