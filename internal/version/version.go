package version

// Build information set by ldflags
var (
	Version = "dev"     // -X github.com/panduza/pza/internal/version.Version={{.Version}}
	Commit  = "unknown" // -X github.com/panduza/pza/internal/version.Commit={{.Commit}}
	Date    = "unknown" // -X github.com/panduza/pza/internal/version.Date={{.Date}}
)
