package store

// Config aggregates per archive configuration
type Config struct {
	AppName string

	Frames ArchiveConfig
	Clips  ArchiveConfig
}

// ArchiveConfig configures one bounded disk archive
type ArchiveConfig struct {
	Enabled bool

	// Dir is the directory holding the archive files, created on open
	Dir string

	// Capacity caps how many files the archive retains
	// inserting past the cap evicts the oldest file before returning
	Capacity int

	// BaseURL is the public prefix used to build file URLs
	// empty means the archive serves no URLs
	BaseURL string
}
