// Package migrations holds the versioned schema and applies it with
// golang-migrate.
package migrations

import "embed"

// FS contains the versioned SQL files, one transaction per file.
//
//go:embed *.sql
var FS embed.FS

const (
	// BaseVersion creates the raw queue. It is the only version that can be
	// rolled back.
	BaseVersion uint = 1
	// LatestVersion is the newest schema version shipped in FS.
	LatestVersion uint = 3
)
