package database

import "embed"

// MigrationsFS embeds the SQL migrations so binaries can migrate without a
// working tree on disk.
//go:embed migrations
var MigrationsFS embed.FS
