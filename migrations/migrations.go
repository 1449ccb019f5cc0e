// Package migrations embeds the SQL schema migrations, one directory per
// database driver, in golang-migrate's {version}_{name}.{up|down}.sql layout.
package migrations

import "embed"

// FS holds postgres/*.sql and mysql/*.sql
//
//go:embed postgres/*.sql mysql/*.sql
var FS embed.FS
