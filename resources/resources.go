// Package resources embeds the default document templates, one directory
// per plan provider plus Common for the query-only page.
package resources

import "embed"

// FS holds <Directory>/template.html for every built-in provider.
//
//go:embed Common SqlServer Postgres Oracle SQLite MySQL
var FS embed.FS
