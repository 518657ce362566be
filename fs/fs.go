// Package appfs exposes the files compiled into the binaries: SQL migrations and email templates.
package appfs

import "embed"

//go:embed migrations all:assets
var FS embed.FS
