// Package appfs embeds the files the binaries need at runtime: SQL migrations and email templates.
package appfs

import "embed"

// all: keeps the `_base` layouts, which plain directory embeds skip.
//
//go:embed migrations all:templates
var FS embed.FS
