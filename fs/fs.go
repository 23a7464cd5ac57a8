// Package appfs embeds the files the binaries need at runtime.
package appfs

import "embed"

// FS holds the SQL migrations (migrations/) and the email templates (templates/email/).
//go:embed migrations/*.sql templates/email/*
var FS embed.FS
