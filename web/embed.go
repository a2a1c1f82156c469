// Package web embeds the static browser frontend for serving from the Go
// binary. The frontend is plain HTML/JS; it talks to the JSON API under
// /api/v1 and has no build step.
package web

import (
	"embed"
	"io/fs"
	"log"
)

//go:embed all:static
var dist embed.FS

// DistFS returns a filesystem rooted at the embedded static/ directory,
// ready for http.FileServerFS.
func DistFS() fs.FS {
	sub, err := fs.Sub(dist, "static")
	if err != nil {
		log.Fatalf("web.DistFS: %v", err)
	}
	return sub
}
