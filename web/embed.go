// Package web embeds the dashboard page served at / by the API server.
//
// Usage in the API server:
//
//	import "github.com/seenimoa/panelstudy/web"
//	fsys := web.FS() // io/fs.FS rooted at static/
package web

import (
	"embed"
	"io/fs"
)

//go:embed static
var static embed.FS

// FS returns a filesystem rooted at the embedded static/ directory.
// This is ready to use with http.FileServerFS.
func FS() fs.FS {
	sub, err := fs.Sub(static, "static")
	if err != nil {
		panic("web.FS: " + err.Error())
	}
	return sub
}
