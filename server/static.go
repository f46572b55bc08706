package server

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"
)

//go:embed all:static
var staticFS embed.FS

var indexTemplate = template.Must(template.ParseFS(staticFS, "static/index.html"))

// staticFileServer serves the embedded page assets below /static/.
func staticFileServer() http.Handler {
	assets, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic("failed to get static subdirectory: " + err.Error())
	}

	return http.StripPrefix("/static/", http.FileServer(http.FS(assets)))
}
