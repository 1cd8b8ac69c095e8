// Package web embeds the chat page assets (dist/) and serves them under
// /static/.
package web

import (
	"embed"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
)

//go:embed all:dist
var distFS embed.FS

// StaticPrefix is the URL prefix the assets are served under.
const StaticPrefix = "/static/"

// StaticHandler returns an http.Handler that serves the embedded assets.
// Unknown paths and directories return 404.
func StaticHandler() http.Handler {
	subFS, err := fs.Sub(distFS, "dist")
	if err != nil {
		panic("web: failed to create sub filesystem: " + err.Error())
	}

	fileServer := http.StripPrefix(StaticPrefix, http.FileServer(http.FS(subFS)))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, StaticPrefix)
		info, err := fs.Stat(subFS, path)
		if path == "" || err != nil || info.IsDir() {
			slog.Debug("web: asset not found", "path", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		fileServer.ServeHTTP(w, r)
	})
}
