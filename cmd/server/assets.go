package main

import (
	"embed"
	"io/fs"
	"net/http"
)

// scoreboard page script and stylesheet, served under /assets/
//
//go:embed web/*.js web/*.css
var embeddedWeb embed.FS

func webHandler() (http.Handler, error) {
	sub, err := fs.Sub(embeddedWeb, "web")
	if err != nil {
		return nil, err
	}
	files := http.FileServer(http.FS(sub))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=300")
		files.ServeHTTP(w, r)
	}), nil
}
