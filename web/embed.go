// Package web serves the embedded single-page client.
package web

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"
)

//go:embed static/*
var staticFiles embed.FS

// FileSystem returns the embedded assets with the static folder as root.
func FileSystem() (fs.FS, error) {
	return fs.Sub(staticFiles, "static")
}

// Register serves index.html on / and the remaining assets under /static.
func Register(r *gin.Engine) {
	staticFS, err := FileSystem()
	if err != nil {
		// the embed pattern guarantees the directory exists
		panic(err)
	}

	index, err := fs.ReadFile(staticFS, "index.html")
	if err != nil {
		panic(err)
	}

	r.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", index)
	})
	r.StaticFS("/static", http.FS(staticFS))
}
