package web

import (
	"embed"
	"io/fs"
)

//go:embed templates static
var Assets embed.FS

func Templates() (fs.FS, error) {
	return fs.Sub(Assets, "templates")
}

func Static() (fs.FS, error) {
	return fs.Sub(Assets, "static")
}
