// Package resources embeds the default menu definition files that are
// copied into the data directory on first start and on force reload.
package resources

import (
	"embed"
	"io/fs"
	"path"
)

//go:embed core_menus.csv menus
var defaults embed.FS

// DefaultFiles returns every embedded default file keyed by its relative
// path inside the data directory.
func DefaultFiles() map[string][]byte {
	files := make(map[string][]byte)

	data, err := defaults.ReadFile("core_menus.csv")
	if err == nil {
		files["core_menus.csv"] = data
	}

	entries, err := defaults.ReadDir("menus")
	if err != nil {
		return files
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := fs.ReadFile(defaults, path.Join("menus", e.Name()))
		if err != nil {
			continue
		}
		files[path.Join("menus", e.Name())] = data
	}
	return files
}
