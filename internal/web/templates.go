package web

import (
	"html/template"
	"os"
	"path/filepath"

	"metasnap.app/msc/internal/types"
)

var templateFuncs = template.FuncMap{
	"shortAddr": types.ShortAddress,
}

// parseTemplates finds and parses the HTML templates.
func parseTemplates() (*template.Template, error) {
	// Read from the filesystem rather than embedding so the markup can be
	// tweaked without rebuilding. The second path covers running from the
	// package directory, as tests do.
	candidates := []string{
		filepath.Join("internal", "web", "index.html"),
		"index.html",
	}

	path := candidates[0]
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			path = c
			break
		}
	}
	return template.New(filepath.Base(path)).Funcs(templateFuncs).ParseFiles(path)
}
