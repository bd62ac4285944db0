package proxy

import (
	"errors"
	"path"
	"strings"

	"github.com/charlesng35/mediacache/internal/models"
)

// ErrInvalidPath rejects logical paths that are empty or escape the namespace.
var ErrInvalidPath = errors.New("proxy: invalid media path")

var videoExtensions = map[string]struct{}{
	".mp4":  {},
	".webm": {},
	".mov":  {},
	".avi":  {},
}

// CategoryForPath classifies by extension. Unknown extensions are images.
func CategoryForPath(p string) models.Category {
	if _, ok := videoExtensions[strings.ToLower(path.Ext(p))]; ok {
		return models.CategoryVideo
	}
	return models.CategoryImage
}

// CacheKey namespaces the logical path by category.
func CacheKey(category models.Category, p string) string {
	return string(category) + "/" + p
}

// OriginPath maps the flattened logical path back to the origin layout.
func OriginPath(p string) string {
	return "/" + strings.ReplaceAll(p, "-", "/")
}

// NormalizePath strips the route prefix slash and rejects traversal segments.
func NormalizePath(raw string) (string, error) {
	p := strings.TrimLeft(raw, "/")
	if strings.TrimSpace(p) == "" || strings.Contains(p, "\\") {
		return "", ErrInvalidPath
	}
	for _, segment := range strings.Split(p, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return "", ErrInvalidPath
		}
	}
	return p, nil
}
