package models

import (
	"fmt"
	"strings"
)

// Category partitions cached objects for capacity accounting.
type Category string

const (
	CategoryImage Category = "image"
	CategoryVideo Category = "video"
)

// Categories lists every category in a stable order.
var Categories = []Category{CategoryImage, CategoryVideo}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryImage, CategoryVideo:
		return true
	default:
		return false
	}
}

func (c Category) String() string {
	return string(c)
}

// ParseCategory converts user input into a Category.
func ParseCategory(raw string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(raw)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", raw)
	}
	return c, nil
}
