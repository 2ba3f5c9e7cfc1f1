// Package category defines the archive categories and their dated folder names.
package category

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Category is an archive bucket. The numeric values are stable and persisted.
type Category int

const (
	Video Category = 1
	Nano  Category = 2
	Image Category = 3
)

// All lists every category in display order.
var All = []Category{Video, Nano, Image}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return c >= Video && c <= Image
}

// Suffix is the folder-name suffix ("Video", "Nano", "Image").
func (c Category) Suffix() string {
	switch c {
	case Video:
		return "Video"
	case Nano:
		return "Nano"
	case Image:
		return "Image"
	}
	return ""
}

// Key is the lowercase key used in stats and the folder cache.
func (c Category) Key() string {
	return strings.ToLower(c.Suffix())
}

func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return c.Suffix()
}

// Parse accepts a number ("1"), a key ("video") or a suffix ("Video").
func Parse(s string) (Category, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if c := Category(n); c.Valid() {
			return c, nil
		}
		return 0, fmt.Errorf("unknown category %q", s)
	}
	for _, c := range All {
		if strings.EqualFold(s, c.Key()) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown category %q", s)
}

// FolderName returns the folder for c on the local date of now, e.g. "260210-Video".
func FolderName(c Category, now time.Time) string {
	return now.Format("060102") + "-" + c.Suffix()
}
