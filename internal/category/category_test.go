package category

import (
	"testing"
	"time"
)

func TestFolderName(t *testing.T) {
	now := time.Date(2026, 2, 10, 23, 59, 0, 0, time.Local)

	tests := []struct {
		c    Category
		want string
	}{
		{Video, "260210-Video"},
		{Nano, "260210-Nano"},
		{Image, "260210-Image"},
	}
	for _, tt := range tests {
		if got := FolderName(tt.c, now); got != tt.want {
			t.Errorf("FolderName(%v) = %q, want %q", tt.c, got, tt.want)
		}
	}
}

func TestParse(t *testing.T) {
	tests := map[string]Category{
		"1":     Video,
		"2":     Nano,
		" 3 ":   Image,
		"video": Video,
		"Nano":  Nano,
		"IMAGE": Image,
	}
	for in, want := range tests {
		got, err := Parse(in)
		if err != nil {
			t.Errorf("Parse(%q) error = %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("Parse(%q) = %v, want %v", in, got, want)
		}
	}

	for _, bad := range []string{"0", "4", "gif", ""} {
		if _, err := Parse(bad); err == nil {
			t.Errorf("Parse(%q) expected error", bad)
		}
	}
}

func TestKeyAndString(t *testing.T) {
	if Video.Key() != "video" {
		t.Errorf("Video.Key() = %q", Video.Key())
	}
	if Category(9).String() != "Category(9)" {
		t.Errorf("String() = %q", Category(9).String())
	}
	if Category(9).Valid() {
		t.Error("Category(9).Valid() = true")
	}
}
