package core

import (
	"errors"
	"fmt"
	"math"
	"net/url"

	"github.com/rexliu/folio/pkg/wire"
)

var (
	// ErrInvalidColor indicates a channel outside 0-255.
	ErrInvalidColor = errors.New("invalid color")
	// ErrInvalidFontScale indicates a non-finite or out of range scale.
	ErrInvalidFontScale = errors.New("invalid font scale")
	// ErrInvalidLayoutMode indicates a mode outside the known set.
	ErrInvalidLayoutMode = errors.New("invalid layout mode")
	// ErrInvalidTOC indicates a table of contents entry that is not an object.
	ErrInvalidTOC = errors.New("invalid table of contents")
	// ErrInvalidURL indicates URL validation failure.
	ErrInvalidURL = errors.New("invalid url")
)

const untitledEntry = "[unknown]"

// ValidateColor checks every channel is in range.
func ValidateColor(c Color) error {
	for _, ch := range []int{c.R, c.G, c.B} {
		if ch < 0 || ch > 255 {
			return fmt.Errorf("%w: %s", ErrInvalidColor, c)
		}
	}
	return nil
}

// ValidateFontScale rejects values the renderer cannot apply.
func ValidateFontScale(scale float64) error {
	if math.IsNaN(scale) || math.IsInf(scale, 0) || scale < MinFontScale || scale > MaxFontScale {
		return fmt.Errorf("%w: %v", ErrInvalidFontScale, scale)
	}
	return nil
}

// ValidateLayoutMode rejects modes outside the enumeration.
func ValidateLayoutMode(mode LayoutMode) error {
	if _, ok := ParseLayoutMode(string(mode)); !ok {
		return fmt.Errorf("%w: %q", ErrInvalidLayoutMode, mode)
	}
	return nil
}

// ValidateBookURL checks the base URL of a book before it is handed to
// the renderer.
func ValidateBookURL(raw string) error {
	if raw == "" {
		return ErrInvalidURL
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return ErrInvalidURL
	}
	switch parsed.Scheme {
	case "http", "https", "file":
		return nil
	}
	return ErrInvalidURL
}

// ParseTOC converts the renderer's entry list. Missing titles become
// "[unknown]", missing or negative levels become 0, and a missing link
// marks a heading.
func ParseTOC(entries wire.Array) ([]TOCEntry, error) {
	toc := make([]TOCEntry, 0, len(entries))
	for i := range entries {
		item, err := entries.GetObject(i)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrInvalidTOC, i, err)
		}
		entry := TOCEntry{Title: untitledEntry}
		if title, ok := item.OptString("title"); ok {
			entry.Title = title
		}
		if level, ok := item.OptInt("level"); ok && level > 0 {
			entry.Level = int(level)
		}
		if link, ok := item.OptString("link"); ok {
			entry.Link = &link
		}
		toc = append(toc, entry)
	}
	return toc, nil
}

// ParseColor reads an [r, g, b] array.
func ParseColor(arr wire.Array) (Color, error) {
	r, err := arr.GetInt(0)
	if err != nil {
		return Color{}, err
	}
	g, err := arr.GetInt(1)
	if err != nil {
		return Color{}, err
	}
	b, err := arr.GetInt(2)
	if err != nil {
		return Color{}, err
	}
	c := Color{R: int(r), G: int(g), B: int(b)}
	return c, ValidateColor(c)
}

// ParsePosition reads a [chapter, cfi, current, total] array.
func ParsePosition(arr wire.Array) (Position, error) {
	chapter, err := arr.GetString(0)
	if err != nil {
		return Position{}, err
	}
	cfi, err := arr.GetString(1)
	if err != nil {
		return Position{}, err
	}
	current, err := arr.GetInt(2)
	if err != nil {
		return Position{}, err
	}
	total, err := arr.GetInt(3)
	if err != nil {
		return Position{}, err
	}
	return Position{Chapter: chapter, CFI: cfi, Current: int(current), Total: int(total)}, nil
}
