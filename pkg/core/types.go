package core

import (
	"encoding/json"
	"fmt"
)

// LayoutMode enumerates page layouts the renderer may offer.
type LayoutMode string

const (
	LayoutSingle     LayoutMode = "single"
	LayoutSideBySide LayoutMode = "side_by_side"
	LayoutContinuous LayoutMode = "continuous"
)

// LayoutModes lists every known mode in display order.
var LayoutModes = []LayoutMode{LayoutSingle, LayoutSideBySide, LayoutContinuous}

// ParseLayoutMode maps a renderer string onto a known mode.
func ParseLayoutMode(raw string) (LayoutMode, bool) {
	for _, mode := range LayoutModes {
		if string(mode) == raw {
			return mode, true
		}
	}
	return "", false
}

// TOCEntry is one line of the table of contents. A nil Link marks a
// heading that cannot be navigated to.
type TOCEntry struct {
	Title string  `json:"title"`
	Level int     `json:"level"`
	Link  *string `json:"link,omitempty"`
}

// Position is the reader location reported by the renderer.
type Position struct {
	Chapter string `json:"chapter"`
	CFI     string `json:"cfi"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
}

// PageState is the last page change the renderer reported.
type PageState struct {
	Chapter    string `json:"chapter"`
	CFI        string `json:"cfi"`
	Percentage int    `json:"percentage"`
}

// ViewFrame is the content offset and zoom of the renderer view.
type ViewFrame struct {
	OffsetX float64 `json:"offsetX"`
	OffsetY float64 `json:"offsetY"`
	Scale   float64 `json:"scale"`
}

// Color is an RGB triple, each channel 0-255. It travels as [r, g, b].
type Color struct {
	R, G, B int
}

// RGB builds a Color.
func RGB(r, g, b int) Color {
	return Color{R: r, G: g, B: b}
}

// MarshalJSON encodes c as [r, g, b].
func (c Color) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]int{c.R, c.G, c.B})
}

// UnmarshalJSON decodes [r, g, b].
func (c *Color) UnmarshalJSON(data []byte) error {
	var rgb [3]int
	if err := json.Unmarshal(data, &rgb); err != nil {
		return err
	}
	*c = Color{R: rgb[0], G: rgb[1], B: rgb[2]}
	return ValidateColor(*c)
}

func (c Color) String() string {
	return fmt.Sprintf("[%d, %d, %d]", c.R, c.G, c.B)
}
