package bridge

import (
	"context"

	"github.com/rexliu/folio/pkg/core"
	"github.com/rexliu/folio/pkg/wire"
)

// LoadBook asks the viewer to open the book at url.
func (b *Bridge) LoadBook(ctx context.Context, url string) {
	b.invoker.Call(ctx, "loadBook", url)
}

// GetFontScale returns the text scale, 1.0 being the original size.
func (b *Bridge) GetFontScale(ctx context.Context) (float64, bool) {
	out, ok := b.invoker.Call(ctx, "getFontScale")
	if !ok {
		return 0, false
	}
	v, err := wire.Decode(out)
	if err != nil {
		b.logger.Warn("bridge: getFontScale", "result", out, "err", err)
		return 0, false
	}
	scale, ok := v.AsDouble()
	if !ok {
		b.logger.Warn("bridge: getFontScale", "result", out, "err", wire.ErrTypeMismatch)
	}
	return scale, ok
}

// SetFontScale sets the text scale.
func (b *Bridge) SetFontScale(ctx context.Context, scale float64) {
	b.invoker.Call(ctx, "setFontScale", scale)
}

// StepFontScale moves the text scale by delta steps of 25%, starting from
// the original size when the viewer does not report one. It returns the
// scale that was set.
func (b *Bridge) StepFontScale(ctx context.Context, delta int) float64 {
	current, ok := b.GetFontScale(ctx)
	if !ok {
		current = core.DefaultFontScale
	}
	scale := core.StepFontScale(current, delta)
	b.SetFontScale(ctx, scale)
	return scale
}

// GetBackgroundColor returns the page background.
func (b *Bridge) GetBackgroundColor(ctx context.Context) (core.Color, bool) {
	arr, ok := b.queryArray(ctx, "getBackgroundColor")
	if !ok {
		return core.Color{}, false
	}
	c, err := core.ParseColor(arr)
	if err != nil {
		b.logger.Warn("bridge: getBackgroundColor", "err", err)
		return core.Color{}, false
	}
	return c, true
}

// SetBackgroundColor sets the page background.
func (b *Bridge) SetBackgroundColor(ctx context.Context, c core.Color) {
	b.invoker.Call(ctx, "setBackgroundColor", c)
}

// GetAvailableLayoutModes returns the modes the current book supports.
// Unknown modes are skipped; no known mode at all is reported as absent.
func (b *Bridge) GetAvailableLayoutModes(ctx context.Context) ([]core.LayoutMode, bool) {
	arr, ok := b.queryArray(ctx, "getAvailableLayoutModes")
	if !ok {
		return nil, false
	}
	modes := make([]core.LayoutMode, 0, len(arr))
	for i := range arr {
		raw, err := arr.GetString(i)
		if err != nil {
			b.logger.Warn("bridge: getAvailableLayoutModes", "err", err)
			return nil, false
		}
		mode, known := core.ParseLayoutMode(raw)
		if !known {
			b.logger.Warn("bridge: getAvailableLayoutModes unknown layout mode", "mode", raw)
			continue
		}
		modes = append(modes, mode)
	}
	if len(modes) == 0 {
		return nil, false
	}
	return modes, true
}

// GetLayoutMode returns the current layout mode.
func (b *Bridge) GetLayoutMode(ctx context.Context) (core.LayoutMode, bool) {
	out, ok := b.invoker.Call(ctx, "getLayoutMode")
	if !ok {
		return "", false
	}
	mode, known := core.ParseLayoutMode(out)
	if !known {
		b.logger.Warn("bridge: getLayoutMode unknown layout mode", "mode", out)
		return "", false
	}
	return mode, true
}

// SetLayoutMode switches the layout mode.
func (b *Bridge) SetLayoutMode(ctx context.Context, mode core.LayoutMode) {
	b.invoker.Call(ctx, "setLayoutMode", string(mode))
}

// GetCurrentPosition returns the reader location.
func (b *Bridge) GetCurrentPosition(ctx context.Context) (core.Position, bool) {
	arr, ok := b.queryArray(ctx, "getCurrentPosition")
	if !ok {
		return core.Position{}, false
	}
	pos, err := core.ParsePosition(arr)
	if err != nil {
		b.logger.Warn("bridge: getCurrentPosition", "err", err)
		return core.Position{}, false
	}
	return pos, true
}

// GotoLink navigates to a link relative to the book base url.
func (b *Bridge) GotoLink(ctx context.Context, link string) {
	b.invoker.Call(ctx, "gotoLink", link)
}

// GotoPosition navigates to a CFI.
func (b *Bridge) GotoPosition(ctx context.Context, cfi string) {
	b.invoker.Call(ctx, "gotoPosition", cfi)
}

// ToggleBookmark adds or recolors the bookmark on the current page, or
// removes it when color is nil. The viewer answers through the bookmark
// calls.
func (b *Bridge) ToggleBookmark(ctx context.Context, color *core.Color) {
	b.invoker.Call(ctx, "toggleBookmark", color)
}

// SearchText marks matches of keyword, case-insensitively. A nil keyword
// leaves search mode. Matches arrive through onSearchResult.
func (b *Bridge) SearchText(ctx context.Context, keyword *string) {
	b.invoker.Call(ctx, "searchText", keyword)
}

func (b *Bridge) queryArray(ctx context.Context, method string) (wire.Array, bool) {
	out, ok := b.invoker.Query(ctx, method)
	if !ok {
		return nil, false
	}
	arr, err := wire.DecodeArray(out)
	if err != nil {
		b.logger.Warn("bridge: "+method, "result", out, "err", err)
		return nil, false
	}
	return arr, true
}
