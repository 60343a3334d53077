package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rexliu/folio/pkg/annotations"
	"github.com/rexliu/folio/pkg/core"
	"github.com/rexliu/folio/pkg/ipc"
)

func (d *daemon) registerHandlers(srv *ipc.Server) {
	srv.Register("ping", pingHandler(d))
	srv.Register("get_state", d.handleGetState)
	srv.Register("load_book", d.handleLoadBook)
	srv.Register("get_font_scale", d.handleGetFontScale)
	srv.Register("set_font_scale", d.handleSetFontScale)
	srv.Register("step_font_scale", d.handleStepFontScale)
	srv.Register("get_background", d.handleGetBackground)
	srv.Register("set_background", d.handleSetBackground)
	srv.Register("get_layout_modes", d.handleGetLayoutModes)
	srv.Register("get_layout_mode", d.handleGetLayoutMode)
	srv.Register("set_layout_mode", d.handleSetLayoutMode)
	srv.Register("get_position", d.handleGetPosition)
	srv.Register("goto_link", d.handleGotoLink)
	srv.Register("goto_position", d.handleGotoPosition)
	srv.Register("toggle_bookmark", d.handleToggleBookmark)
	srv.Register("search_text", d.handleSearchText)
	srv.Register("list_annotations", d.handleListAnnotations)
	srv.RegisterStream("subscribe_events", d.handleSubscribeEvents)
}

func pingHandler(d *daemon) ipc.HandlerFunc {
	return func(ctx context.Context, params json.RawMessage) (any, *ipc.Error) {
		now := time.Now().UnixMilli()
		d.logger.Debug("received ping", "now", now)
		return map[string]any{"now": now, "bound": d.bridge.Bound()}, nil
	}
}

// turn runs fn as one executor turn on a bound bridge, so the host calls a
// handler makes reach the content back to back.
func (d *daemon) turn(ctx context.Context, fn func(ctx context.Context)) *ipc.Error {
	if !d.bridge.Bound() {
		return ipc.Errorf(ipc.CodeBridgeUnavailable, "viewer not bound", nil)
	}
	err := d.engine.Do(ctx, func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
	if err != nil {
		return ipc.Errorf(ipc.CodeBridgeUnavailable, err.Error(), nil)
	}
	return nil
}

func decodeParams(params json.RawMessage, v any) *ipc.Error {
	if len(params) == 0 {
		return ipc.Errorf(ipc.CodeInvalidRequest, "params required", nil)
	}
	if err := json.Unmarshal(params, v); err != nil {
		return ipc.Errorf(ipc.CodeInvalidRequest, "invalid params", map[string]any{"reason": err.Error()})
	}
	return nil
}

func validationError(err error) *ipc.Error {
	return ipc.Errorf(ipc.CodeValidationFailed, err.Error(), nil)
}

func (d *daemon) handleGetState(ctx context.Context, params json.RawMessage) (any, *ipc.Error) {
	return map[string]any{
		"state":    d.session.snapshot(),
		"bound":    d.bridge.Bound(),
		"bookURL":  d.currentBook(),
		"document": d.documentURL(),
	}, nil
}

func (d *daemon) handleLoadBook(ctx context.Context, params json.RawMessage) (any, *ipc.Error) {
	var req struct {
		URL string `json:"url"`
	}
	if rpcErr := decodeParams(params, &req); rpcErr != nil {
		return nil, rpcErr
	}
	if err := core.ValidateBookURL(req.URL); err != nil {
		return nil, validationError(err)
	}
	if rpcErr := d.turn(ctx, func(ctx context.Context) { d.loadBook(ctx, req.URL) }); rpcErr != nil {
		return nil, rpcErr
	}
	return map[string]any{"url": req.URL}, nil
}

func (d *daemon) handleGetFontScale(ctx context.Context, params json.RawMessage) (any, *ipc.Error) {
	var scale *float64
	rpcErr := d.turn(ctx, func(ctx context.Context) {
		if v, ok := d.bridge.GetFontScale(ctx); ok {
			scale = &v
		}
	})
	if rpcErr != nil {
		return nil, rpcErr
	}
	return map[string]any{"scale": scale}, nil
}

func (d *daemon) handleSetFontScale(ctx context.Context, params json.RawMessage) (any, *ipc.Error) {
	var req struct {
		Scale float64 `json:"scale"`
	}
	if rpcErr := decodeParams(params, &req); rpcErr != nil {
		return nil, rpcErr
	}
	if err := core.ValidateFontScale(req.Scale); err != nil {
		return nil, validationError(err)
	}
	if rpcErr := d.turn(ctx, func(ctx context.Context) { d.bridge.SetFontScale(ctx, req.Scale) }); rpcErr != nil {
		return nil, rpcErr
	}
	return map[string]any{"scale": req.Scale}, nil
}

func (d *daemon) handleStepFontScale(ctx context.Context, params json.RawMessage) (any, *ipc.Error) {
	var req struct {
		Delta int `json:"delta"`
	}
	if rpcErr := decodeParams(params, &req); rpcErr != nil {
		return nil, rpcErr
	}
	if req.Delta == 0 {
		return nil, ipc.Errorf(ipc.CodeInvalidRequest, "delta must not be zero", nil)
	}
	var scale float64
	if rpcErr := d.turn(ctx, func(ctx context.Context) { scale = d.bridge.StepFontScale(ctx, req.Delta) }); rpcErr != nil {
		return nil, rpcErr
	}
	return map[string]any{"scale": scale}, nil
}

func (d *daemon) handleGetBackground(ctx context.Context, params json.RawMessage) (any, *ipc.Error) {
	var color *core.Color
	rpcErr := d.turn(ctx, func(ctx context.Context) {
		if c, ok := d.bridge.GetBackgroundColor(ctx); ok {
			color = &c
		}
	})
	if rpcErr != nil {
		return nil, rpcErr
	}
	return map[string]any{"color": color}, nil
}

func (d *daemon) handleSetBackground(ctx context.Context, params json.RawMessage) (any, *ipc.Error) {
	var req struct {
		Color *core.Color `json:"color"`
	}
	if rpcErr := decodeParams(params, &req); rpcErr != nil {
		return nil, rpcErr
	}
	if req.Color == nil {
		return nil, ipc.Errorf(ipc.CodeInvalidRequest, "color required", nil)
	}
	if err := core.ValidateColor(*req.Color); err != nil {
		return nil, validationError(err)
	}
	if rpcErr := d.turn(ctx, func(ctx context.Context) { d.bridge.SetBackgroundColor(ctx, *req.Color) }); rpcErr != nil {
		return nil, rpcErr
	}
	return map[string]any{"color": req.Color}, nil
}

func (d *daemon) handleGetLayoutModes(ctx context.Context, params json.RawMessage) (any, *ipc.Error) {
	modes := []core.LayoutMode{}
	rpcErr := d.turn(ctx, func(ctx context.Context) {
		if m, ok := d.bridge.GetAvailableLayoutModes(ctx); ok {
			modes = m
		}
	})
	if rpcErr != nil {
		return nil, rpcErr
	}
	return map[string]any{"modes": modes}, nil
}

func (d *daemon) handleGetLayoutMode(ctx context.Context, params json.RawMessage) (any, *ipc.Error) {
	var mode *core.LayoutMode
	rpcErr := d.turn(ctx, func(ctx context.Context) {
		if m, ok := d.bridge.GetLayoutMode(ctx); ok {
			mode = &m
		}
	})
	if rpcErr != nil {
		return nil, rpcErr
	}
	return map[string]any{"mode": mode}, nil
}

func (d *daemon) handleSetLayoutMode(ctx context.Context, params json.RawMessage) (any, *ipc.Error) {
	var req struct {
		Mode core.LayoutMode `json:"mode"`
	}
	if rpcErr := decodeParams(params, &req); rpcErr != nil {
		return nil, rpcErr
	}
	if err := core.ValidateLayoutMode(req.Mode); err != nil {
		return nil, validationError(err)
	}
	if rpcErr := d.turn(ctx, func(ctx context.Context) { d.bridge.SetLayoutMode(ctx, req.Mode) }); rpcErr != nil {
		return nil, rpcErr
	}
	return map[string]any{"mode": req.Mode}, nil
}

func (d *daemon) handleGetPosition(ctx context.Context, params json.RawMessage) (any, *ipc.Error) {
	var pos *core.Position
	rpcErr := d.turn(ctx, func(ctx context.Context) {
		if p, ok := d.bridge.GetCurrentPosition(ctx); ok {
			pos = &p
		}
	})
	if rpcErr != nil {
		return nil, rpcErr
	}
	return map[string]any{"position": pos}, nil
}

func (d *daemon) handleGotoLink(ctx context.Context, params json.RawMessage) (any, *ipc.Error) {
	var req struct {
		Link string `json:"link"`
	}
	if rpcErr := decodeParams(params, &req); rpcErr != nil {
		return nil, rpcErr
	}
	if req.Link == "" {
		return nil, ipc.Errorf(ipc.CodeInvalidRequest, "link required", nil)
	}
	if rpcErr := d.turn(ctx, func(ctx context.Context) { d.bridge.GotoLink(ctx, req.Link) }); rpcErr != nil {
		return nil, rpcErr
	}
	return map[string]any{"link": req.Link}, nil
}

func (d *daemon) handleGotoPosition(ctx context.Context, params json.RawMessage) (any, *ipc.Error) {
	var req struct {
		CFI string `json:"cfi"`
	}
	if rpcErr := decodeParams(params, &req); rpcErr != nil {
		return nil, rpcErr
	}
	if req.CFI == "" {
		return nil, ipc.Errorf(ipc.CodeInvalidRequest, "cfi required", nil)
	}
	if rpcErr := d.turn(ctx, func(ctx context.Context) { d.bridge.GotoPosition(ctx, req.CFI) }); rpcErr != nil {
		return nil, rpcErr
	}
	return map[string]any{"cfi": req.CFI}, nil
}

// handleToggleBookmark adds or recolors the bookmark on the current page;
// a null or absent color removes it.
func (d *daemon) handleToggleBookmark(ctx context.Context, params json.RawMessage) (any, *ipc.Error) {
	var req struct {
		Color *core.Color `json:"color"`
	}
	if len(params) > 0 {
		if rpcErr := decodeParams(params, &req); rpcErr != nil {
			return nil, rpcErr
		}
	}
	if req.Color != nil {
		if err := core.ValidateColor(*req.Color); err != nil {
			return nil, validationError(err)
		}
	}
	if rpcErr := d.turn(ctx, func(ctx context.Context) { d.bridge.ToggleBookmark(ctx, req.Color) }); rpcErr != nil {
		return nil, rpcErr
	}
	return map[string]any{"removed": req.Color == nil}, nil
}

// handleSearchText starts a search; a null or absent keyword leaves search
// mode. Matches arrive as search_result events.
func (d *daemon) handleSearchText(ctx context.Context, params json.RawMessage) (any, *ipc.Error) {
	var req struct {
		Keyword *string `json:"keyword"`
	}
	if len(params) > 0 {
		if rpcErr := decodeParams(params, &req); rpcErr != nil {
			return nil, rpcErr
		}
	}
	if req.Keyword != nil && *req.Keyword == "" {
		return nil, ipc.Errorf(ipc.CodeInvalidRequest, "keyword must not be empty", nil)
	}
	if rpcErr := d.turn(ctx, func(ctx context.Context) { d.bridge.SearchText(ctx, req.Keyword) }); rpcErr != nil {
		return nil, rpcErr
	}
	return map[string]any{"keyword": req.Keyword}, nil
}

func (d *daemon) handleListAnnotations(ctx context.Context, params json.RawMessage) (any, *ipc.Error) {
	var req struct {
		Kind    annotations.Kind `json:"kind"`
		Chapter string           `json:"chapter"`
	}
	if rpcErr := decodeParams(params, &req); rpcErr != nil {
		return nil, rpcErr
	}
	store, ok := d.bridge.Store(req.Kind)
	if !ok {
		return nil, ipc.Errorf(ipc.CodeInvalidRequest, "unknown annotation kind", map[string]any{"kind": req.Kind})
	}
	entries, err := store.List(ctx, req.Chapter)
	if err != nil {
		return nil, ipc.Errorf(ipc.CodeStorageError, err.Error(), nil)
	}
	return map[string]any{"kind": req.Kind, "chapter": req.Chapter, "entries": entries}, nil
}

func (d *daemon) handleSubscribeEvents(ctx context.Context, params json.RawMessage) (<-chan json.RawMessage, *ipc.Error) {
	if d.events == nil {
		return nil, ipc.Errorf(ipc.CodeInternal, "event hub unavailable", nil)
	}
	client := d.events.register()
	go func() {
		<-ctx.Done()
		d.events.unregister(client)
	}()
	return client.send, nil
}
