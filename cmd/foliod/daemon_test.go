package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rexliu/folio/pkg/annotations"
	"github.com/rexliu/folio/pkg/config"
	"github.com/rexliu/folio/pkg/core"
	"github.com/rexliu/folio/pkg/ipc"
	"github.com/rexliu/folio/pkg/wire"
)

const testBook = "https://books.example/moby-dick/"

func startDaemon(t *testing.T, open bool) (*daemon, string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	viewer, err := filepath.Abs(filepath.Join("..", "folio", "viewer.js"))
	require.NoError(t, err)
	cfg := config.DefaultProfile("test")
	cfg.Viewer.DocumentURL = viewer
	cfg.Viewer.BookURL = testBook
	cfg.Engine.TimeoutSeconds = 5

	d, err := newDaemon(cfg, t.TempDir(), slog.Default(), annotations.NewMemoryStore(), annotations.NewMemoryStore())
	require.NoError(t, err)
	t.Cleanup(func() { d.engine.Close() })

	srv := ipc.NewServer(nil)
	d.registerHandlers(srv)
	socket := filepath.Join(t.TempDir(), "ipc.sock")
	require.NoError(t, srv.Start(ctx, socket))
	t.Cleanup(func() { srv.Stop() })

	if open {
		require.NoError(t, d.open(ctx))
	}
	return d, socket
}

func dial(t *testing.T, socket string) *ipc.Client {
	t.Helper()
	client, err := ipc.Dial(socket, time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func call(t *testing.T, c *ipc.Client, method string, params, out any) {
	t.Helper()
	resp, err := c.Call(method, params)
	require.NoError(t, err, method)
	if out != nil {
		require.NoError(t, json.Unmarshal(resp.Result, out), method)
	}
}

func callError(t *testing.T, c *ipc.Client, method string, params any) *ipc.Error {
	t.Helper()
	_, err := c.Call(method, params)
	var rpcErr *ipc.Error
	require.True(t, errors.As(err, &rpcErr), "%s: expected daemon error, got %v", method, err)
	return rpcErr
}

type stateResult struct {
	State   readerState `json:"state"`
	Bound   bool        `json:"bound"`
	BookURL string      `json:"bookURL"`
}

func TestStateAfterOpen(t *testing.T) {
	_, socket := startDaemon(t, true)
	c := dial(t, socket)

	var got stateResult
	call(t, c, "get_state", nil, &got)
	assert.True(t, got.Bound)
	assert.Equal(t, testBook, got.BookURL)
	assert.Equal(t, "Moby-Dick", got.State.Title)
	require.Len(t, got.State.TOC, 3)
	require.NotNil(t, got.State.Page)
	assert.Equal(t, 8, got.State.Page.Percentage)
	assert.True(t, got.State.ToolbarVisible)

	var pong struct {
		Now   int64 `json:"now"`
		Bound bool  `json:"bound"`
	}
	call(t, c, "ping", nil, &pong)
	assert.Positive(t, pong.Now)
	assert.True(t, pong.Bound)
}

func TestFontScaleControls(t *testing.T) {
	_, socket := startDaemon(t, true)
	c := dial(t, socket)

	var scale struct {
		Scale *float64 `json:"scale"`
	}
	call(t, c, "get_font_scale", nil, &scale)
	require.NotNil(t, scale.Scale)
	assert.Equal(t, 1.0, *scale.Scale)

	call(t, c, "set_font_scale", map[string]any{"scale": 1.5}, nil)
	call(t, c, "step_font_scale", map[string]any{"delta": 1}, &scale)
	assert.Equal(t, 1.75, *scale.Scale)
	call(t, c, "get_font_scale", nil, &scale)
	assert.Equal(t, 1.75, *scale.Scale)

	assert.Equal(t, ipc.CodeValidationFailed, callError(t, c, "set_font_scale", map[string]any{"scale": 9}).Code)
	assert.Equal(t, ipc.CodeInvalidRequest, callError(t, c, "step_font_scale", map[string]any{"delta": 0}).Code)
	assert.Equal(t, ipc.CodeInvalidRequest, callError(t, c, "set_font_scale", nil).Code)
}

func TestLayoutAndBackgroundControls(t *testing.T) {
	_, socket := startDaemon(t, true)
	c := dial(t, socket)

	var modes struct {
		Modes []core.LayoutMode `json:"modes"`
	}
	call(t, c, "get_layout_modes", nil, &modes)
	assert.Equal(t, []core.LayoutMode{core.LayoutSingle, core.LayoutSideBySide, core.LayoutContinuous}, modes.Modes)

	call(t, c, "set_layout_mode", map[string]any{"mode": "continuous"}, nil)
	var mode struct {
		Mode *core.LayoutMode `json:"mode"`
	}
	call(t, c, "get_layout_mode", nil, &mode)
	require.NotNil(t, mode.Mode)
	assert.Equal(t, core.LayoutContinuous, *mode.Mode)
	assert.Equal(t, ipc.CodeValidationFailed, callError(t, c, "set_layout_mode", map[string]any{"mode": "diagonal"}).Code)

	var bg struct {
		Color *core.Color `json:"color"`
	}
	call(t, c, "get_background", nil, &bg)
	require.NotNil(t, bg.Color)
	assert.Equal(t, core.RGB(255, 255, 255), *bg.Color)

	call(t, c, "set_background", map[string]any{"color": []int{250, 240, 220}}, nil)
	call(t, c, "get_background", nil, &bg)
	assert.Equal(t, core.RGB(250, 240, 220), *bg.Color)
	assert.Equal(t, ipc.CodeValidationFailed, callError(t, c, "set_background", map[string]any{"color": []int{0, 0, 300}}).Code)
	assert.Equal(t, ipc.CodeInvalidRequest, callError(t, c, "set_background", map[string]any{}).Code)
}

func TestNavigationControls(t *testing.T) {
	_, socket := startDaemon(t, true)
	c := dial(t, socket)

	var pos struct {
		Position *core.Position `json:"position"`
	}
	call(t, c, "get_position", nil, &pos)
	require.NotNil(t, pos.Position)
	assert.Equal(t, core.Position{Chapter: "ch1", CFI: "epubcfi(/6/2!/4/1:0)", Current: 1, Total: 12}, *pos.Position)

	call(t, c, "goto_link", map[string]any{"link": "ch2.xhtml"}, nil)
	call(t, c, "goto_position", map[string]any{"cfi": "epubcfi(/6/4!/4/2:10)"}, nil)

	var got stateResult
	call(t, c, "get_state", nil, &got)
	require.NotNil(t, got.State.Page)
	assert.Equal(t, "ch2", got.State.Page.Chapter)
	assert.Equal(t, "epubcfi(/6/4!/4/2:10)", got.State.Page.CFI)

	assert.Equal(t, ipc.CodeInvalidRequest, callError(t, c, "goto_link", map[string]any{"link": ""}).Code)
	assert.Equal(t, ipc.CodeInvalidRequest, callError(t, c, "goto_position", map[string]any{}).Code)
}

func TestBookmarkControls(t *testing.T) {
	_, socket := startDaemon(t, true)
	c := dial(t, socket)

	call(t, c, "toggle_bookmark", map[string]any{"color": []int{255, 0, 0}}, nil)

	var list struct {
		Entries []annotations.Entry `json:"entries"`
	}
	call(t, c, "list_annotations", map[string]any{"kind": "bookmark", "chapter": "ch1"}, &list)
	require.Len(t, list.Entries, 1)
	id := list.Entries[0].ID
	uuid, err := list.Entries[0].Record.GetString(annotations.IDField)
	require.NoError(t, err)
	assert.Equal(t, id, uuid)

	call(t, c, "list_annotations", map[string]any{"kind": "highlight", "chapter": "ch1"}, &list)
	assert.Empty(t, list.Entries)

	var removed struct {
		Removed bool `json:"removed"`
	}
	call(t, c, "toggle_bookmark", nil, &removed)
	assert.True(t, removed.Removed)
	call(t, c, "list_annotations", map[string]any{"kind": "bookmark", "chapter": "ch1"}, &list)
	assert.Empty(t, list.Entries)

	assert.Equal(t, ipc.CodeInvalidRequest, callError(t, c, "list_annotations", map[string]any{"kind": "note"}).Code)
	assert.Equal(t, ipc.CodeValidationFailed, callError(t, c, "toggle_bookmark", map[string]any{"color": []int{-1, 0, 0}}).Code)
}

func TestSearchStreamsEvents(t *testing.T) {
	d, socket := startDaemon(t, true)
	c := dial(t, socket)
	sub := dial(t, socket)

	events := make(chan event, 16)
	go func() {
		_ = sub.Stream("subscribe_events", nil, func(raw json.RawMessage) error {
			var ev event
			if err := json.Unmarshal(raw, &ev); err != nil {
				return err
			}
			events <- ev
			return nil
		})
	}()
	require.Eventually(t, func() bool {
		d.events.mu.Lock()
		defer d.events.mu.Unlock()
		return len(d.events.clients) == 1
	}, 2*time.Second, 10*time.Millisecond)

	call(t, c, "search_text", map[string]any{"keyword": "whale"}, nil)
	select {
	case ev := <-events:
		assert.Equal(t, eventSearchResult, ev.Type)
		data, ok := ev.Data.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "whale", data["keyword"])
	case <-time.After(2 * time.Second):
		t.Fatal("no search event")
	}

	var got stateResult
	call(t, c, "get_state", nil, &got)
	require.NotNil(t, got.State.Search)
	assert.Equal(t, "whale", got.State.Search.Keyword)
	require.Len(t, got.State.Search.Results, 1)

	call(t, c, "search_text", nil, nil)
	assert.Equal(t, "", evaluate(t, d, "Viewer.state.search"))
	assert.Equal(t, ipc.CodeInvalidRequest, callError(t, c, "search_text", map[string]any{"keyword": ""}).Code)
}

func TestLoadBookResetsState(t *testing.T) {
	d, socket := startDaemon(t, true)
	c := dial(t, socket)

	assert.Equal(t, ipc.CodeValidationFailed, callError(t, c, "load_book", map[string]any{"url": "ftp://books.example/x"}).Code)

	other := "https://books.example/pequod/"
	call(t, c, "load_book", map[string]any{"url": other}, nil)
	assert.Equal(t, other, evaluate(t, d, "Viewer.state.book"))

	var got stateResult
	call(t, c, "get_state", nil, &got)
	assert.Equal(t, other, got.BookURL)
	assert.Equal(t, "Moby-Dick", got.State.Title, "the viewer reports the title again after loading")
	assert.Nil(t, got.State.Search)
}

func TestUnboundViewerIsUnavailable(t *testing.T) {
	_, socket := startDaemon(t, false)
	c := dial(t, socket)

	for _, method := range []string{"get_font_scale", "get_layout_mode", "get_position", "toggle_bookmark"} {
		assert.Equal(t, ipc.CodeBridgeUnavailable, callError(t, c, method, nil).Code, method)
	}
	var list struct {
		Entries []annotations.Entry `json:"entries"`
	}
	call(t, c, "list_annotations", map[string]any{"kind": "highlight", "chapter": "ch1"}, &list)
	assert.Empty(t, list.Entries)
}

func TestSessionRecordsScene(t *testing.T) {
	s := newSession(newEventHub(slog.Default()))
	s.TitleChanged("Moby-Dick")
	s.ToolbarToggled(false)
	s.ViewChanged(core.ViewFrame{OffsetX: 0, OffsetY: 120, Scale: 1})
	s.ActionTracked("highlight", "epubcfi(/6/2!/4/1:0)")

	st := s.snapshot()
	assert.Equal(t, "Moby-Dick", st.Title)
	assert.False(t, st.ToolbarVisible)
	require.NotNil(t, st.View)
	assert.Equal(t, 120.0, st.View.OffsetY)
	assert.Equal(t, "highlight", st.LastAction)

	s.bookLoaded(testBook)
	st = s.snapshot()
	assert.Empty(t, st.Title)
	assert.Nil(t, st.View)
	assert.False(t, st.ToolbarVisible, "toolbar visibility survives a book change")
}

func TestDescribeHighlight(t *testing.T) {
	assert.Equal(t, highlightRequest{ID: "gone"}, describeHighlight("gone", nil))

	record := wire.Object{"text": wire.String("Call me Ishmael."), "uuid": wire.String("h1")}
	got := describeHighlight("h1", &annotations.Entry{ID: "h1", Chapter: "ch1", Record: record})
	assert.True(t, got.Found)
	assert.Equal(t, "Call me Ishmael.", got.Text)
}

func evaluate(t *testing.T, d *daemon, script string) string {
	t.Helper()
	out, err := d.engine.Evaluate(context.Background(), script)
	require.NoError(t, err, script)
	return out
}
