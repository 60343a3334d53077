package main

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/rexliu/folio/pkg/annotations"
	"github.com/rexliu/folio/pkg/bridge"
	"github.com/rexliu/folio/pkg/core"
	"github.com/rexliu/folio/pkg/wire"
)

// Event types streamed by subscribe_events.
const (
	eventTitleChanged      = "title_changed"
	eventTOCChanged        = "toc_changed"
	eventViewChanged       = "view_changed"
	eventPageChanged       = "page_changed"
	eventActionTracked     = "action_tracked"
	eventToolbarToggled    = "toolbar_toggled"
	eventShareHighlight    = "share_highlight"
	eventAnnotateHighlight = "annotate_highlight"
	eventSearchResult      = "search_result"
	eventBookLoaded        = "book_loaded"
)

type event struct {
	Type string `json:"type"`
	At   int64  `json:"at"`
	Data any    `json:"data,omitempty"`
}

// eventHub broadcasts scene events to connected clients.
type eventHub struct {
	logger  *slog.Logger
	mu      sync.Mutex
	clients map[*eventClient]struct{}
}

type eventClient struct {
	send chan json.RawMessage
}

func newEventHub(logger *slog.Logger) *eventHub {
	return &eventHub{
		logger:  logger,
		clients: make(map[*eventClient]struct{}),
	}
}

func (h *eventHub) register() *eventClient {
	h.mu.Lock()
	defer h.mu.Unlock()
	client := &eventClient{send: make(chan json.RawMessage, 16)}
	h.clients[client] = struct{}{}
	return client
}

func (h *eventHub) unregister(client *eventClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}

func (h *eventHub) broadcast(kind string, data any) {
	payload, err := json.Marshal(event{Type: kind, At: time.Now().UnixMilli(), Data: data})
	if err != nil {
		h.logger.Error("event marshal error", "type", kind, "err", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client.send <- payload:
		default:
			h.logger.Warn("dropping event for slow client", "type", kind)
		}
	}
}

type searchState struct {
	Keyword string     `json:"keyword"`
	Results wire.Array `json:"results"`
}

type highlightRequest struct {
	ID     string      `json:"id"`
	Found  bool        `json:"found"`
	Text   string      `json:"text,omitempty"`
	Record wire.Object `json:"record,omitempty"`
}

// readerState is the host-side view of the reader.
type readerState struct {
	Title          string          `json:"title"`
	TOC            []core.TOCEntry `json:"toc"`
	Page           *core.PageState `json:"page,omitempty"`
	View           *core.ViewFrame `json:"view,omitempty"`
	ToolbarVisible bool            `json:"toolbarVisible"`
	LastAction     string          `json:"lastAction,omitempty"`
	Search         *searchState    `json:"search,omitempty"`
}

// session is the daemon's Scene: it records what the content reports and
// forwards every change to subscribers.
type session struct {
	mu    sync.RWMutex
	state readerState
	hub   *eventHub
}

var _ bridge.Scene = (*session)(nil)

func newSession(hub *eventHub) *session {
	return &session{hub: hub, state: readerState{TOC: []core.TOCEntry{}, ToolbarVisible: true}}
}

func (s *session) snapshot() readerState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.state
	out.TOC = append([]core.TOCEntry(nil), s.state.TOC...)
	return out
}

func (s *session) update(kind string, data any, apply func(*readerState)) {
	s.mu.Lock()
	apply(&s.state)
	s.mu.Unlock()
	s.hub.broadcast(kind, data)
}

func (s *session) TitleChanged(title string) {
	s.update(eventTitleChanged, map[string]string{"title": title}, func(st *readerState) { st.Title = title })
}

func (s *session) TableOfContentsChanged(toc []core.TOCEntry) {
	s.update(eventTOCChanged, toc, func(st *readerState) { st.TOC = toc })
}

func (s *session) ViewChanged(frame core.ViewFrame) {
	s.update(eventViewChanged, frame, func(st *readerState) { st.View = &frame })
}

func (s *session) PageChanged(page core.PageState) {
	s.update(eventPageChanged, page, func(st *readerState) { st.Page = &page })
}

func (s *session) ActionTracked(action, cfi string) {
	data := map[string]string{"action": action, "cfi": cfi}
	s.update(eventActionTracked, data, func(st *readerState) { st.LastAction = action })
}

func (s *session) ToolbarToggled(visible bool) {
	data := map[string]bool{"visible": visible}
	s.update(eventToolbarToggled, data, func(st *readerState) { st.ToolbarVisible = visible })
}

func (s *session) ShareHighlight(id string, highlight *annotations.Entry) {
	s.hub.broadcast(eventShareHighlight, describeHighlight(id, highlight))
}

func (s *session) AnnotateHighlight(id string, highlight *annotations.Entry) {
	s.hub.broadcast(eventAnnotateHighlight, describeHighlight(id, highlight))
}

func (s *session) SearchResult(keyword string, results wire.Array) {
	data := searchState{Keyword: keyword, Results: results}
	s.update(eventSearchResult, data, func(st *readerState) { st.Search = &data })
}

// bookLoaded resets what the previous book reported.
func (s *session) bookLoaded(url string) {
	s.update(eventBookLoaded, map[string]string{"url": url}, func(st *readerState) {
		visible := st.ToolbarVisible
		*st = readerState{TOC: []core.TOCEntry{}, ToolbarVisible: visible}
	})
}

func describeHighlight(id string, entry *annotations.Entry) highlightRequest {
	req := highlightRequest{ID: id}
	if entry == nil {
		return req
	}
	req.Found = true
	req.Record = entry.Record
	if v, err := entry.Record.Pointer("/text"); err == nil {
		req.Text, _ = v.AsString()
	}
	return req
}
