package bridge

import (
	"github.com/rexliu/folio/pkg/annotations"
	"github.com/rexliu/folio/pkg/core"
	"github.com/rexliu/folio/pkg/wire"
)

// Scene is the host state the bridge reports content events to. The bridge
// keeps it as a plain reference; the host owns both.
type Scene interface {
	TitleChanged(title string)
	TableOfContentsChanged(toc []core.TOCEntry)
	ViewChanged(frame core.ViewFrame)
	PageChanged(page core.PageState)
	ActionTracked(action, cfi string)
	ToolbarToggled(visible bool)
	// ShareHighlight and AnnotateHighlight receive nil when the id is not
	// in the highlight store.
	ShareHighlight(id string, highlight *annotations.Entry)
	AnnotateHighlight(id string, highlight *annotations.Entry)
	SearchResult(keyword string, results wire.Array)
}

// NopScene ignores every event. Embed it to implement a subset of Scene.
type NopScene struct{}

func (NopScene) TitleChanged(string) {}
func (NopScene) TableOfContentsChanged([]core.TOCEntry) {}
func (NopScene) ViewChanged(core.ViewFrame) {}
func (NopScene) PageChanged(core.PageState) {}
func (NopScene) ActionTracked(string, string) {}
func (NopScene) ToolbarToggled(bool) {}
func (NopScene) ShareHighlight(string, *annotations.Entry) {}
func (NopScene) AnnotateHighlight(string, *annotations.Entry) {}
func (NopScene) SearchResult(string, wire.Array) {}

var _ Scene = NopScene{}
