package bridge

import (
	"context"

	"github.com/rexliu/folio/pkg/core"
	"github.com/rexliu/folio/pkg/wire"
)

// route is one inbound method. Handlers extract every argument before
// touching any state so a bad argument aborts the whole call.
type route struct {
	arity  int
	handle func(ctx context.Context, b *Bridge, args wire.Array) error
}

var routes = map[string]route{
	"onChangeTitle": {1, func(ctx context.Context, b *Bridge, args wire.Array) error {
		title, err := args.GetString(0)
		if err != nil {
			return err
		}
		b.scene.TitleChanged(title)
		return nil
	}},
	"onChangeTOC": {1, func(ctx context.Context, b *Bridge, args wire.Array) error {
		entries, err := args.GetArray(0)
		if err != nil {
			return err
		}
		toc, err := core.ParseTOC(entries)
		if err != nil {
			return err
		}
		b.scene.TableOfContentsChanged(toc)
		return nil
	}},
	"onChangeView": {3, func(ctx context.Context, b *Bridge, args wire.Array) error {
		x, err := args.GetDouble(0)
		if err != nil {
			return err
		}
		y, err := args.GetDouble(1)
		if err != nil {
			return err
		}
		scale, err := args.GetDouble(2)
		if err != nil {
			return err
		}
		b.scene.ViewChanged(core.ViewFrame{OffsetX: x, OffsetY: y, Scale: scale})
		return nil
	}},
	"onChangePage": {3, func(ctx context.Context, b *Bridge, args wire.Array) error {
		chapter, err := args.GetString(0)
		if err != nil {
			return err
		}
		cfi, err := args.GetString(1)
		if err != nil {
			return err
		}
		percentage, err := args.GetInt(2)
		if err != nil {
			return err
		}
		b.scene.PageChanged(core.PageState{Chapter: chapter, CFI: cfi, Percentage: int(percentage)})
		return nil
	}},
	"onTrackAction": {2, func(ctx context.Context, b *Bridge, args wire.Array) error {
		action, err := args.GetString(0)
		if err != nil {
			return err
		}
		cfi, err := args.GetString(1)
		if err != nil {
			return err
		}
		b.scene.ActionTracked(action, cfi)
		return nil
	}},
	"onToggleToolbar": {1, func(ctx context.Context, b *Bridge, args wire.Array) error {
		visible, err := args.GetBool(0)
		if err != nil {
			return err
		}
		b.scene.ToolbarToggled(visible)
		return nil
	}},

	"onRequestHighlights": {2, requestRoute(highlightStore)},
	"onAddHighlight":      {3, addRoute(highlightStore)},
	"onUpdateHighlight":   {1, updateRoute(highlightStore)},
	"onRemoveHighlight":   {1, removeRoute(highlightStore)},
	"onShareHighlight": {1, func(ctx context.Context, b *Bridge, args wire.Array) error {
		id, err := args.GetString(0)
		if err != nil {
			return err
		}
		entry, err := b.lookupHighlight(ctx, id)
		if err != nil {
			return err
		}
		b.scene.ShareHighlight(id, entry)
		return nil
	}},
	"onAnnotateHighlight": {1, func(ctx context.Context, b *Bridge, args wire.Array) error {
		id, err := args.GetString(0)
		if err != nil {
			return err
		}
		entry, err := b.lookupHighlight(ctx, id)
		if err != nil {
			return err
		}
		b.scene.AnnotateHighlight(id, entry)
		return nil
	}},

	"onRequestBookmarks": {2, requestRoute(bookmarkStore)},
	"onAddBookmark":      {3, addRoute(bookmarkStore)},
	"onUpdateBookmark":   {1, updateRoute(bookmarkStore)},
	"onRemoveBookmark":   {1, removeRoute(bookmarkStore)},

	"onSearchResult": {2, func(ctx context.Context, b *Bridge, args wire.Array) error {
		keyword, err := args.GetString(0)
		if err != nil {
			return err
		}
		results, err := args.GetArray(1)
		if err != nil {
			return err
		}
		b.scene.SearchResult(keyword, results)
		return nil
	}},
	"log": {0, func(ctx context.Context, b *Bridge, args wire.Array) error {
		msg, _ := args.OptString(0)
		b.logger.Info("content log", "message", msg)
		return nil
	}},
}

// Methods lists the inbound method names the bridge routes.
func Methods() []string {
	names := make([]string, 0, len(routes))
	for name := range routes {
		names = append(names, name)
	}
	return names
}

func requestRoute(pick storePicker) func(context.Context, *Bridge, wire.Array) error {
	return func(ctx context.Context, b *Bridge, args wire.Array) error {
		chapter, err := args.GetString(0)
		if err != nil {
			return err
		}
		callback, err := args.GetString(1)
		if err != nil {
			return err
		}
		return b.request(ctx, pick(b), chapter, callback)
	}
}

func addRoute(pick storePicker) func(context.Context, *Bridge, wire.Array) error {
	return func(ctx context.Context, b *Bridge, args wire.Array) error {
		chapter, err := args.GetString(0)
		if err != nil {
			return err
		}
		record, err := args.GetObject(1)
		if err != nil {
			return err
		}
		callback, err := args.GetString(2)
		if err != nil {
			return err
		}
		return b.add(ctx, pick(b), chapter, record, callback)
	}
}

func updateRoute(pick storePicker) func(context.Context, *Bridge, wire.Array) error {
	return func(ctx context.Context, b *Bridge, args wire.Array) error {
		record, err := args.GetObject(0)
		if err != nil {
			return err
		}
		return b.update(ctx, pick(b), record)
	}
}

func removeRoute(pick storePicker) func(context.Context, *Bridge, wire.Array) error {
	return func(ctx context.Context, b *Bridge, args wire.Array) error {
		id, err := args.GetString(0)
		if err != nil {
			return err
		}
		return b.remove(ctx, pick(b), id)
	}
}
