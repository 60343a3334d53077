package main

import (
	_ "embed"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rexliu/folio/pkg/config"
	"github.com/rexliu/folio/pkg/core"
	"github.com/rexliu/folio/pkg/ipc"
)

const version = "0.3.0"

// tocPreview is how many table of contents lines `folio toc` prints unless
// --all is given.
const tocPreview = 8

//go:embed viewer.js
var starterViewer []byte

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "init":
		err = initCommand(args)
	case "version":
		fmt.Printf("folio %s\n", version)
	case "diag":
		err = diagCommand(args)
	case "ping":
		err = pingCommand(args)
	case "state":
		err = stateCommand(args)
	case "toc":
		err = tocCommand(args)
	case "load":
		err = loadCommand(args)
	case "font":
		err = fontCommand(args)
	case "background":
		err = backgroundCommand(args)
	case "layout":
		err = layoutCommand(args)
	case "position":
		err = positionCommand(args)
	case "goto":
		err = gotoCommand(args)
	case "bookmark":
		err = bookmarkCommand(args)
	case "search":
		err = searchCommand(args)
	case "annotations":
		err = annotationsCommand(args)
	case "watch":
		err = watchCommand(args)
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q\n", cmd)
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s error: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("Usage: folio <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  init         Initialize a local profile (writes config.toml and a starter viewer)")
	fmt.Println("  diag         Print profile configuration paths")
	fmt.Println("  ping         Call the daemon ping endpoint via IPC")
	fmt.Println("  state        Print the reader state reported by the viewer")
	fmt.Println("  toc          Print the table of contents")
	fmt.Println("  load         Open a book: --url <base url>")
	fmt.Println("  font         Show or change the text scale: [--set N | --step +1|-1]")
	fmt.Println("  background   Show or change the page color: [--set r,g,b]")
	fmt.Println("  layout       Show or change the layout mode: [--set mode]")
	fmt.Println("  position     Print the current reading position")
	fmt.Println("  goto         Navigate: --link <href> | --cfi <cfi>")
	fmt.Println("  bookmark     Bookmark the current page: --color r,g,b | --remove")
	fmt.Println("  search       Search the book: --keyword <text> | --cancel")
	fmt.Println("  annotations  List stored highlights or bookmarks")
	fmt.Println("  watch        Stream viewer events from the daemon")
	fmt.Println("  version      Print CLI version")
}

// connFlags registers the flags every daemon command shares.
func connFlags(fs *flag.FlagSet) (profile, socket *string) {
	profile = fs.String("profile", "./_dev_profile", "Profile directory")
	socket = fs.String("socket", "", "Override socket path")
	return profile, socket
}

func initCommand(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	profilePath := fs.String("profile", "./_dev_profile", "Profile directory")
	name := fs.String("name", "dev", "Profile name")
	engineKind := fs.String("engine", config.EngineGoja, "Content engine (goja or chromedp)")
	backend := fs.String("storage", config.BackendMemory, "Annotation store (memory or sqlite)")
	force := fs.Bool("force", false, "Overwrite existing config if present")
	_ = fs.Parse(args)

	if err := os.MkdirAll(*profilePath, 0o700); err != nil {
		return err
	}
	configPath := filepath.Join(*profilePath, config.FileName)
	if _, err := os.Stat(configPath); err == nil && !*force {
		return fmt.Errorf("config already exists at %s (use --force to overwrite)", configPath)
	}
	cfg := config.DefaultProfile(*name)
	cfg.Engine.Kind = *engineKind
	cfg.Storage.Backend = *backend
	if err := config.Save(configPath, cfg); err != nil {
		return err
	}

	viewerPath := config.ResolvePath(*profilePath, cfg.Viewer.DocumentURL)
	if _, err := os.Stat(viewerPath); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(viewerPath), 0o700); err != nil {
			return err
		}
		if err := os.WriteFile(viewerPath, starterViewer, 0o600); err != nil {
			return err
		}
	}
	fmt.Printf("initialized profile %s at %s\n", cfg.ProfileName, *profilePath)
	return nil
}

func diagCommand(args []string) error {
	fs := flag.NewFlagSet("diag", flag.ExitOnError)
	profile := fs.String("profile", "./_dev_profile", "Profile directory")
	_ = fs.Parse(args)
	cfg, err := config.LoadProfile(*profile)
	if err != nil {
		return err
	}
	fmt.Printf("Profile: %s\n", cfg.ProfileName)
	fmt.Printf("Config: %s\n", filepath.Join(*profile, config.FileName))
	fmt.Printf("Viewer: %s (namespace %s)\n", config.ResolvePath(*profile, cfg.Viewer.DocumentURL), cfg.Viewer.Namespace)
	if cfg.Viewer.BookURL != "" {
		fmt.Printf("Book: %s\n", cfg.Viewer.BookURL)
	}
	fmt.Printf("Engine: %s (timeout %s)\n", cfg.Engine.Kind, cfg.Engine.Timeout())
	if cfg.Engine.RemoteURL != "" {
		fmt.Printf("Remote Browser: %s\n", cfg.Engine.RemoteURL)
	}
	fmt.Printf("Storage: %s\n", cfg.Storage.Backend)
	if cfg.Storage.Backend == config.BackendSQLite {
		fmt.Printf("DB Path: %s\n", config.ResolvePath(*profile, cfg.Storage.DBPath))
	}
	fmt.Printf("Socket: %s\n", config.ResolvePath(*profile, cfg.IPC.SocketPath))
	if cfg.Logging.FilePath != "" {
		fmt.Printf("Log File: %s\n", config.ResolvePath(*profile, cfg.Logging.FilePath))
	}
	return nil
}

func pingCommand(args []string) error {
	fs := flag.NewFlagSet("ping", flag.ExitOnError)
	profile, socket := connFlags(fs)
	_ = fs.Parse(args)

	var data struct {
		Now   int64 `json:"now"`
		Bound bool  `json:"bound"`
	}
	if err := rpcCall(*profile, *socket, "ping", nil, &data); err != nil {
		return err
	}
	fmt.Printf("daemon responded: now=%d bound=%t\n", data.Now, data.Bound)
	return nil
}

func stateCommand(args []string) error {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	profile, socket := connFlags(fs)
	_ = fs.Parse(args)
	var raw json.RawMessage
	if err := rpcCall(*profile, *socket, "get_state", nil, &raw); err != nil {
		return err
	}
	return printJSON(raw)
}

func tocCommand(args []string) error {
	fs := flag.NewFlagSet("toc", flag.ExitOnError)
	profile, socket := connFlags(fs)
	all := fs.Bool("all", false, "Print every entry")
	_ = fs.Parse(args)

	var data struct {
		State struct {
			Title string          `json:"title"`
			TOC   []core.TOCEntry `json:"toc"`
		} `json:"state"`
	}
	if err := rpcCall(*profile, *socket, "get_state", nil, &data); err != nil {
		return err
	}
	if data.State.Title != "" {
		fmt.Println(data.State.Title)
	}
	fmt.Print(formatTOC(data.State.TOC, *all))
	return nil
}

// formatTOC renders one line per entry indented four spaces per level.
// Entries without a link are marked with a trailing asterisk.
func formatTOC(toc []core.TOCEntry, all bool) string {
	var b strings.Builder
	shown := toc
	if !all && len(shown) > tocPreview {
		shown = shown[:tocPreview]
	}
	for _, entry := range shown {
		b.WriteString(strings.Repeat(" ", entry.Level*4))
		b.WriteString(entry.Title)
		if entry.Link == nil {
			b.WriteString(" *")
		} else {
			fmt.Fprintf(&b, "  (%s)", *entry.Link)
		}
		b.WriteByte('\n')
	}
	if hidden := len(toc) - len(shown); hidden > 0 {
		fmt.Fprintf(&b, "... %d more (use --all)\n", hidden)
	}
	return b.String()
}

func loadCommand(args []string) error {
	fs := flag.NewFlagSet("load", flag.ExitOnError)
	profile, socket := connFlags(fs)
	url := fs.String("url", "", "Book base URL")
	_ = fs.Parse(args)
	if *url == "" {
		return fmt.Errorf("--url is required")
	}
	if err := rpcCall(*profile, *socket, "load_book", map[string]string{"url": *url}, nil); err != nil {
		return err
	}
	fmt.Printf("loading %s\n", *url)
	return nil
}

func fontCommand(args []string) error {
	fs := flag.NewFlagSet("font", flag.ExitOnError)
	profile, socket := connFlags(fs)
	set := fs.Float64("set", 0, "Set the text scale (0.25-4)")
	step := fs.Int("step", 0, "Move the text scale by N steps of 25%")
	_ = fs.Parse(args)

	var data struct {
		Scale *float64 `json:"scale"`
	}
	var err error
	switch {
	case *set != 0 && *step != 0:
		return fmt.Errorf("--set and --step are exclusive")
	case *set != 0:
		err = rpcCall(*profile, *socket, "set_font_scale", map[string]float64{"scale": *set}, &data)
	case *step != 0:
		err = rpcCall(*profile, *socket, "step_font_scale", map[string]int{"delta": *step}, &data)
	default:
		err = rpcCall(*profile, *socket, "get_font_scale", nil, &data)
	}
	if err != nil {
		return err
	}
	if data.Scale == nil {
		fmt.Println("font scale: unknown")
		return nil
	}
	fmt.Printf("font scale: %s%%\n", strconv.FormatFloat(*data.Scale*100, 'f', -1, 64))
	return nil
}

func backgroundCommand(args []string) error {
	fs := flag.NewFlagSet("background", flag.ExitOnError)
	profile, socket := connFlags(fs)
	set := fs.String("set", "", "Page color as r,g,b")
	_ = fs.Parse(args)

	var data struct {
		Color *core.Color `json:"color"`
	}
	if *set != "" {
		color, err := parseColor(*set)
		if err != nil {
			return err
		}
		if err := rpcCall(*profile, *socket, "set_background", map[string]core.Color{"color": color}, &data); err != nil {
			return err
		}
	} else if err := rpcCall(*profile, *socket, "get_background", nil, &data); err != nil {
		return err
	}
	if data.Color == nil {
		fmt.Println("background: unknown")
		return nil
	}
	fmt.Printf("background: %s\n", data.Color)
	return nil
}

func layoutCommand(args []string) error {
	fs := flag.NewFlagSet("layout", flag.ExitOnError)
	profile, socket := connFlags(fs)
	set := fs.String("set", "", "Layout mode (single, side_by_side, continuous)")
	_ = fs.Parse(args)

	if *set != "" {
		if err := rpcCall(*profile, *socket, "set_layout_mode", map[string]string{"mode": *set}, nil); err != nil {
			return err
		}
	}
	var current struct {
		Mode *core.LayoutMode `json:"mode"`
	}
	if err := rpcCall(*profile, *socket, "get_layout_mode", nil, &current); err != nil {
		return err
	}
	var available struct {
		Modes []core.LayoutMode `json:"modes"`
	}
	if err := rpcCall(*profile, *socket, "get_layout_modes", nil, &available); err != nil {
		return err
	}
	for _, mode := range available.Modes {
		marker := " "
		if current.Mode != nil && *current.Mode == mode {
			marker = "*"
		}
		fmt.Printf("%s %s\n", marker, mode)
	}
	if len(available.Modes) == 0 {
		fmt.Println("no layout modes reported")
	}
	return nil
}

func positionCommand(args []string) error {
	fs := flag.NewFlagSet("position", flag.ExitOnError)
	profile, socket := connFlags(fs)
	_ = fs.Parse(args)

	var data struct {
		Position *core.Position `json:"position"`
	}
	if err := rpcCall(*profile, *socket, "get_position", nil, &data); err != nil {
		return err
	}
	if data.Position == nil {
		fmt.Println("position: unknown")
		return nil
	}
	p := data.Position
	fmt.Printf("%s page %d/%d\n%s\n", p.Chapter, p.Current, p.Total, p.CFI)
	return nil
}

func gotoCommand(args []string) error {
	fs := flag.NewFlagSet("goto", flag.ExitOnError)
	profile, socket := connFlags(fs)
	link := fs.String("link", "", "Link relative to the book base URL")
	cfi := fs.String("cfi", "", "Position as an EPUB CFI")
	_ = fs.Parse(args)

	switch {
	case *link != "" && *cfi != "":
		return fmt.Errorf("--link and --cfi are exclusive")
	case *link != "":
		return rpcCall(*profile, *socket, "goto_link", map[string]string{"link": *link}, nil)
	case *cfi != "":
		return rpcCall(*profile, *socket, "goto_position", map[string]string{"cfi": *cfi}, nil)
	}
	return fmt.Errorf("--link or --cfi is required")
}

func bookmarkCommand(args []string) error {
	fs := flag.NewFlagSet("bookmark", flag.ExitOnError)
	profile, socket := connFlags(fs)
	colorFlag := fs.String("color", "", "Bookmark color as r,g,b")
	remove := fs.Bool("remove", false, "Remove the bookmark on the current page")
	_ = fs.Parse(args)

	params := map[string]any{"color": nil}
	switch {
	case *remove && *colorFlag != "":
		return fmt.Errorf("--color and --remove are exclusive")
	case *remove:
	case *colorFlag != "":
		color, err := parseColor(*colorFlag)
		if err != nil {
			return err
		}
		params["color"] = color
	default:
		return fmt.Errorf("--color or --remove is required")
	}
	return rpcCall(*profile, *socket, "toggle_bookmark", params, nil)
}

func searchCommand(args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	profile, socket := connFlags(fs)
	keyword := fs.String("keyword", "", "Text to search for (case-insensitive)")
	cancel := fs.Bool("cancel", false, "Leave search mode")
	_ = fs.Parse(args)

	switch {
	case *cancel && *keyword != "":
		return fmt.Errorf("--keyword and --cancel are exclusive")
	case *cancel:
		return rpcCall(*profile, *socket, "search_text", map[string]any{"keyword": nil}, nil)
	case *keyword != "":
		if err := rpcCall(*profile, *socket, "search_text", map[string]string{"keyword": *keyword}, nil); err != nil {
			return err
		}
		fmt.Println("search started; results arrive as search_result events (folio watch)")
		return nil
	}
	return fmt.Errorf("--keyword or --cancel is required")
}

func annotationsCommand(args []string) error {
	fs := flag.NewFlagSet("annotations", flag.ExitOnError)
	profile, socket := connFlags(fs)
	kind := fs.String("kind", "bookmark", "highlight or bookmark")
	chapter := fs.String("chapter", "", "Chapter to list")
	_ = fs.Parse(args)
	if *chapter == "" {
		return fmt.Errorf("--chapter is required")
	}
	var raw json.RawMessage
	params := map[string]string{"kind": *kind, "chapter": *chapter}
	if err := rpcCall(*profile, *socket, "list_annotations", params, &raw); err != nil {
		return err
	}
	return printJSON(raw)
}

func watchCommand(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	profile, socket := connFlags(fs)
	_ = fs.Parse(args)

	client, err := dial(*profile, *socket)
	if err != nil {
		return err
	}
	defer client.Close()
	fmt.Println("Subscribed to viewer events (Ctrl+C to exit)")
	return client.Stream("subscribe_events", nil, func(raw json.RawMessage) error {
		fmt.Println(string(raw))
		return nil
	})
}

func parseColor(raw string) (core.Color, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 3 {
		return core.Color{}, fmt.Errorf("color %q must be r,g,b", raw)
	}
	var rgb [3]int
	for i, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return core.Color{}, fmt.Errorf("color %q: %w", raw, err)
		}
		rgb[i] = n
	}
	color := core.RGB(rgb[0], rgb[1], rgb[2])
	return color, core.ValidateColor(color)
}

func printJSON(raw json.RawMessage) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func dial(profile, socketOverride string) (*ipc.Client, error) {
	socketPath, err := resolveSocketPath(profile, socketOverride)
	if err != nil {
		return nil, err
	}
	return ipc.Dial(socketPath, 5*time.Second)
}

// rpcCall performs one request and decodes its result into out when out is
// not nil.
func rpcCall(profile, socketOverride, method string, params, out any) error {
	client, err := dial(profile, socketOverride)
	if err != nil {
		return err
	}
	defer client.Close()

	resp, err := client.Call(method, params)
	if err != nil {
		var rpcErr *ipc.Error
		if errors.As(err, &rpcErr) {
			return fmt.Errorf("daemon error: %w", rpcErr)
		}
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}

func resolveSocketPath(profile, override string) (string, error) {
	if override != "" {
		return override, nil
	}
	cfg, err := config.LoadProfile(profile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("config not found in %s (run 'folio init --profile %s')", profile, profile)
		}
		return "", fmt.Errorf("load config: %w", err)
	}
	return config.ResolvePath(profile, cfg.IPC.SocketPath), nil
}
