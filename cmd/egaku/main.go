// Package main is the Egaku CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hyperjump/egaku/internal/cli"
	"github.com/hyperjump/egaku/internal/config"
	"github.com/hyperjump/egaku/internal/embedding"
	"github.com/hyperjump/egaku/internal/keyword"
	"github.com/hyperjump/egaku/internal/library"
	"github.com/hyperjump/egaku/internal/match"
	"github.com/hyperjump/egaku/internal/models"
	"github.com/hyperjump/egaku/internal/resample"
	"github.com/hyperjump/egaku/internal/server"
	"github.com/hyperjump/egaku/internal/storage"
	"github.com/hyperjump/egaku/internal/watcher"
	"github.com/hyperjump/egaku/pkg/utils"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/egaku/config.yaml"

// loadConfig loads config from path. When path is the default, config.yaml in the current
// directory wins if it exists; when neither exists the built-in defaults are used.
// Returns the config and the path that was actually loaded ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "match":
		runMatch(false)
	case "rank":
		runMatch(true)
	case "import":
		runImport()
	case "list":
		runList()
	case "delete":
		runDelete()
	case "plot":
		runPlot()
	case "status":
		runStatus()
	case "config":
		runConfig()
	case "version", "--version", "-v":
		fmt.Printf("egaku version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// argsReorder moves any flags (and their values) that appear after the positional arguments
// to the front so that flag.Parse sees them: "egaku match hook.json -output json".
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (library reloads, skipped references, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fail("Failed to load config: %v", err)
	}
	cfg.Debug = cfg.Debug || *debug
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fail("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", cfg.Debug),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n, err := components.Reloader.LoadDirs(ctx, cfg.Library.Directories, cfg.Library.Extensions, cfg.Library.RecursiveOrDefault())
	if err != nil {
		logger.Fatal("Failed to load reference drawings", zap.Error(err))
	}
	logger.Info("library loaded",
		zap.Int("files", n),
		zap.Int("references", components.Store.Len()),
		zap.Bool("matcher_ready", components.Service.Matcher().Ready()),
	)

	var watch *watcher.Watcher
	if len(cfg.Library.Directories) > 0 {
		watch = components.Reloader.Watch(ctx, cfg.Library.Directories, cfg.Library.Extensions, cfg.Library.RecursiveOrDefault())
		if err := watch.Start(ctx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watch.Stop()
	}

	srv := server.NewServer(components.Service, components.Storage, components.Catalog, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

// readQuery loads the first drawing in a drawing file and returns its points.
func readQuery(path string) (models.Sequence, error) {
	drawings, err := library.LoadFile(path)
	if err != nil {
		return nil, err
	}
	if len(drawings) == 0 {
		return nil, fmt.Errorf("%s: no drawings", path)
	}
	return drawings[0].Sequence(), nil
}

// runMatch prints the closest reference to a drawing file, or the top-k ranking when rank is set.
func runMatch(rank bool) {
	name := "match"
	if rank {
		name = "rank"
	}
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	k := fs.Int("k", 0, "number of references to rank (default from config)")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Printf("Usage: egaku %s [flags] <drawing.json>\n", name)
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fail("%v", err)
	}
	query, err := readQuery(fs.Arg(0))
	if err != nil {
		fail("Failed to read drawing: %v", err)
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fail("Failed to load config: %v", err)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fail("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	if _, err := components.Reloader.LoadDirs(ctx, cfg.Library.Directories, cfg.Library.Extensions, cfg.Library.RecursiveOrDefault()); err != nil {
		fail("Failed to load reference drawings: %v", err)
	}

	if !rank {
		result, err := components.Service.Match(ctx, query)
		if err != nil {
			fail("Match failed: %v", err)
		}
		if err := cli.WriteMatchResult(os.Stdout, result, format); err != nil {
			fail("Output failed: %v", err)
		}
		return
	}

	topK := *k
	if topK <= 0 {
		topK = cfg.Match.TopK
	}
	ranked, err := components.Service.Rank(ctx, query, topK)
	if err != nil {
		fail("Rank failed: %v", err)
	}
	if err := cli.WriteRanking(os.Stdout, ranked, format); err != nil {
		fail("Output failed: %v", err)
	}
}

// collectDrawings reads drawings from files and directories.
func collectDrawings(paths, exts []string, recursive bool) ([]*models.Drawing, error) {
	var out []*models.Drawing
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		var drawings []*models.Drawing
		if info.IsDir() {
			drawings, err = library.LoadDir(path, exts, recursive)
		} else {
			abs, absErr := filepath.Abs(path)
			if absErr != nil {
				abs = path
			}
			drawings, err = library.LoadFile(abs)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, drawings...)
	}
	return out, nil
}

func runImport() {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: egaku import [flags] <file-or-directory>...")
		os.Exit(1)
	}
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fail("Failed to load config: %v", err)
	}
	drawings, err := collectDrawings(fs.Args(), cfg.Library.Extensions, cfg.Library.RecursiveOrDefault())
	if err != nil {
		fail("Failed to read drawings: %v", err)
	}

	db, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		fail("Failed to open storage: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	for _, d := range drawings {
		if err := db.PutDrawing(ctx, d); err != nil {
			fail("Import of %q failed: %v", d.Name, err)
		}
	}
	fmt.Printf("Imported %d drawing(s)\n", len(drawings))
}

func runList() {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	q := fs.String("q", "", "only list drawings whose name or description matches")
	limit := fs.Int("limit", 100, "maximum number of drawings")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fail("%v", err)
	}
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fail("Failed to load config: %v", err)
	}
	db, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		fail("Failed to open storage: %v", err)
	}
	defer db.Close()

	drawings, err := listDrawings(context.Background(), db, *q, *limit)
	if err != nil {
		fail("List failed: %v", err)
	}
	if err := cli.WriteDrawings(os.Stdout, drawings, format); err != nil {
		fail("Output failed: %v", err)
	}
}

// listDrawings returns up to limit stored drawings, filtered through an in-memory catalog when
// q is set.
func listDrawings(ctx context.Context, db storage.Storage, q string, limit int) ([]*models.Drawing, error) {
	if q == "" {
		return db.ListDrawings(ctx, 0, limit)
	}
	all, err := storage.ListAll(ctx, db)
	if err != nil {
		return nil, err
	}
	catalog, err := keyword.NewCatalogIndex()
	if err != nil {
		return nil, err
	}
	defer catalog.Close()
	if err := catalog.IndexDrawings(ctx, all); err != nil {
		return nil, err
	}
	hits, err := catalog.Search(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]*models.Drawing, len(all))
	for _, d := range all {
		byName[d.Name] = d
	}
	out := make([]*models.Drawing, 0, len(hits))
	for _, name := range keyword.Names(hits) {
		if d, ok := byName[name]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: egaku delete [flags] <name>")
		os.Exit(1)
	}
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fail("Failed to load config: %v", err)
	}
	db, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		fail("Failed to open storage: %v", err)
	}
	defer db.Close()

	name := fs.Arg(0)
	if err := db.DeleteDrawing(context.Background(), name); err != nil {
		fail("Deletion failed: %v", err)
	}
	fmt.Printf("Drawing deleted: %s\n", name)
}

func runPlot() {
	fs := flag.NewFlagSet("plot", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	out := fs.String("o", "", "output image path (default: <drawing>.png)")
	projection := fs.String("projection", string(cli.ProjectionXY), "projection: xy, xz or yz")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: egaku plot [flags] <drawing.json>")
		os.Exit(1)
	}
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fail("Failed to load config: %v", err)
	}
	path := fs.Arg(0)
	outPath := *out
	if outPath == "" {
		outPath = plotPath(path)
	}
	if err := plotDrawing(cfg, path, outPath, cli.Projection(*projection)); err != nil {
		fail("Plot failed: %v", err)
	}
	fmt.Printf("Preview written: %s\n", outPath)
}

// plotPath replaces the drawing file's extension with .png.
func plotPath(path string) string {
	return path[:len(path)-len(filepath.Ext(path))] + ".png"
}

// plotDrawing renders a drawing file and its query-seeded resampling to outPath.
func plotDrawing(cfg *config.Config, path, outPath string, proj cli.Projection) error {
	drawings, err := library.LoadFile(path)
	if err != nil {
		return err
	}
	if len(drawings) == 0 {
		return fmt.Errorf("%s: no drawings", path)
	}
	d := drawings[0]
	r, err := resample.New(cfg.Sampling.Policy, cfg.Sampling.JitterRatio, cfg.Sampling.Upscale)
	if err != nil {
		return err
	}
	sampled, err := r.Resample(d.Points, cfg.Embedding.Points, resample.Seed(cfg.Sampling.QuerySeed))
	if err != nil {
		return err
	}
	return cli.RenderPreview(outPath, d.Name, d.Points, sampled, proj)
}

// statusResponse is the subset of GET /api/v1/status the CLI prints.
type statusResponse struct {
	Ready             bool   `json:"ready"`
	LibraryReady      bool   `json:"library_ready"`
	References        int    `json:"references"`
	StoredDrawings    *int64 `json:"stored_drawings,omitempty"`
	DatabaseSizeBytes *int64 `json:"database_size_bytes,omitempty"`
	SchemaVersion     *uint  `json:"schema_version,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8090", "server URL (empty = read storage directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fail("%v", err)
	}

	var status *statusResponse
	if *serverURL != "" {
		status, err = statusViaHTTP(*serverURL)
	} else {
		var cfg *config.Config
		cfg, _, err = loadConfig(*configPath)
		if err != nil {
			fail("Failed to load config: %v", err)
		}
		status, err = statusFromStorage(context.Background(), cfg)
	}
	if err != nil {
		fail("Status failed: %v", err)
	}
	if err := writeStatus(os.Stdout, status, format); err != nil {
		fail("Output failed: %v", err)
	}
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

// statusFromStorage reports what a server started with cfg would load from storage.
func statusFromStorage(ctx context.Context, cfg *config.Config) (*statusResponse, error) {
	db, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	n, err := db.CountDrawings(ctx)
	if err != nil {
		return nil, err
	}
	schema, err := db.SchemaVersion()
	if err != nil {
		return nil, err
	}
	s := &statusResponse{StoredDrawings: &n, SchemaVersion: &schema}
	if size, err := storage.DatabaseSize(cfg.Storage.DatabasePath); err == nil {
		s.DatabaseSizeBytes = &size
	}
	return s, nil
}

func writeStatus(w io.Writer, s *statusResponse, format cli.OutputFormat) error {
	if format == cli.OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}
	fmt.Fprintf(w, "ready:              %t   # library loaded and embedder available\n", s.Ready)
	fmt.Fprintf(w, "references:         %d\n", s.References)
	if s.StoredDrawings != nil {
		fmt.Fprintf(w, "stored_drawings:    %d\n", *s.StoredDrawings)
	}
	if s.DatabaseSizeBytes != nil {
		fmt.Fprintf(w, "database_size:      %d   # bytes, including WAL\n", *s.DatabaseSizeBytes)
	}
	if s.SchemaVersion != nil {
		fmt.Fprintf(w, "schema_version:     %d\n", *s.SchemaVersion)
	}
	return nil
}

func runConfig() {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	write := fs.String("w", "", "write the default config to this path instead of printing the resolved one")
	_ = fs.Parse(os.Args[2:])

	if *write != "" {
		if err := config.Save(*write, config.Default()); err != nil {
			fail("%v", err)
		}
		fmt.Printf("Config written: %s\n", *write)
		return
	}
	cfg, resolved, err := loadConfig(*configPath)
	if err != nil {
		fail("Failed to load config: %v", err)
	}
	if resolved == "" {
		resolved = "(defaults)"
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		fail("%v", err)
	}
	fmt.Printf("# %s\n%s", resolved, data)
}

// Components holds initialized services.
type Components struct {
	Storage  storage.Storage
	Catalog  keyword.Catalog
	Embedder embedding.Embedder
	Store    *library.Store
	Service  *match.Service
	Reloader *watcher.Reloader
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Catalog != nil {
		_ = c.Catalog.Close()
	}
}

// newEmbedder builds the configured embedder. It returns nil when the ONNX model cannot be
// loaded, which leaves the matcher not ready so every query answers "None".
func newEmbedder(cfg *config.Config, logger *zap.Logger) embedding.Embedder {
	switch cfg.Embedding.Backend {
	case config.BackendMock:
		return embedding.NewCachedEmbedder(embedding.NewMockEmbedder(cfg.Embedding.Dimensions), cfg.Embedding.CacheSize)
	default:
		onnxEmbedder, err := embedding.NewONNXEmbedder(embedding.ONNXConfig{
			ModelPath:  cfg.Embedding.ModelPath,
			Points:     cfg.Embedding.Points,
			Dimensions: cfg.Embedding.Dimensions,
			InputName:  cfg.Embedding.InputName,
			OutputName: cfg.Embedding.OutputName,
			CacheSize:  cfg.Embedding.CacheSize,
		})
		if err != nil {
			logger.Warn("embedding model unavailable, matches will return None",
				zap.String("model_path", cfg.Embedding.ModelPath),
				zap.Error(err))
			return nil
		}
		return onnxEmbedder
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	db, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	catalog, err := keyword.NewCatalogIndex()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize catalog: %w", err)
	}

	resampler, err := resample.New(cfg.Sampling.Policy, cfg.Sampling.JitterRatio, cfg.Sampling.Upscale)
	if err != nil {
		_ = db.Close()
		_ = catalog.Close()
		return nil, err
	}

	embedder := newEmbedder(cfg, logger)
	matcher := match.New(embedder,
		match.WithResampler(resampler),
		match.WithPoints(cfg.Embedding.Points),
		match.WithQuerySeed(cfg.Sampling.QuerySeed),
		match.WithWorkers(cfg.Match.Workers),
		match.WithLogger(utils.Named(logger, "match")),
	)

	store := library.NewStore()
	return &Components{
		Storage:  db,
		Catalog:  catalog,
		Embedder: embedder,
		Store:    store,
		Service:  match.NewService(matcher, store),
		Reloader: watcher.NewReloader(store, db, catalog, utils.Named(logger, "library")),
	}, nil
}

func printUsage() {
	fmt.Println(`egaku - 3D drawing matcher

Usage:
  egaku server [flags]              Start the HTTP server
  egaku match [flags] <file>        Print the closest reference drawing, or None
  egaku rank [flags] <file>         Print the k closest reference drawings
  egaku import [flags] <path>...    Store drawing files or directories
  egaku list [flags]                List stored drawings
  egaku delete [flags] <name>       Delete a stored drawing
  egaku plot [flags] <file>         Render a drawing and its resampled points to an image
  egaku status [flags]              Show library and storage status
  egaku config [flags]              Print the resolved config, or write the defaults
  egaku version                     Show version
  egaku help                        Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/egaku/config.yaml)

Server Flags:
  --debug            Enable debug logging

Match/Rank Flags:
  --output string    Output format: text or json (default: text)
  --k int            Number of references to rank (default from config)

List Flags:
  --q string         Only list drawings whose name or description matches (typo tolerant)
  --limit int        Maximum number of drawings (default: 100)

Plot Flags:
  --o string            Output image path; .png, .svg and .pdf are supported
  --projection string   xy, xz or yz (default: xy)

Status Flags:
  --server string    Server URL (default: http://localhost:8090). Use empty (--server "") to read storage directly.

Examples:
  egaku server
  egaku import ./drawings
  egaku match query.json
  egaku rank --k 3 --output json query.json
  egaku list --q circle
  egaku plot --projection xz -o hook.png hook.json
  egaku config -w config.yaml`)
}
