// Package main is the Kanren CLI entry point.
package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kanren/internal/align"
	"github.com/hyperjump/kanren/internal/cli"
	"github.com/hyperjump/kanren/internal/config"
	"github.com/hyperjump/kanren/internal/detect"
	"github.com/hyperjump/kanren/internal/embedding"
	"github.com/hyperjump/kanren/internal/extract"
	"github.com/hyperjump/kanren/internal/ingest"
	"github.com/hyperjump/kanren/internal/keyword"
	"github.com/hyperjump/kanren/internal/models"
	"github.com/hyperjump/kanren/internal/ocr"
	"github.com/hyperjump/kanren/internal/pipeline"
	"github.com/hyperjump/kanren/internal/progress"
	"github.com/hyperjump/kanren/internal/relations"
	"github.com/hyperjump/kanren/internal/server"
	"github.com/hyperjump/kanren/internal/storage"
	"github.com/hyperjump/kanren/internal/vector"
	"github.com/hyperjump/kanren/internal/videoid"
	"github.com/hyperjump/kanren/internal/watcher"
	"github.com/hyperjump/kanren/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/kanren/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default, config.yaml in the current
// directory wins if it exists. A .env file next to the loaded config is applied first.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				path = fallback
			}
		}
	}
	if err := config.LoadDotEnv(filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return nil, "", err
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
	case "init":
		runInit()
	case "import":
		runImport()
	case "ocr":
		runOCR()
	case "align":
		runAlign()
	case "lookup":
		runLookup()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("kanren version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads config and builds the logger and components; it exits on failure.
func setup(configPath string, debug bool) (*config.Config, string, *zap.Logger, *Components) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	components, err := initializeComponents(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	return cfg, resolved, logger, components
}

// flagsFirst moves any flags that follow the positional arguments to the front so that
// flag.Parse sees them; "kanren lookup lec01 3 -output json" otherwise leaves -output unparsed.
func flagsFirst(args []string) []string {
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

func parseFormat(s string) cli.OutputFormat {
	f, err := cli.ParseFormat(s)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return f
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (inbox events, worker jobs, etc.)")
	_ = fs.Parse(flagsFirst(os.Args[2:]))

	cfg, resolvedConfigPath, logger, components := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()
	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", cfg.Debug || *debug),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	components.Pipeline.Start(ctx)

	watchSvc := watcher.New(
		cfg.Watch.Directories,
		cfg.Watch.Extensions,
		cfg.Watch.RecursiveOrDefault(),
		components.Importer.ImportInboxFile,
		watcher.WithLogger(logger),
	)
	if err := watchSvc.Start(ctx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	go watchSvc.SyncExisting(ctx)

	srv := server.NewServer(server.Deps{
		Store:     components.Storage,
		Relations: components.Relations,
		Pipeline:  components.Pipeline,
		Keywords:  components.KeywordIndex,
		Broker:    components.Broker,
		Watch:     watchSvc,
		Backends:  components.Backends,
		DiskPaths: map[string]string{
			"database":      cfg.Storage.DatabasePath,
			"keyword_index": cfg.Storage.BleveIndexPath,
		},
	}, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchSvc.Stop()
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	_ = srv.Stop(stopCtx)
	cancel()
}

func runInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	force := fs.Bool("force", false, "overwrite an existing file")
	_ = fs.Parse(flagsFirst(os.Args[2:]))

	path := "config.yaml"
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}
	if err := writeDefaultConfig(path, *force); err != nil {
		fail("Init failed: %v", err)
	}
	fmt.Printf("Wrote default config to %s\n", path)
}

// writeDefaultConfig saves a config holding every default value to path.
func writeDefaultConfig(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	var cfg config.Config
	config.ApplyDefaults(&cfg)
	return config.Save(path, &cfg)
}

func runImport() {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	videoID := fs.String("video", "", "video ID (default: taken from the file name)")
	kind := fs.String("kind", "", "document kind: transcript or scenes (default: taken from the file name)")
	source := fs.String("source", "", "transcript source: youtube or whisper (default: taken from the file name)")
	_ = fs.Parse(flagsFirst(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: kanren import [flags] <file-or-directory>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	cfg, _, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	info, err := os.Stat(path)
	if err != nil {
		fail("Failed to stat path: %v", err)
	}
	if info.IsDir() {
		results, err := components.Importer.ImportDirectory(ctx, path, cfg.Watch.Extensions)
		for _, res := range results {
			printImport(res)
		}
		if err != nil {
			fail("Import failed: %v", err)
		}
		fmt.Printf("Imported %d file(s) from %s\n", len(results), path)
		return
	}
	res, err := components.Importer.ImportFile(ctx, ingest.Request{
		VideoID: *videoID,
		Path:    path,
		Kind:    videoid.FileKind(*kind),
		Source:  models.TranscriptSource(*source),
	})
	if err != nil {
		fail("Import failed: %v", err)
	}
	printImport(res)
}

func printImport(res *ingest.Result) {
	if res.Skipped {
		fmt.Printf("%s: %s unchanged, skipped\n", res.VideoID, res.Kind)
		return
	}
	if res.Source != "" {
		fmt.Printf("%s: stored %d %s %s entries\n", res.VideoID, res.Count, res.Source, res.Kind)
		return
	}
	fmt.Printf("%s: stored %d %s\n", res.VideoID, res.Count, res.Kind)
}

func runOCR() {
	fs := flag.NewFlagSet("ocr", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	preference := fs.String("preference", "", "tesseract, freeform, or both (default from config)")
	outputFormat := fs.String("output", "auto", "output format: auto, text, or json")
	_ = fs.Parse(flagsFirst(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: kanren ocr [flags] <video-id>")
		os.Exit(1)
	}
	id := fs.Arg(0)
	format := parseFormat(*outputFormat)

	cfg, _, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	pref := cfg.OCR.Preference
	if *preference != "" {
		pref = *preference
	}
	p, err := ocr.ParsePreference(pref)
	if err != nil {
		fail("%v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	components.Pipeline.Start(ctx)
	run, err := components.Pipeline.Submit(ctx, id, p)
	if err != nil {
		fail("OCR failed: %v", err)
	}
	if err := run.Wait(ctx); err != nil {
		fail("OCR interrupted: %v", err)
	}

	st, err := videoStatusDirect(ctx, components, id)
	if err != nil {
		fail("Status failed: %v", err)
	}
	if err := cli.WriteStatus(os.Stdout, st, format); err != nil {
		fail("Output failed: %v", err)
	}
}

func runAlign() {
	fs := flag.NewFlagSet("align", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	force := fs.Bool("force", false, "drop the stored graph and recompute")
	outputFormat := fs.String("output", "auto", "output format: auto, text, or json")
	_ = fs.Parse(flagsFirst(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: kanren align [flags] <video-id>")
		os.Exit(1)
	}
	id := fs.Arg(0)
	format := parseFormat(*outputFormat)

	_, _, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	if *force {
		if err := components.Relations.Invalidate(ctx, id); err != nil {
			fail("Invalidate failed: %v", err)
		}
	}
	g, err := components.Relations.Graph(ctx, id)
	if err != nil {
		fail("Alignment failed: %v", err)
	}
	if err := cli.WriteGraph(os.Stdout, g, format); err != nil {
		fail("Output failed: %v", err)
	}
}

func runLookup() {
	fs := flag.NewFlagSet("lookup", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (for direct storage mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = use direct storage)")
	outputFormat := fs.String("output", "auto", "output format: auto, text, or json")
	_ = fs.Parse(flagsFirst(os.Args[2:]))

	if fs.NArg() < 2 {
		fmt.Println("Usage: kanren lookup [flags] <video-id> <transcript-index>")
		os.Exit(1)
	}
	id := fs.Arg(0)
	index, err := strconv.Atoi(fs.Arg(1))
	if err != nil || index < 0 {
		fail("transcript index must be a non-negative integer")
	}
	format := parseFormat(*outputFormat)

	var l *cli.Lookup
	if *serverURL != "" {
		l, err = lookupViaHTTP(*serverURL, id, index)
	} else {
		_, _, logger, components := setup(*configPath, false)
		defer logger.Sync()
		defer components.Close()
		l, err = lookupDirect(context.Background(), components.Relations, id, index)
	}
	if err != nil {
		fail("Lookup failed: %v", err)
	}
	if err := cli.WriteLookup(os.Stdout, l, format); err != nil {
		fail("Output failed: %v", err)
	}
}

func lookupDirect(ctx context.Context, rel *relations.Store, id string, index int) (*cli.Lookup, error) {
	matches, err := rel.TranscriptMatches(ctx, id, index)
	if err != nil {
		return nil, err
	}
	scenes, err := rel.SceneForTranscript(ctx, id, index)
	if err != nil {
		return nil, err
	}
	return &cli.Lookup{VideoID: id, TranscriptIndex: index, SceneIndices: scenes, Matches: matches}, nil
}

func lookupViaHTTP(serverURL, id string, index int) (*cli.Lookup, error) {
	base := videoURL(serverURL, id) + "/transcript/" + strconv.Itoa(index)
	l := &cli.Lookup{VideoID: id, TranscriptIndex: index}
	if err := getJSON(base+"/ocr", l); err != nil {
		return nil, err
	}
	if err := getJSON(base+"/scenes", l); err != nil {
		return nil, err
	}
	return l, nil
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (for direct storage mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = use direct storage)")
	outputFormat := fs.String("output", "auto", "output format: auto, text, or json")
	_ = fs.Parse(flagsFirst(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: kanren status [flags] <video-id>")
		os.Exit(1)
	}
	id := fs.Arg(0)
	format := parseFormat(*outputFormat)

	var (
		st  *cli.VideoStatus
		err error
	)
	if *serverURL != "" {
		st, err = statusViaHTTP(*serverURL, id)
	} else {
		_, _, logger, components := setup(*configPath, false)
		defer logger.Sync()
		defer components.Close()
		st, err = videoStatusDirect(context.Background(), components, id)
	}
	if err != nil {
		fail("Status failed: %v", err)
	}
	if err := cli.WriteStatus(os.Stdout, st, format); err != nil {
		fail("Output failed: %v", err)
	}
}

func videoStatusDirect(ctx context.Context, c *Components, id string) (*cli.VideoStatus, error) {
	st := &cli.VideoStatus{}
	var err error
	if st.Processing, err = c.Pipeline.Status(ctx, id); err != nil {
		return nil, err
	}
	if st.Relationships, err = c.Relations.Status(ctx, id); err != nil {
		return nil, err
	}
	scenes, err := c.Storage.GetScenes(ctx, id)
	if err == nil {
		st.SceneCount = len(scenes)
		st.OcrReport = extract.OcrReport(scenes)
	} else if !stderrors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	return st, nil
}

func statusViaHTTP(serverURL, id string) (*cli.VideoStatus, error) {
	base := videoURL(serverURL, id)
	st := &cli.VideoStatus{}
	if err := getJSON(base+"/ocr/status", &st.Processing); err != nil {
		return nil, err
	}
	if err := getJSON(base+"/relationships/status", &st.Relationships); err != nil {
		return nil, err
	}
	var report models.OcrTextReport
	if err := getJSON(base+"/ocr", &report); err == nil {
		st.OcrReport = &report
		var scenes struct {
			Scenes []models.Scene `json:"scenes"`
		}
		if err := getJSON(base+"/scenes", &scenes); err == nil {
			st.SceneCount = len(scenes.Scenes)
		}
	}
	return st, nil
}

func videoURL(serverURL, id string) string {
	return strings.TrimRight(serverURL, "/") + "/api/v1/videos/" + url.PathEscape(id)
}

func getJSON(u string, out interface{}) error {
	resp, err := http.Get(u)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Components holds initialized services.
type Components struct {
	Storage      storage.Storage
	Embedder     embedding.Embedder
	KeywordIndex keyword.KeywordIndex
	Broker       progress.Broker
	Models       pipeline.Models
	Engine       *align.Engine
	Relations    *relations.Store
	Pipeline     *pipeline.Pipeline
	Importer     *ingest.Importer
	// Backends names the implementation behind each capability; "unavailable" marks a nil one.
	Backends map[string]string
}

// Close stops background work and releases every component.
func (c *Components) Close() {
	if c.Pipeline != nil {
		c.Pipeline.Close()
	}
	if c.Relations != nil {
		c.Relations.Wait()
	}
	_ = c.Models.Close()
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Broker != nil {
		_ = c.Broker.Close()
	}
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

const unavailable = "unavailable"

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{Backends: map[string]string{}}

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath, storage.WithLockDir(cfg.Storage.LockDir))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.Storage = store

	keywordIndex, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}
	c.KeywordIndex = keywordIndex

	broker, err := progress.NewBroker(ctx, cfg.Progress.Backend, cfg.Progress.RedisAddr, cfg.Progress.BufferSize, logger)
	if err != nil {
		logger.Warn("progress broker unavailable, falling back to memory",
			zap.String("requested_backend", cfg.Progress.Backend), zap.Error(err))
		broker = progress.NewMemoryBroker(progress.WithBufferSize(cfg.Progress.BufferSize), progress.WithLogger(logger))
		c.Backends["progress"] = "memory"
	} else {
		c.Backends["progress"] = cfg.Progress.Backend
	}
	c.Broker = broker

	c.Embedder = loadEmbedder(cfg, logger)
	c.Backends["embedding"] = unavailable
	if c.Embedder != nil {
		c.Backends["embedding"] = "onnx"
	}
	c.Backends["vector"] = cfg.Vector.IndexType
	logger.Info("vector index backend",
		zap.String("type", cfg.Vector.IndexType),
		zap.Bool("faiss_available", vector.IsFAISSAvailable()))

	c.Models = loadModels(cfg, logger)
	c.Backends["detector"] = backendName(c.Models.Detector != nil, "yolo")
	c.Backends["box_ocr"] = backendName(c.Models.BoxOCR != nil, "tesseract")
	c.Backends["freeform_ocr"] = backendName(c.Models.FreeformOCR != nil, "tesseract")

	c.Engine = align.NewEngine(c.Embedder, store,
		align.WithOptions(align.Options{
			TopK:                cfg.Alignment.TopK,
			SimilarityThreshold: cfg.Alignment.SimilarityThreshold,
			SceneBuffer:         cfg.Alignment.SceneBufferSeconds,
			MissingEnd:          cfg.Alignment.MissingEndSeconds,
			IndexType:           cfg.Vector.IndexType,
			QdrantAddress:       cfg.Vector.QdrantAddress,
		}),
		align.WithKeywordIndex(keywordIndex),
		align.WithBroker(broker),
		align.WithLogger(logger),
	)
	c.Relations = relations.NewStore(store, c.Engine,
		relations.WithLogger(logger),
		relations.WithKeywordIndex(keywordIndex),
		relations.WithSceneWindow(cfg.Alignment.SceneBufferSeconds, cfg.Alignment.MissingEndSeconds),
	)
	rel := c.Relations
	c.Pipeline = pipeline.New(store, c.Models,
		pipeline.WithLogger(logger),
		pipeline.WithBroker(broker),
		pipeline.WithOptions(pipeline.Options{
			QueueSize:      cfg.Pipeline.QueueSize,
			MergeThreshold: cfg.OCR.MergeThreshold,
			DedupThreshold: cfg.OCR.DedupThreshold,
		}),
		pipeline.WithOnComplete(func(ctx context.Context, videoID string) {
			if err := rel.Invalidate(ctx, videoID); err != nil {
				logger.Warn("invalidate relationships after OCR failed", zap.String("video_id", videoID), zap.Error(err))
			}
		}),
	)
	c.Importer = ingest.NewImporter(store, ingest.WithLogger(logger), ingest.WithInvalidator(rel))
	return c, nil
}

func backendName(ok bool, name string) string {
	if ok {
		return name
	}
	return unavailable
}

// loadEmbedder returns nil when the ONNX model cannot be loaded; alignment then reports
// ModelUnavailable instead of matching on meaningless vectors.
func loadEmbedder(cfg *config.Config, logger *zap.Logger) embedding.Embedder {
	onnxEmbedder, err := embedding.NewONNXEmbedder(embedding.ONNXOptions{
		ModelPath:         cfg.Embedding.ModelPath,
		TokenizerPath:     cfg.Embedding.TokenizerPath,
		SharedLibraryPath: cfg.Embedding.SharedLibraryPath,
		Dimensions:        cfg.Embedding.Dimensions,
		MaxTokens:         cfg.Embedding.MaxTokens,
		BatchSize:         cfg.Embedding.BatchSize,
	})
	if err != nil {
		logger.Warn("embedding model unavailable", zap.String("model_path", cfg.Embedding.ModelPath), zap.Error(err))
		return nil
	}
	if cfg.Embedding.CacheSize > 0 {
		return embedding.NewCachedEmbedder(onnxEmbedder, cfg.Embedding.CacheSize)
	}
	return onnxEmbedder
}

// loadModels loads each recognition model on its own; a model that fails to load leaves its
// field nil and the pipeline skips that stage.
func loadModels(cfg *config.Config, logger *zap.Logger) pipeline.Models {
	var m pipeline.Models
	det, err := detect.NewYOLODetector(detect.YOLOOptions{
		ModelPath:         cfg.Detector.ModelPath,
		SharedLibraryPath: cfg.Embedding.SharedLibraryPath,
		InputSize:         cfg.Detector.InputSize,
		Classes:           cfg.Detector.Classes,
		MinConfidence:     cfg.Detector.ConfidenceThreshold,
		NMSThreshold:      cfg.Detector.NMSThreshold,
	})
	if err != nil {
		logger.Warn("layout detector unavailable", zap.String("model_path", cfg.Detector.ModelPath), zap.Error(err))
	} else {
		m.Detector = det
	}

	langs := strings.Split(cfg.OCR.Language, "+")
	box, err := ocr.NewTesseractEngine(langs...)
	if err != nil {
		logger.Warn("box OCR unavailable", zap.Error(err))
	} else {
		m.BoxOCR = box
	}
	lines, err := ocr.NewTesseractLines(cfg.OCR.FreeformMinConfidence, langs...)
	if err != nil {
		logger.Warn("freeform OCR unavailable", zap.Error(err))
	} else {
		m.FreeformOCR = lines
	}
	return m
}

func printUsage() {
	fmt.Println(`kanren - Link what is said in a video to what is shown on screen

Usage:
  kanren init [flags] [path]                 Write a default config (default: ./config.yaml)
  kanren server [flags]                      Start the HTTP server and transcript inbox
  kanren import [flags] <file-or-directory>  Import transcripts and scene documents
  kanren ocr [flags] <video-id>              Run layout detection and OCR over a video's scenes
  kanren align [flags] <video-id>            Compute (or show) the relationship graph
  kanren lookup [flags] <video-id> <index>   Show on-screen text for one transcript sentence
  kanren status [flags] <video-id>           Show processing and relationship status
  kanren version                             Show version
  kanren help                                Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/kanren/config.yaml)
  --debug            Enable debug logging

Import Flags:
  --video string     Video ID (default: taken from the file name, <id>[.whisper|.scenes].<srt|json>)
  --kind string      transcript or scenes
  --source string    youtube or whisper

OCR Flags:
  --preference string  tesseract, freeform, or both (default from config)

Align Flags:
  --force            Drop the stored graph and recompute

Lookup and Status Flags:
  --server string    Server URL (default: http://localhost:8080). Use --server "" for direct storage.

Common Flags:
  --output string    auto (text on a terminal, json otherwise), text, or json

Examples:
  kanren init
  kanren server
  kanren import ./inbox
  kanren import --video lec01 --source whisper lecture.srt
  kanren ocr --preference both lec01
  kanren align lec01
  kanren lookup lec01 12
  kanren status --output json lec01`)
}
