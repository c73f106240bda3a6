package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"media-scraper/pkg/batch"
	"media-scraper/pkg/catalog"
	"media-scraper/pkg/config"
	"media-scraper/pkg/storage"
)

const version = "1.0.0"

// stateGCInterval is how often the asset state store runs value-log GC.
const stateGCInterval = 5 * time.Minute

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "scrape":
		runScrape(os.Args[2:])
	case "watch":
		runWatch(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "report":
		runReport(os.Args[2:])
	case "mcp-server":
		runMcpServer(os.Args[2:])
	case "version":
		fmt.Printf("media-scraper %s\n", version)
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	printUsageTo(os.Stdout)
}

// printUsageTo writes usage information to the provided writer.
func printUsageTo(w io.Writer) {
	fmt.Fprintln(w, `media-scraper - Product media downloader

Usage:
  media-scraper <command> [options]

Commands:
  scrape      Scrape images and videos for a product catalog
  watch       Re-scrape catalogs on a schedule
  validate    Validate configuration and catalog files
  report      Summarize a previous run's report file
  mcp-server  Start MCP server for AI tool integration
  version     Show version info

Run 'media-scraper <command> -h' for command-specific help.`)
}

// loadConfig loads and parses the config file. An empty path yields a
// default configuration (Validate fills every field).
func loadConfig(path string) (*config.AppConfig, error) {
	if path == "" {
		return &config.AppConfig{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg config.AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

// runScrape handles the scrape subcommand
func runScrape(args []string) {
	fs := flag.NewFlagSet("scrape", flag.ExitOnError)
	configFile := fs.String("config", "", "Path to config file (optional, defaults apply)")
	catalogFile := fs.String("catalog", "", "Path to JSON product catalog (required)")
	outputDir := fs.String("output", "", "Output directory (overrides output_root)")
	reportFile := fs.String("report", "", "Report file path (overrides report_file)")
	resumeFrom := fs.Int("resume-from", 1, "1-based chunk index to resume from")
	maxImages := fs.Int("max-images", 0, "Per-product image cap (overrides max_images)")
	maxVideos := fs.Int("max-videos", -1, "Per-product video cap (overrides max_videos)")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error, fatal)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: media-scraper scrape [options]\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  media-scraper scrape -catalog products.json\n")
		fmt.Fprintf(os.Stderr, "  media-scraper scrape -catalog products.json -resume-from 3\n")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if *catalogFile == "" {
		fmt.Fprintln(os.Stderr, "Error: -catalog is required")
		fs.Usage()
		os.Exit(1)
	}

	executeScrape(*configFile, *catalogFile, *outputDir, *reportFile, *resumeFrom, *maxImages, *maxVideos, *logLevel)
}

// setupLogger creates a configured logrus.Logger with the given log level.
func setupLogger(logLevelStr string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	log.SetLevel(logrus.InfoLevel)

	level, err := logrus.ParseLevel(logLevelStr)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", logLevelStr, err)
	} else {
		log.SetLevel(level)
	}

	return log
}

// loadAndValidateConfig loads the config file, validates it, and logs warnings.
func loadAndValidateConfig(configFile string, log *logrus.Logger) *config.AppConfig {
	if configFile != "" {
		log.Infof("Loading configuration from %s", configFile)
	}
	appCfg, err := loadConfig(configFile)
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	warnings, _ := appCfg.Validate()
	for _, w := range warnings {
		log.Warn(w)
	}

	return appCfg
}

// executeScrape runs a full catalog scrape
func executeScrape(configFile, catalogFile, outputDir, reportFile string, resumeFrom, maxImages, maxVideos int, logLevelStr string) {
	log := setupLogger(logLevelStr)
	appCfg := loadAndValidateConfig(configFile, log)

	if outputDir != "" {
		appCfg.OutputRoot = outputDir
	}
	if reportFile != "" {
		appCfg.ReportFile = reportFile
	}
	if maxImages > 0 {
		appCfg.MaxImages = maxImages
	}
	if maxVideos >= 0 {
		appCfg.MaxVideos = maxVideos
	}

	log.Infof("Config: OutputRoot:%s, RateLimit:%v, BatchSize:%d, BatchCooldown:%v, MaxImages:%d, MaxVideos:%d",
		appCfg.OutputRoot, appCfg.RateLimit, appCfg.BatchSize, appCfg.BatchCooldown, appCfg.MaxImages, appCfg.MaxVideos)

	products, err := catalog.Load(catalogFile, log)
	if err != nil {
		log.Fatalf("Catalog error: %v", err)
	}
	log.Infof("Loaded %d products from %s", len(products), catalogFile)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		sig := <-sigChan
		log.Warnf("Received signal %v, finishing current product then stopping...", sig)
		cancel()

		select {
		case sig = <-sigChan:
			log.Warnf("Received second signal: %v. Forcing exit.", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			log.Warn("Graceful shutdown period exceeded after signal. Forcing exit.")
			os.Exit(1)
		}
	}()

	logEntry := log.WithField("component", "scrape")

	var assetStore storage.AssetStore
	if appCfg.EnableStateStore {
		store, err := storage.NewBadgerStore(appCfg.StateDir, true, logEntry)
		if err != nil {
			log.Fatalf("Failed to open asset state store: %v", err)
		}
		defer store.Close()
		go store.RunGC(ctx, stateGCInterval)
		assetStore = store
	}

	runner := buildRunner(appCfg, assetStore, log)

	report, err := runner.Run(ctx, products, resumeFrom)
	if err != nil {
		log.Fatalf("Batch run failed: %v", err)
	}

	if writeErr := batch.WriteReport(report, appCfg.ReportFile); writeErr != nil {
		log.Errorf("Failed to write report: %v", writeErr)
	} else {
		log.Infof("Report written to %s", appCfg.ReportFile)
	}

	fmt.Printf("Products: %d  Images: %d  Videos: %d  Errors: %d  Success rate: %s\n",
		report.TotalProducts, report.TotalImagesDownloaded, report.TotalVideosDownloaded,
		report.TotalErrors, report.SuccessRate)

	if ctx.Err() != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			log.Warn("Scrape cancelled gracefully, partial report written.")
			os.Exit(0)
		}
		log.Error("Scrape stopped by context error.")
		os.Exit(1)
	}
}

// runValidate handles the validate subcommand
func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configFile := fs.String("config", "", "Path to config file")
	catalogFile := fs.String("catalog", "", "Path to catalog file (optional)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: media-scraper validate [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	exitCode := doValidate(*configFile, *catalogFile, os.Stdout, os.Stderr)
	os.Exit(exitCode)
}

// doValidate performs validation and writes output to provided writers.
// Returns exit code (0 = success, 1 = error).
func doValidate(configPath, catalogPath string, stdout, stderr io.Writer) int {
	appCfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	warnings, _ := appCfg.Validate()
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}
	if configPath != "" {
		fmt.Fprintf(stdout, "OK: config '%s' is valid\n", configPath)
	}

	if catalogPath != "" {
		log := logrus.New()
		log.SetOutput(stderr)
		products, err := catalog.Load(catalogPath, log)
		if err != nil {
			fmt.Fprintf(stderr, "ERROR: catalog '%s': %v\n", catalogPath, err)
			return 1
		}
		fmt.Fprintf(stdout, "OK: catalog '%s' contains %d products\n", catalogPath, len(products))
	}

	fmt.Fprintln(stdout, "\nConfiguration valid.")
	return 0
}

// runReport handles the report subcommand
func runReport(args []string) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	reportFile := fs.String("file", "scrape_report.json", "Path to report file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: media-scraper report [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	exitCode := doReport(*reportFile, os.Stdout, os.Stderr)
	os.Exit(exitCode)
}

// doReport summarizes a report file and writes output to provided writers.
// Returns exit code (0 = success, 1 = error).
func doReport(path string, stdout, stderr io.Writer) int {
	report, err := batch.ReadReport(path)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "Run %s (%s)\n", report.RunID, report.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(stdout, "Products: %d  Images: %d  Videos: %d  Errors: %d  Success rate: %s\n",
		report.TotalProducts, report.TotalImagesDownloaded, report.TotalVideosDownloaded,
		report.TotalErrors, report.SuccessRate)

	for _, p := range report.Products {
		if len(p.Errors) == 0 {
			continue
		}
		fmt.Fprintf(stdout, "  %s: %d images, %d videos\n", p.ProductID, p.ImagesDownloaded, p.VideosDownloaded)
		for _, e := range p.Errors {
			fmt.Fprintf(stdout, "    - %s\n", e)
		}
	}
	return 0
}
