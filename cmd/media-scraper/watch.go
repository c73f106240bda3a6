package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"media-scraper/pkg/batch"
	"media-scraper/pkg/catalog"
	"media-scraper/pkg/config"
	"media-scraper/pkg/download"
	"media-scraper/pkg/extract"
	"media-scraper/pkg/fetch"
	"media-scraper/pkg/models"
	"media-scraper/pkg/scrape"
	"media-scraper/pkg/storage"
	"media-scraper/pkg/utils"
	"media-scraper/pkg/watch"
)

// runWatch handles the watch subcommand
func runWatch(args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configFile := fs.String("config", "", "Path to config file (optional, defaults apply)")
	catalogs := fs.String("catalogs", "", "Comma-separated catalog file paths (required)")
	interval := fs.String("interval", "24h", "Scrape interval (e.g., 30m, 1h, 24h, 7d)")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error, fatal)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: media-scraper watch [options]\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  media-scraper watch -catalogs products.json --interval 24h\n")
		fmt.Fprintf(os.Stderr, "  media-scraper watch -catalogs electronics.json,books.json --interval 12h\n")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	var catalogPaths []string
	for _, c := range strings.Split(*catalogs, ",") {
		c = strings.TrimSpace(c)
		if c != "" {
			catalogPaths = append(catalogPaths, c)
		}
	}
	if len(catalogPaths) == 0 {
		fmt.Fprintln(os.Stderr, "Error: -catalogs is required")
		fs.Usage()
		os.Exit(1)
	}

	executeWatch(*configFile, catalogPaths, *interval, *logLevel)
}

// executeWatch runs the watch scheduler
func executeWatch(configFile string, catalogPaths []string, intervalStr, logLevelStr string) {
	log := setupLogger(logLevelStr)

	interval, err := watch.ParseInterval(intervalStr)
	if err != nil {
		log.Fatalf("Invalid interval: %v", err)
	}
	log.Infof("Watch interval: %s", watch.FormatInterval(interval))

	appCfg := loadAndValidateConfig(configFile, log)

	// Re-runs should skip unchanged media, so the cross-run state store is
	// always on in watch mode.
	appCfg.EnableStateStore = true
	log.Info("Asset state store enabled for watch mode")

	logEntry := log.WithField("component", "watch")

	store, err := storage.NewBadgerStore(appCfg.StateDir, true, logEntry)
	if err != nil {
		log.Fatalf("Failed to open asset state store: %v", err)
	}
	defer store.Close()

	runner := buildRunner(appCfg, store, log)
	run := func(ctx context.Context, catalogPath string) (*models.BatchReport, error) {
		products, err := catalog.Load(catalogPath, log)
		if err != nil {
			return nil, err
		}
		report, err := runner.Run(ctx, products, 1)
		if err != nil {
			return report, err
		}
		if writeErr := batch.WriteReport(report, appCfg.ReportFile); writeErr != nil {
			log.Errorf("Failed to write report: %v", writeErr)
		}
		return report, nil
	}

	scheduler := watch.NewScheduler(appCfg, catalogPaths, interval, run, logEntry)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		sig := <-sigChan
		log.Warnf("Received signal %v, stopping watch...", sig)
		scheduler.Stop()
	}()

	if err := scheduler.Run(); err != nil {
		log.Fatalf("Watch scheduler error: %v", err)
	}

	log.Info("Watch mode stopped")
}

// buildRunner assembles the scraping pipeline around an optional state store.
func buildRunner(appCfg *config.AppConfig, assetStore storage.AssetStore, log *logrus.Logger) *batch.Runner {
	httpClient := fetch.NewClient(appCfg.HTTPClientSettings, log)
	fetcher := fetch.NewFetcher(httpClient, appCfg, log)
	rateLimiter := fetch.NewRateLimiter(appCfg.RateLimit, log)
	robots := fetch.NewRobotsChecker(fetcher, rateLimiter, appCfg, log)
	netOps := semaphore.NewWeighted(int64(appCfg.MaxNetworkOps))
	pages := fetch.NewHTTPPageFetcher(fetcher, rateLimiter, robots, netOps, appCfg, log)
	downloader := download.NewDownloader(fetcher, rateLimiter, netOps, assetStore, appCfg, log)

	extraExcluded, err := utils.CompileRegexPatterns(appCfg.ExtraExcludedPatterns)
	if err != nil {
		log.Fatalf("Invalid extra_excluded_patterns: %v", err)
	}
	extractor := extract.NewExtractor(appCfg.ProximityWindow, extraExcluded, log)

	processor := scrape.NewProcessor(pages, extractor, downloader, appCfg, log)
	return batch.NewRunner(processor, appCfg, log)
}
