package watch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"media-scraper/pkg/config"
	"media-scraper/pkg/models"
)

// RunFunc executes one full scrape over a catalog file and returns its
// report. The scheduler stays ignorant of pipeline wiring.
type RunFunc func(ctx context.Context, catalogPath string) (*models.BatchReport, error)

// Scheduler re-runs catalog scrapes on a fixed interval. Catalogs run
// sequentially; the single target host cannot absorb parallel runs.
type Scheduler struct {
	appCfg       *config.AppConfig
	catalogs     []string
	interval     time.Duration
	log          *logrus.Entry
	stateManager *StateManager
	run          RunFunc

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a new watch scheduler
func NewScheduler(appCfg *config.AppConfig, catalogs []string, interval time.Duration, run RunFunc, log *logrus.Entry) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		appCfg:       appCfg,
		catalogs:     catalogs,
		interval:     interval,
		log:          log,
		stateManager: NewStateManager(appCfg.StateDir),
		run:          run,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Run starts the watch scheduler and blocks until stopped
func (s *Scheduler) Run() error {
	if err := s.stateManager.Load(); err != nil {
		s.log.Warnf("Failed to load watch state: %v (starting fresh)", err)
	}

	s.log.Infof("Starting watch mode for %d catalogs with interval %v", len(s.catalogs), s.interval)
	s.logSchedule()

	// Run initial scrape for catalogs that need it
	s.runDueCatalogs()

	ticker := time.NewTicker(s.calculateTickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.log.Info("Watch scheduler shutting down...")
			s.wg.Wait()
			return nil
		case <-ticker.C:
			s.runDueCatalogs()
		}
	}
}

// Stop stops the watch scheduler
func (s *Scheduler) Stop() {
	s.log.Info("Stopping watch scheduler...")
	s.cancel()
}

// runDueCatalogs runs all catalogs that are due for a scrape
func (s *Scheduler) runDueCatalogs() {
	due := s.getDueCatalogs()
	if len(due) == 0 {
		s.logNextRun()
		return
	}

	s.log.Infof("Running scrape for %d due catalogs: %v", len(due), due)

	// Run in a goroutine so we can handle shutdown; catalogs stay sequential
	// within it to keep the host-wide rate limit honest.
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		for _, catalogPath := range due {
			if s.ctx.Err() != nil {
				return
			}

			report, err := s.run(s.ctx, catalogPath)
			errorMsg := ""
			if err != nil {
				errorMsg = err.Error()
			}
			if report != nil {
				s.stateManager.UpdateCatalogState(catalogPath, err == nil,
					report.TotalProducts, report.TotalImagesDownloaded, report.TotalVideosDownloaded, errorMsg)
			} else {
				s.stateManager.UpdateCatalogState(catalogPath, false, 0, 0, 0, errorMsg)
			}
		}

		if err := s.stateManager.Save(); err != nil {
			s.log.Errorf("Failed to save watch state: %v", err)
		}

		s.logNextRun()
	}()
}

// getDueCatalogs returns catalogs that are due for a scrape
func (s *Scheduler) getDueCatalogs() []string {
	var due []string
	for _, catalogPath := range s.catalogs {
		if s.stateManager.ShouldRun(catalogPath, s.interval) {
			due = append(due, catalogPath)
		}
	}
	return due
}

// calculateTickInterval returns how often to check for due catalogs
func (s *Scheduler) calculateTickInterval() time.Duration {
	// Check at least every minute, or every 1/10th of the interval
	checkInterval := s.interval / 10
	if checkInterval < time.Minute {
		checkInterval = time.Minute
	}
	if checkInterval > 10*time.Minute {
		checkInterval = 10 * time.Minute
	}
	return checkInterval
}

// logSchedule logs the current schedule
func (s *Scheduler) logSchedule() {
	s.log.Info("Watch schedule:")
	for _, catalogPath := range s.catalogs {
		state, exists := s.stateManager.GetCatalogState(catalogPath)
		if exists {
			nextRun := s.stateManager.GetNextRunTime(catalogPath, s.interval)
			status := "success"
			if !state.LastRunSuccess {
				status = "failed"
			}
			s.log.Infof("  %s: last run %v (%s, %d products, %d images), next run %v",
				catalogPath,
				state.LastRunTime.Format(time.RFC3339),
				status,
				state.ProductsProcessed,
				state.ImagesDownloaded,
				nextRun.Format(time.RFC3339))
		} else {
			s.log.Infof("  %s: never run, will run immediately", catalogPath)
		}
	}
}

// logNextRun logs when the next run will occur
func (s *Scheduler) logNextRun() {
	var nextRuns []struct {
		catalog string
		time    time.Time
	}

	for _, catalogPath := range s.catalogs {
		nextRun := s.stateManager.GetNextRunTime(catalogPath, s.interval)
		nextRuns = append(nextRuns, struct {
			catalog string
			time    time.Time
		}{catalogPath, nextRun})
	}

	sort.Slice(nextRuns, func(i, j int) bool {
		return nextRuns[i].time.Before(nextRuns[j].time)
	})

	if len(nextRuns) > 0 {
		next := nextRuns[0]
		until := time.Until(next.time)
		if until < 0 {
			until = 0
		}
		s.log.Infof("Next scrape: %s in %v (at %s)", next.catalog, until.Round(time.Second), next.time.Format("15:04:05"))
	}
}

// CatalogStatus contains the status of a watched catalog
type CatalogStatus struct {
	CatalogPath       string
	LastRunTime       time.Time
	LastRunSuccess    bool
	ProductsProcessed int
	ImagesDownloaded  int
	ErrorMessage      string
	NextRunTime       time.Time
	NeverRun          bool
}

// GetStatus returns the current status of all watched catalogs
func (s *Scheduler) GetStatus() map[string]CatalogStatus {
	status := make(map[string]CatalogStatus)

	for _, catalogPath := range s.catalogs {
		state, exists := s.stateManager.GetCatalogState(catalogPath)
		nextRun := s.stateManager.GetNextRunTime(catalogPath, s.interval)

		status[catalogPath] = CatalogStatus{
			CatalogPath:       catalogPath,
			LastRunTime:       state.LastRunTime,
			LastRunSuccess:    state.LastRunSuccess,
			ProductsProcessed: state.ProductsProcessed,
			ImagesDownloaded:  state.ImagesDownloaded,
			ErrorMessage:      state.ErrorMessage,
			NextRunTime:       nextRun,
			NeverRun:          !exists,
		}
	}

	return status
}

// FormatInterval formats a duration for display
func FormatInterval(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		hours := int(d.Hours())
		mins := int(d.Minutes()) % 60
		if mins > 0 {
			return fmt.Sprintf("%dh%dm", hours, mins)
		}
		return fmt.Sprintf("%dh", hours)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	if hours > 0 {
		return fmt.Sprintf("%dd%dh", days, hours)
	}
	return fmt.Sprintf("%dd", days)
}

// ParseInterval parses a duration string with support for days
func ParseInterval(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err == nil {
		return d, nil
	}

	// Check for day suffix
	var days int
	var remaining string
	n, _ := fmt.Sscanf(s, "%dd%s", &days, &remaining)
	if n >= 1 {
		d = time.Duration(days) * 24 * time.Hour
		if remaining != "" {
			extra, err := time.ParseDuration(remaining)
			if err != nil {
				return 0, fmt.Errorf("invalid interval format: %s", s)
			}
			d += extra
		}
		return d, nil
	}

	return 0, fmt.Errorf("invalid interval format: %s (examples: 30m, 1h, 24h, 7d)", s)
}
