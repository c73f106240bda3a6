package watch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const stateFileName = "watch_state.json"

// CatalogState contains the last run information for a catalog
type CatalogState struct {
	LastRunTime       time.Time `json:"last_run_time"`
	LastRunSuccess    bool      `json:"last_run_success"`
	ProductsProcessed int       `json:"products_processed"`
	ImagesDownloaded  int       `json:"images_downloaded"`
	VideosDownloaded  int       `json:"videos_downloaded"`
	ErrorMessage      string    `json:"error_message,omitempty"`
}

// WatchState contains the persistent state for the watch scheduler
type WatchState struct {
	Catalogs  map[string]CatalogState `json:"catalogs"`
	UpdatedAt time.Time               `json:"updated_at"`
}

// StateManager handles persisting and loading watch state
type StateManager struct {
	stateDir  string
	statePath string
	state     WatchState
	mu        sync.RWMutex
}

// NewStateManager creates a new state manager
func NewStateManager(stateDir string) *StateManager {
	return &StateManager{
		stateDir:  stateDir,
		statePath: filepath.Join(stateDir, stateFileName),
		state: WatchState{
			Catalogs: make(map[string]CatalogState),
		},
	}
}

// Load loads the state from disk
func (m *StateManager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			// No state file yet, start fresh
			m.state = WatchState{
				Catalogs: make(map[string]CatalogState),
			}
			return nil
		}
		return fmt.Errorf("failed to read state file: %w", err)
	}

	if err := json.Unmarshal(data, &m.state); err != nil {
		return fmt.Errorf("failed to parse state file: %w", err)
	}

	if m.state.Catalogs == nil {
		m.state.Catalogs = make(map[string]CatalogState)
	}

	return nil
}

// Save saves the state to disk
func (m *StateManager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.UpdatedAt = time.Now()

	if err := os.MkdirAll(m.stateDir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(m.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := os.WriteFile(m.statePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}

	return nil
}

// GetCatalogState returns the state for a specific catalog
func (m *StateManager) GetCatalogState(catalogPath string) (CatalogState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.state.Catalogs[catalogPath]
	return state, ok
}

// UpdateCatalogState updates the state for a specific catalog
func (m *StateManager) UpdateCatalogState(catalogPath string, success bool, products, images, videos int, errorMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.Catalogs[catalogPath] = CatalogState{
		LastRunTime:       time.Now(),
		LastRunSuccess:    success,
		ProductsProcessed: products,
		ImagesDownloaded:  images,
		VideosDownloaded:  videos,
		ErrorMessage:      errorMsg,
	}
}

// ShouldRun checks if a catalog should run based on the interval
func (m *StateManager) ShouldRun(catalogPath string, interval time.Duration) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.state.Catalogs[catalogPath]
	if !ok {
		// Never run before, should run now
		return true
	}

	return time.Since(state.LastRunTime) >= interval
}

// GetNextRunTime returns when the catalog should next run
func (m *StateManager) GetNextRunTime(catalogPath string, interval time.Duration) time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.state.Catalogs[catalogPath]
	if !ok {
		return time.Now()
	}

	return state.LastRunTime.Add(interval)
}

// GetAllCatalogStates returns all catalog states
func (m *StateManager) GetAllCatalogStates() map[string]CatalogState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]CatalogState, len(m.state.Catalogs))
	for k, v := range m.state.Catalogs {
		result[k] = v
	}
	return result
}
