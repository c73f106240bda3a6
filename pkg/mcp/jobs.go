package mcp

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the current state of a batch scrape job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Job represents a background batch scrape over one catalog file
type Job struct {
	ID                string    `json:"id"`
	CatalogPath       string    `json:"catalog_path"`
	Status            JobStatus `json:"status"`
	StartedAt         time.Time `json:"started_at"`
	CompletedAt       time.Time `json:"completed_at,omitempty"`
	ProductsTotal     int       `json:"products_total"`
	ProductsProcessed int       `json:"products_processed"`
	ImagesDownloaded  int       `json:"images_downloaded"`
	VideosDownloaded  int       `json:"videos_downloaded"`
	ReportPath        string    `json:"report_path,omitempty"`
	ErrorMessage      string    `json:"error_message,omitempty"`
	ResumeFrom        int       `json:"resume_from"`

	// Internal fields
	ctx    context.Context
	cancel context.CancelFunc
}

// snapshot returns a copy safe to read outside the manager mutex.
func (j *Job) snapshot() Job {
	c := *j
	c.ctx = nil
	c.cancel = nil
	return c
}

// JobManager manages background batch scrape jobs
type JobManager struct {
	jobs      map[string]*Job
	mu        sync.RWMutex
	bycatalog map[string]string // catalogPath -> jobID for running jobs
}

// NewJobManager creates a new job manager
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:      make(map[string]*Job),
		bycatalog: make(map[string]string),
	}
}

// CreateJob creates a new job for a catalog file. An existing pending or
// running job for the same catalog is returned instead of a new one.
// The returned Job is a copy; live state comes from the accessor methods.
func (m *JobManager) CreateJob(catalogPath string, resumeFrom int) (Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existingJobID, exists := m.bycatalog[catalogPath]; exists {
		existingJob := m.jobs[existingJobID]
		if existingJob != nil && (existingJob.Status == JobStatusPending || existingJob.Status == JobStatusRunning) {
			return existingJob.snapshot(), nil
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	job := &Job{
		ID:          uuid.New().String(),
		CatalogPath: catalogPath,
		Status:      JobStatusPending,
		StartedAt:   time.Now(),
		ResumeFrom:  resumeFrom,
		ctx:         ctx,
		cancel:      cancel,
	}

	m.jobs[job.ID] = job
	m.bycatalog[catalogPath] = job.ID

	return job.snapshot(), nil
}

// GetJob retrieves a copy of a job by ID
func (m *JobManager) GetJob(jobID string) (Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if job, exists := m.jobs[jobID]; exists {
		return job.snapshot(), true
	}
	return Job{}, false
}

// GetJobByCatalog retrieves a copy of the current job for a catalog file
func (m *JobManager) GetJobByCatalog(catalogPath string) (Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if jobID, exists := m.bycatalog[catalogPath]; exists {
		if job, ok := m.jobs[jobID]; ok {
			return job.snapshot(), true
		}
	}
	return Job{}, false
}

// IsRunning checks if a job is currently running for a catalog file
func (m *JobManager) IsRunning(catalogPath string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if jobID, exists := m.bycatalog[catalogPath]; exists {
		job := m.jobs[jobID]
		return job != nil && (job.Status == JobStatusPending || job.Status == JobStatusRunning)
	}
	return false
}

// UpdateStatus updates the status of a job
func (m *JobManager) UpdateStatus(jobID string, status JobStatus, errorMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job, exists := m.jobs[jobID]; exists {
		job.Status = status
		if status == JobStatusCompleted || status == JobStatusFailed || status == JobStatusCancelled {
			job.CompletedAt = time.Now()
			// Remove from bycatalog to allow new jobs
			delete(m.bycatalog, job.CatalogPath)
		}
		if errorMsg != "" {
			job.ErrorMessage = errorMsg
		}
	}
}

// SetTotals records the catalog size before processing starts
func (m *JobManager) SetTotals(jobID string, productsTotal int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job, exists := m.jobs[jobID]; exists {
		job.ProductsTotal = productsTotal
	}
}

// AddProgress accumulates per-product counters on a running job
func (m *JobManager) AddProgress(jobID string, images, videos int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job, exists := m.jobs[jobID]; exists {
		job.ProductsProcessed++
		job.ImagesDownloaded += images
		job.VideosDownloaded += videos
	}
}

// SetReportPath records where the job's report was written
func (m *JobManager) SetReportPath(jobID, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job, exists := m.jobs[jobID]; exists {
		job.ReportPath = path
	}
}

// CancelJob cancels a running job
func (m *JobManager) CancelJob(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job, exists := m.jobs[jobID]; exists {
		if job.Status == JobStatusPending || job.Status == JobStatusRunning {
			job.cancel()
			job.Status = JobStatusCancelled
			job.CompletedAt = time.Now()
			delete(m.bycatalog, job.CatalogPath)
			return true
		}
	}
	return false
}

// CancelAll cancels all running jobs
func (m *JobManager) CancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, job := range m.jobs {
		if job.Status == JobStatusPending || job.Status == JobStatusRunning {
			job.cancel()
			job.Status = JobStatusCancelled
			job.CompletedAt = time.Now()
		}
	}
	m.bycatalog = make(map[string]string)
}

// ListJobs returns copies of all jobs
func (m *JobManager) ListJobs() []Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job.snapshot())
	}
	return jobs
}

// GetContext returns the context for a job (for running the batch)
func (m *JobManager) GetContext(jobID string) context.Context {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if job, exists := m.jobs[jobID]; exists {
		return job.ctx
	}
	return context.Background()
}
