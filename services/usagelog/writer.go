package usagelog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/contentpilot/engine/models"
	"github.com/contentpilot/engine/repositories"
	"go.uber.org/zap"
)

// insertTimeout bounds a single durable-log insert
const insertTimeout = 5 * time.Second

// Config holds configuration for the Writer
type Config struct {
	BufferSize  int // Size of the record buffer channel
	WorkerCount int // Number of concurrent workers
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:  10000,
		WorkerCount: 3,
	}
}

// Writer persists usage records to the durable log asynchronously so the
// execution path never waits on the database. Records are enqueued
// non-blocking; when the buffer is full the record is dropped with a warning
// rather than stalling a generation.
type Writer struct {
	repo        repositories.UsageRepository
	logger      *zap.Logger
	recordChan  chan *models.UsageRecord
	workerCount int
	bufferSize  int
	wg          sync.WaitGroup
	started     bool
	dropped     uint64
	mu          sync.Mutex
}

// NewWriter creates a usage log writer
func NewWriter(repo repositories.UsageRepository, logger *zap.Logger, config Config) *Writer {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultConfig().BufferSize
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = DefaultConfig().WorkerCount
	}
	return &Writer{
		repo:        repo,
		logger:      logger,
		recordChan:  make(chan *models.UsageRecord, config.BufferSize),
		workerCount: config.WorkerCount,
		bufferSize:  config.BufferSize,
	}
}

// Start starts the background workers
func (w *Writer) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return fmt.Errorf("usage log writer already started")
	}

	for i := 0; i < w.workerCount; i++ {
		w.wg.Add(1)
		go w.worker(i)
	}

	w.started = true
	w.logger.Info("started usage log writer",
		zap.Int("worker_count", w.workerCount),
		zap.Int("buffer_size", w.bufferSize))
	return nil
}

// Stop drains the buffer and stops the workers, waiting up to timeout
func (w *Writer) Stop(timeout time.Duration) error {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return fmt.Errorf("usage log writer not started")
	}
	w.started = false
	w.mu.Unlock()

	w.logger.Info("stopping usage log writer", zap.Int("pending_records", len(w.recordChan)))
	close(w.recordChan)

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("usage log writer stopped gracefully")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("usage log writer stop timeout after %v", timeout)
	}
}

// Record enqueues a usage record without blocking. Implements the execution
// coordinator's usage sink.
func (w *Writer) Record(record *models.UsageRecord) {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	select {
	case w.recordChan <- record:
	default:
		w.mu.Lock()
		w.dropped++
		w.mu.Unlock()
		w.logger.Warn("usage record buffer full, dropping record",
			zap.String("provider", record.Provider),
			zap.String("content_type", string(record.ContentType)))
	}
}

// worker drains records from the channel into the durable log
func (w *Writer) worker(id int) {
	defer w.wg.Done()

	w.logger.Debug("usage log worker started", zap.Int("worker_id", id))

	for record := range w.recordChan {
		if err := w.persist(record); err != nil {
			w.logger.Error("failed to persist usage record",
				zap.Int("worker_id", id),
				zap.String("provider", record.Provider),
				zap.Error(err))
		}
	}

	w.logger.Debug("usage log worker stopped", zap.Int("worker_id", id))
}

// persist inserts one record with a bounded timeout
func (w *Writer) persist(record *models.UsageRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
	defer cancel()

	if err := w.repo.Insert(ctx, record); err != nil {
		return fmt.Errorf("insert usage record: %w", err)
	}
	return nil
}

// Stats represents writer statistics
type Stats struct {
	BufferSize     int    `json:"buffer_size"`
	PendingRecords int    `json:"pending_records"`
	WorkerCount    int    `json:"worker_count"`
	Dropped        uint64 `json:"dropped"`
	Started        bool   `json:"started"`
}

// GetStats returns statistics about the writer
func (w *Writer) GetStats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	return Stats{
		BufferSize:     w.bufferSize,
		PendingRecords: len(w.recordChan),
		WorkerCount:    w.workerCount,
		Dropped:        w.dropped,
		Started:        w.started,
	}
}
