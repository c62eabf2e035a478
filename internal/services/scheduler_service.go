package services

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/recouphq/collections-service-backend/internal/config"
	"github.com/recouphq/collections-service-backend/internal/database/repository"
	"github.com/recouphq/collections-service-backend/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SchedulerService polls for due executions and hands each to the executor on
// a bounded worker pool. The poller keeps no state between cycles; a crashed
// instance loses nothing because due-ness lives on the execution rows.
type SchedulerService struct {
	executionRepo *repository.ExecutionRepository
	executor      *ExecutorService
	cfg           *config.EngineConfig
	workerID      string
	stopChan      chan bool
}

func NewSchedulerService(db *gorm.DB, executor *ExecutorService, cfg *config.EngineConfig) *SchedulerService {
	hostname, _ := os.Hostname()
	return &SchedulerService{
		executionRepo: repository.NewExecutionRepository(db),
		executor:      executor,
		cfg:           cfg,
		workerID:      fmt.Sprintf("%s-%s", hostname, uuid.New().String()[:8]),
		stopChan:      make(chan bool),
	}
}

// Start starts the scheduler loop
func (s *SchedulerService) Start() {
	go s.run()
	logrus.Infof("Dunning scheduler started (worker %s, interval %s, batch %d, workers %d)",
		s.workerID, s.cfg.PollInterval, s.cfg.BatchLimit, s.cfg.WorkerCount)
}

// Stop stops the scheduler loop
func (s *SchedulerService) Stop() {
	s.stopChan <- true
	logrus.Info("Dunning scheduler stopped")
}

// run runs the poll loop
func (s *SchedulerService) run() {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	// Run initial poll
	s.PollOnce()

	for {
		select {
		case <-ticker.C:
			s.PollOnce()
		case <-s.stopChan:
			return
		}
	}
}

// PollOnce fetches one batch of due executions and dispatches each on the
// worker pool. Fetch errors are logged and self-heal on the next cycle; a
// slow or failing execution never blocks the rest of the batch.
func (s *SchedulerService) PollOnce() {
	due, err := s.executionRepo.Due(time.Now(), s.cfg.BatchLimit)
	if err != nil {
		logrus.Errorf("Failed to fetch due executions: %v", err)
		return
	}
	if len(due) == 0 {
		logrus.Debug("No due executions")
		return
	}

	logrus.Infof("Dispatching %d due execution(s)", len(due))

	sem := make(chan struct{}, s.cfg.WorkerCount)
	var wg sync.WaitGroup
	for _, execution := range due {
		claimed, err := s.executionRepo.Claim(execution.ID, s.workerID, s.cfg.LeaseTimeout)
		if err != nil {
			logrus.Errorf("Failed to claim execution %s: %v", execution.ID, err)
			continue
		}
		if !claimed {
			// Another worker holds a live lease
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(executionID string) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if err := s.executionRepo.Release(executionID, s.workerID); err != nil {
					logrus.Errorf("Failed to release lease on execution %s: %v", executionID, err)
				}
			}()

			if _, err := s.executor.Advance(context.Background(), executionID); err != nil {
				logrus.Errorf("Failed to advance execution %s: %v", executionID, err)
			}
		}(execution.ID)
	}
	wg.Wait()
}

// PendingActions exposes the current due-set for external worker processes
// polling through the management API. Scoped to the calling tenant; only the
// internal poller sees the unscoped due-set.
func (s *SchedulerService) PendingActions(tenantID string, limit int) ([]*models.DunningExecution, error) {
	if limit <= 0 || limit > s.cfg.BatchLimit {
		limit = s.cfg.BatchLimit
	}
	return s.executionRepo.DueByTenant(tenantID, time.Now(), limit)
}
