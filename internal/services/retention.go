package services

import (
	"context"
	"log"
	"time"
)

const retentionPollInterval = 1 * time.Hour

type completionLogPruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionScheduler periodically drops completion log rows older than the
// retention window.
type RetentionScheduler struct {
	repo      completionLogPruner
	retention time.Duration
	interval  time.Duration
	stopChan  chan struct{}
}

func NewRetentionScheduler(repo completionLogPruner, retention time.Duration) *RetentionScheduler {
	return &RetentionScheduler{
		repo:      repo,
		retention: retention,
		interval:  retentionPollInterval,
		stopChan:  make(chan struct{}),
	}
}

func (s *RetentionScheduler) Start() {
	if s.repo == nil || s.retention <= 0 {
		return
	}

	go s.loop()
	log.Printf("Completion log retention started (%s)", s.retention)
}

func (s *RetentionScheduler) Stop() {
	select {
	case <-s.stopChan:
		return
	default:
		close(s.stopChan)
	}
}

func (s *RetentionScheduler) loop() {
	// Run on startup as well as by interval.
	s.prune(context.Background(), time.Now().UTC())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.prune(context.Background(), time.Now().UTC())
		}
	}
}

func (s *RetentionScheduler) prune(ctx context.Context, now time.Time) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	deleted, err := s.repo.DeleteOlderThan(ctx, retentionCutoff(now, s.retention))
	if err != nil {
		log.Printf("retention: failed to prune completion log: %v", err)
		return
	}
	if deleted > 0 {
		log.Printf("retention: pruned %d completion log rows", deleted)
	}
}

func retentionCutoff(now time.Time, retention time.Duration) time.Time {
	return now.UTC().Add(-retention)
}
