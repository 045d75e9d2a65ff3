// Package historian drains queued tic-tac-toe results and records them in
// batches, off the request path of the API server.
package historian

import (
	"context"
	"time"

	"github.com/jason-s-yu/arcade/internal/models"
	"github.com/sirupsen/logrus"
)

// Source yields queued match results. ok is false when nothing arrived within
// timeout.
type Source interface {
	Pop(ctx context.Context, timeout time.Duration) (result models.MatchResult, ok bool, err error)
}

type Recorder interface {
	RecordMatch(ctx context.Context, result models.MatchResult) error
}

type Options struct {
	BatchSize  int
	FlushDelay time.Duration
	// MaxPending caps results kept for retry after failed writes.
	MaxPending int
}

// Service accumulates results and flushes them when the batch is full or
// FlushDelay has passed since the last flush.
type Service struct {
	source   Source
	recorder Recorder
	logger   *logrus.Logger
	opts     Options

	batch     []models.MatchResult
	lastFlush time.Time
	// retrying is set while the batch holds results from a failed flush.
	// Those wait out FlushDelay instead of flushing on a full batch.
	retrying bool
}

func New(source Source, recorder Recorder, logger *logrus.Logger, opts Options) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	if opts.FlushDelay <= 0 {
		opts.FlushDelay = 500 * time.Millisecond
	}
	if opts.MaxPending <= 0 {
		opts.MaxPending = opts.BatchSize * 50
	}
	return &Service{
		source:   source,
		recorder: recorder,
		logger:   logger,
		opts:     opts,
		batch:    make([]models.MatchResult, 0, opts.BatchSize),
	}
}

// Run pops until ctx is cancelled, then flushes what it holds.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("historian started")
	s.lastFlush = time.Now()

	for {
		if ctx.Err() != nil {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			s.flush(flushCtx)
			cancel()
			s.logger.Info("historian shutting down")
			return nil
		}

		result, ok, err := s.source.Pop(ctx, s.opts.FlushDelay)
		switch {
		case err != nil && ctx.Err() == nil:
			s.logger.WithError(err).Error("historian: pop failed")
			sleep(ctx, time.Second)
		case ok:
			s.batch = append(s.batch, result)
		}

		if s.due() {
			s.flush(ctx)
		}
	}
}

func (s *Service) due() bool {
	if time.Since(s.lastFlush) >= s.opts.FlushDelay {
		return true
	}
	return !s.retrying && len(s.batch) >= s.opts.BatchSize
}

// flush records the batch. Results that fail are kept for the next flush.
func (s *Service) flush(ctx context.Context) {
	s.lastFlush = time.Now()
	if len(s.batch) == 0 {
		return
	}

	var failed []models.MatchResult
	for _, res := range s.batch {
		if err := s.recorder.RecordMatch(ctx, res); err != nil {
			s.logger.WithError(err).WithField("match_id", res.MatchID).Warn("historian: record failed")
			failed = append(failed, res)
		}
	}
	recorded := len(s.batch) - len(failed)

	if over := len(failed) - s.opts.MaxPending; over > 0 {
		s.logger.Errorf("historian: dropping %d results after repeated failures", over)
		failed = failed[over:]
	}
	s.batch = append(s.batch[:0], failed...)
	s.retrying = len(failed) > 0

	if recorded > 0 {
		s.logger.Infof("Flushed %d match results.", recorded)
	}
}

func (s *Service) Pending() int {
	return len(s.batch)
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
