// internal/scheduler/sweeper.go
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"zrlda-finance/internal/repository"
	"zrlda-finance/internal/service"

	"golang.org/x/sync/errgroup"
)

// SweepResult summarizes one pass over every user with active rules.
type SweepResult struct {
	Users       int `json:"users"`
	FailedRuns  int `json:"failed_runs"` // Runs that returned an error
	Allocations int `json:"allocations"` // Rules executed successfully
	RuleErrors  int `json:"rule_errors"` // Runs whose report needs attention
	Skipped     int `json:"skipped"`     // Users not reached before cancellation
}

// Sweeper periodically runs allocations for every user that owns active
// rules, so time-based rules fire without waiting for a deposit.
type Sweeper struct {
	dbExecutor  repository.DBExecutor
	ruleRepo    repository.AllocationRuleRepository
	allocations service.AllocationService
	interval    time.Duration
	concurrency int
	logger      *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper creates a Sweeper. An interval <= 0 disables the periodic loop;
// SweepOnce still works.
func NewSweeper(
	dbExecutor repository.DBExecutor,
	ruleRepo repository.AllocationRuleRepository,
	allocations service.AllocationService,
	interval time.Duration,
	concurrency int,
	logger *slog.Logger,
) *Sweeper {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Sweeper{
		dbExecutor:  dbExecutor,
		ruleRepo:    ruleRepo,
		allocations: allocations,
		interval:    interval,
		concurrency: concurrency,
		logger:      logger.With("component", "sweeper"),
	}
}

// Start launches the sweep loop. It returns immediately; call Stop to end it.
func (s *Sweeper) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("Periodic allocation sweep disabled")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)
	s.logger.Info("Periodic allocation sweep started", "interval", s.interval.String(), "concurrency", s.concurrency)
}

// Stop cancels the loop and waits for an in-flight sweep to return.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("Periodic allocation sweep stopped")
}

func (s *Sweeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				s.logger.Error("Allocation sweep failed", "error", err)
			}
		}
	}
}

// SweepOnce runs allocations once for every user with active rules. Only
// failing to list the users is returned as an error.
func (s *Sweeper) SweepOnce(ctx context.Context) (SweepResult, error) {
	started := time.Now()
	owners, err := s.ruleRepo.ListActiveRuleOwners(ctx, s.dbExecutor)
	if err != nil {
		return SweepResult{}, fmt.Errorf("sweep: failed to list rule owners: %w", err)
	}

	var failed, allocations, ruleErrors, launched atomic.Int64
	var g errgroup.Group
	g.SetLimit(s.concurrency)

	for _, owner := range owners {
		if ctx.Err() != nil {
			break
		}
		owner := owner
		launched.Add(1)
		g.Go(func() error {
			report, err := s.allocations.RunAllocations(ctx, owner.UserID, owner.MainWalletID)
			if err != nil {
				failed.Add(1)
				s.logger.Error("Allocation run failed", "user_id", owner.UserID, "wallet_id", owner.MainWalletID, "error", err)
				return nil
			}
			allocations.Add(int64(report.Count(service.OutcomeSuccess)))
			if report.Failed() {
				ruleErrors.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	result := SweepResult{
		Users:       len(owners),
		FailedRuns:  int(failed.Load()),
		Allocations: int(allocations.Load()),
		RuleErrors:  int(ruleErrors.Load()),
		Skipped:     len(owners) - int(launched.Load()),
	}
	s.logger.Info("Allocation sweep completed",
		"users", result.Users,
		"failed_runs", result.FailedRuns,
		"allocations", result.Allocations,
		"rule_errors", result.RuleErrors,
		"skipped", result.Skipped,
		"duration", time.Since(started).String(),
	)
	return result, nil
}
