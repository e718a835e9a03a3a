// internal/service/report.go
package service

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AllocationOutcome is the result of attempting one due rule in a run.
type AllocationOutcome string

const (
	OutcomeSuccess                 AllocationOutcome = "success"
	OutcomeInvalidRule             AllocationOutcome = "invalid_rule"
	OutcomeTargetNotFound          AllocationOutcome = "target_not_found"
	OutcomeStoreError              AllocationOutcome = "store_error"
	OutcomeConcurrentExecutionLost AllocationOutcome = "concurrent_execution_lost"
	OutcomeInsufficientFunds       AllocationOutcome = "insufficient_funds"
	OutcomeNothingToAllocate       AllocationOutcome = "nothing_to_allocate"
)

// ReportItem records what happened to one rule.
type ReportItem struct {
	RuleID         int64             `json:"rule_id"`
	TargetWalletID int64             `json:"target_wallet_id"`
	Amount         decimal.Decimal   `json:"amount"`
	Outcome        AllocationOutcome `json:"outcome"`
	Error          string            `json:"error,omitempty"`
}

// ExecutionReport itemizes one allocation run. Rules that were not due are
// not listed. A report with no items and no error means nothing ran,
// including the case of a user without a provisioned main wallet.
type ExecutionReport struct {
	RunID          uuid.UUID    `json:"run_id"`
	UserID         int64        `json:"user_id"`
	SourceWalletID int64        `json:"source_wallet_id"`
	RanAt          time.Time    `json:"ran_at"`
	Items          []ReportItem `json:"items"`
}

func newExecutionReport(userID, sourceWalletID int64, now time.Time) *ExecutionReport {
	return &ExecutionReport{
		RunID:          uuid.New(),
		UserID:         userID,
		SourceWalletID: sourceWalletID,
		RanAt:          now,
		Items:          []ReportItem{},
	}
}

// Count returns how many items ended with outcome.
func (r *ExecutionReport) Count(outcome AllocationOutcome) int {
	n := 0
	for _, it := range r.Items {
		if it.Outcome == outcome {
			n++
		}
	}
	return n
}

// TotalAllocated sums the amounts of successful items.
func (r *ExecutionReport) TotalAllocated() decimal.Decimal {
	total := decimal.Zero
	for _, it := range r.Items {
		if it.Outcome == OutcomeSuccess {
			total = total.Add(it.Amount)
		}
	}
	return total
}

// Failed reports whether any item needs operator attention.
func (r *ExecutionReport) Failed() bool {
	for _, it := range r.Items {
		switch it.Outcome {
		case OutcomeInvalidRule, OutcomeTargetNotFound, OutcomeStoreError:
			return true
		}
	}
	return false
}

// LogValue implements slog.LogValuer.
func (r *ExecutionReport) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("run_id", r.RunID.String()),
		slog.Int64("user_id", r.UserID),
		slog.Int64("source_wallet_id", r.SourceWalletID),
		slog.Int("items", len(r.Items)),
		slog.Int("succeeded", r.Count(OutcomeSuccess)),
		slog.Int("store_errors", r.Count(OutcomeStoreError)),
		slog.Int("invalid_rules", r.Count(OutcomeInvalidRule)),
		slog.Int("targets_missing", r.Count(OutcomeTargetNotFound)),
		slog.Int("concurrent_lost", r.Count(OutcomeConcurrentExecutionLost)),
		slog.Int("insufficient_funds", r.Count(OutcomeInsufficientFunds)),
		slog.String("total_allocated", r.TotalAllocated().String()),
	)
}
