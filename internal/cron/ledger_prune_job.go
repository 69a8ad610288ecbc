package cron

import (
	"context"
	"fmt"

	"github.com/certtracker/certtracker-backend/pkg/logger"
)

type ledgerPruner interface {
	PruneOrphaned(ctx context.Context) (int64, error)
}

// NewLedgerPruneJob removes reminder ledger rows left behind by deleted
// credentials.
func NewLedgerPruneJob(ledger ledgerPruner, logg *logger.Logger) (Job, error) {
	if ledger == nil {
		return nil, fmt.Errorf("reminder ledger required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &ledgerPruneJob{ledger: ledger, logg: logg}, nil
}

type ledgerPruneJob struct {
	ledger ledgerPruner
	logg   *logger.Logger
}

func (j *ledgerPruneJob) Name() string { return "reminder-ledger-prune" }

func (j *ledgerPruneJob) Run(ctx context.Context) error {
	deleted, err := j.ledger.PruneOrphaned(ctx)
	if err != nil {
		return fmt.Errorf("ledger prune: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "rows_deleted", deleted), "reminder ledger prune complete")
	return nil
}
