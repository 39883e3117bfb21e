package cron

import (
	"context"
	"fmt"
	"time"
)

// CronLogRetention is how long cron logs are kept
const CronLogRetention = 30 * 24 * time.Hour

// BackfillPaymentUsers sets user_id on payment records whose email now
// belongs to an account
func (m *CronManager) BackfillPaymentUsers(ctx context.Context) (string, error) {
	n, err := m.store.BackfillOrphanPayments(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to backfill payment users: %w", err)
	}
	return fmt.Sprintf("Linked %d payment records", n), nil
}

// PruneCronLogs deletes cron logs older than the retention window
func (m *CronManager) PruneCronLogs(ctx context.Context) (string, error) {
	cutoff := m.now().Add(-CronLogRetention)
	n, err := m.store.PruneCronLogs(ctx, cutoff)
	if err != nil {
		return "", fmt.Errorf("failed to prune cron logs: %w", err)
	}
	return fmt.Sprintf("Deleted %d cron logs older than %s", n, cutoff.Format(time.RFC3339)), nil
}
