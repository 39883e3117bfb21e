package database

import (
	"context"
	"time"

	"github.com/placementpulse/api/model"
)

// StartCronLog records a running cron job and returns the log id
func (s *GORMStore) StartCronLog(ctx context.Context, jobName string, startedAt time.Time) (uint, error) {
	cronLog := model.CronJobLog{
		JobName:   jobName,
		Status:    model.CronStatusRunning,
		StartedAt: startedAt,
		Metadata:  "{}",
	}
	if err := s.db.WithContext(ctx).Create(&cronLog).Error; err != nil {
		return 0, err
	}
	return cronLog.ID, nil
}

// FinishCronLog marks a cron log completed, or failed when errMsg is set
func (s *GORMStore) FinishCronLog(ctx context.Context, id uint, message, errMsg string, duration time.Duration) error {
	status := model.CronStatusCompleted
	if errMsg != "" {
		status = model.CronStatusFailed
	}

	return s.db.WithContext(ctx).
		Model(&model.CronJobLog{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       status,
			"completed_at": time.Now(),
			"duration":     int(duration.Milliseconds()),
			"message":      message,
			"error_msg":    errMsg,
		}).Error
}
