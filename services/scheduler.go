// services/scheduler.go
package services

import (
	"context"
	"time"

	"wildlife-challenge-service/utils"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// StartRefreshScheduler reloads the catalog cache every interval so animals
// added to the table reach new manifests without a restart.
func (s *CatalogService) StartRefreshScheduler(interval time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := s.Refresh(ctx); err != nil {
				utils.Logger.Warn("[Scheduler] catalog refresh failed", zap.Error(err))
				return
			}
			s.mu.RLock()
			n := len(s.names)
			s.mu.RUnlock()
			utils.Logger.Debug("[Scheduler] catalog refreshed", zap.Int("animals", n))
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, err
	}

	sched.Start()
	return sched, nil
}
