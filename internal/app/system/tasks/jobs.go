// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Job is a periodic maintenance task run by workers.Scheduler.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// StateCleaner removes expired OAuth state tokens (oauthstate.Store).
type StateCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// VerifyTokenCleaner clears verification tokens that expired before a
// cutoff (userstore.Store).
type VerifyTokenCleaner interface {
	ClearExpiredVerifyTokens(ctx context.Context, cutoff time.Time) (int64, error)
}

// OAuthStateCleanupJob creates a job that removes expired OAuth state tokens.
// This is a backup for when MongoDB's TTL index cleanup is delayed.
func OAuthStateCleanupJob(states StateCleaner, logger *zap.Logger) Job {
	return Job{
		Name:     "oauth-state-cleanup",
		Interval: 1 * time.Hour,
		Run: func(ctx context.Context) error {
			count, err := states.CleanupExpired(ctx)
			if err != nil {
				return err
			}
			if count > 0 {
				logger.Debug("cleaned up expired OAuth states", zap.Int64("count", count))
			}
			return nil
		},
	}
}

// VerifyTokenCleanupJob creates a job that clears expired email verification
// tokens. The accounts stay unverified and can request a new link.
func VerifyTokenCleanupJob(users VerifyTokenCleaner, logger *zap.Logger, now func() time.Time) Job {
	if now == nil {
		now = time.Now
	}
	return Job{
		Name:     "verify-token-cleanup",
		Interval: 6 * time.Hour,
		Run: func(ctx context.Context) error {
			count, err := users.ClearExpiredVerifyTokens(ctx, now())
			if err != nil {
				return err
			}
			if count > 0 {
				logger.Info("cleared expired verification tokens", zap.Int64("count", count))
			}
			return nil
		},
	}
}
