// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Shutdown stops background workers, drains queued email and tears down the
// DB connection.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if svc != nil {
		svc.scheduler.Stop()
		svc.limiter.Stop()
		svc.suggestLimiter.Stop()
		if svc.mailQueue != nil {
			logger.Info("draining email queue")
			if err := svc.mailQueue.Stop(ctx); err != nil {
				logger.Warn("email queue stop failed", zap.Error(err))
			}
		}
		svc = nil
	}

	if deps.MongoClient != nil {
		logger.Info("disconnecting MongoDB client")
		if err := deps.MongoClient.Disconnect(ctx); err != nil {
			logger.Error("MongoDB disconnect failed", zap.Error(err))
			return err
		}
	}
	return nil
}
