package main

import (
	"context"
	"log/slog"
	"sync"

	"ecoheat/config"
)

type mqttSession interface {
	OnConnect(fn func())
	Connect(ctx context.Context) error
}

type subscriptionRunner interface {
	OnConnect(ctx context.Context)
	Run(ctx context.Context)
}

type engineStarter interface {
	Start(ctx context.Context) error
}

// units are the long-lived parts of the backend besides the HTTP API: the
// MQTT receive path, the subscription scanner, the decision loop and the
// stale-sample sweep.
type units struct {
	session mqttSession
	subs    subscriptionRunner
	engine  engineStarter
	sweep   func(ctx context.Context)
}

// startUnits starts the background units unless this process is a secondary
// worker, which serves HTTP only and never opens a broker session. The
// returned group finishes once every started loop has returned.
func startUnits(ctx context.Context, cfg *config.Config, u units, logger *slog.Logger) *sync.WaitGroup {
	var wg sync.WaitGroup
	if cfg.IsSecondaryWorker() {
		logger.Info("Secondary worker, MQTT session and background loops not started")
		return &wg
	}

	u.session.OnConnect(func() { u.subs.OnConnect(ctx) })

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	err := u.session.Connect(connectCtx)
	cancel()
	if err != nil {
		logger.Error("MQTT connect failed, retrying in background", slog.Any("error", err))
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		u.sweep(ctx)
	}()
	go func() {
		defer wg.Done()
		u.subs.Run(ctx)
	}()

	if cfg.DecisionAutostart {
		if err := u.engine.Start(ctx); err != nil {
			logger.Error("Failed to start decision engine", slog.Any("error", err))
		}
	}
	return &wg
}
