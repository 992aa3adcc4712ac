package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"ecoheat/config"
	"ecoheat/database"
	"ecoheat/devicestate"
	"ecoheat/dispatcher"
	"ecoheat/engine"
	"ecoheat/events"
	"ecoheat/handlers"
	"ecoheat/ingest"
	"ecoheat/logging"
	"ecoheat/metrics"
	"ecoheat/mqtt"
	"ecoheat/redis"
	"ecoheat/services"
	"ecoheat/status"
	"ecoheat/subscription"
	"ecoheat/telemetry"
	"ecoheat/transport"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	connectTimeout  = 10 * time.Second
	joinTimeout     = 2 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("EcoHeat stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ===== METRICS =====
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// ===== STORAGE =====
	db, err := database.NewDatabase(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	var (
		readingCache services.ReadingCache
		snapshots    devicestate.Snapshotter
		lookups      services.DeviceSnapshots
		cachePinger  handlers.Pinger
	)
	redisCtx, redisCancel := context.WithTimeout(ctx, connectTimeout)
	redisClient, err := redis.NewRedisClient(redisCtx, cfg)
	redisCancel()
	if err != nil {
		logger.Warn("Redis unavailable, running without cache", slog.Any("error", err))
	} else {
		defer redisClient.Close()
		readingCache, snapshots, lookups, cachePinger = redisClient, redisClient, redisClient, redisClient
	}

	// ===== EVENTS =====
	var publisher events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, m, logger)
		if err != nil {
			return err
		}
		kp.Start(context.Background())
		defer kp.Close()
		publisher = kp
		logger.Info("Kafka event export enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	// ===== SERVICES =====
	roomSvc := services.NewRoomService(db.RoomRepo, db.UoW, cfg.AutoProvisionOwner, logger)
	store := devicestate.NewStore(db.DeviceRepo, snapshots, logger)
	readingSvc := services.NewReadingService(roomSvc, db.ReadingRepo, readingCache, publisher, logger)

	aggregator := telemetry.NewAggregator(readingSvc, cfg.TelemetryStaleAfter, m, logger)
	parser := status.NewParser(roomSvc, store, m, logger)
	inbound := ingest.NewHandler(aggregator, parser, m, logger)

	// ===== MQTT =====
	mqttClient := mqtt.NewClient(cfg, m, logger)
	mqttClient.SetMessageHandler(inbound.MessageHandler(ctx))

	tr := transport.NewMQTTTransport(mqttClient.PahoClient(), cfg.MQTTPublishTimeout, logger)
	disp := dispatcher.New(store, tr, publisher, m, logger)

	subs := subscription.NewManager(mqttClient, roomSvc, subscription.Options{
		ScanInterval:    cfg.SubscriptionScanInterval,
		DefaultRoomFrom: cfg.DefaultRoomFrom,
		DefaultRoomTo:   cfg.DefaultRoomTo,
	}, m, logger)

	eng, err := engine.New(engine.Deps{
		Rooms:     roomSvc,
		State:     store,
		Readings:  readingSvc,
		Schedules: db.ScheduleRepo,
		Actuators: disp,
		Metrics:   m,
		Logger:    logger,
		Location:  cfg.Location,
	}, engine.Settings{
		CheckInterval:        cfg.DecisionCheckInterval,
		TemperatureThreshold: cfg.TemperatureThreshold,
	})
	if err != nil {
		return err
	}

	// ===== HTTP =====
	climate := services.NewClimateService(roomSvc, readingSvc, store, lookups, disp, logger)
	router := handlers.NewRouter(handlers.Handlers{
		Health:  handlers.NewHealthHandler(db, cachePinger, mqttClient, logger),
		Rooms:   handlers.NewRoomHandler(climate, readingSvc),
		Engine:  handlers.NewEngineHandler(ctx, eng, mqttClient, subs),
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	}, logger)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("Starting HTTP server", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", slog.Any("error", err))
			cancel()
		}
	}()

	// ===== BACKGROUND UNITS =====
	wg := startUnits(ctx, cfg, units{
		session: mqttClient,
		subs:    subs,
		engine:  eng,
		sweep: func(ctx context.Context) {
			sweepStalePartials(ctx, aggregator, cfg.TelemetryStaleAfter)
		},
	}, logger)

	logger.Info("EcoHeat started",
		"http_addr", cfg.HTTPAddr,
		"mqtt_broker", cfg.MQTTBroker,
		"decision_engine", eng.Running(),
	)

	// ===== SHUTDOWN =====
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
	}

	cancel()
	eng.Stop()
	if !waitTimeout(wg, joinTimeout) {
		logger.Warn("Background loops did not stop in time", "timeout", joinTimeout.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", slog.Any("error", err))
	}

	mqttClient.Disconnect()
	logger.Info("EcoHeat stopped")
	return nil
}

// sweepStalePartials clears half-assembled telemetry samples that never
// completed.
func sweepStalePartials(ctx context.Context, a *telemetry.Aggregator, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			a.Sweep(now)
		}
	}
}

func waitTimeout(wg *sync.WaitGroup, d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}
