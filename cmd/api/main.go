package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"HomelabMonitorAPI/internal/alerting"
	"HomelabMonitorAPI/internal/bus"
	"HomelabMonitorAPI/internal/config"
	"HomelabMonitorAPI/internal/database"
	"HomelabMonitorAPI/internal/handler"
	"HomelabMonitorAPI/internal/logger"
	"HomelabMonitorAPI/internal/middleware"
	"HomelabMonitorAPI/internal/mqtt"
	"HomelabMonitorAPI/internal/repository"
	"HomelabMonitorAPI/internal/server"
	"HomelabMonitorAPI/internal/service"
	"HomelabMonitorAPI/internal/websocket"
)

func main() {
	// 1. Load Config
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// 2. Initialize Logger
	log, err := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Mode:        cfg.Logging.Mode,
		LogFilePath: cfg.Logging.FilePath,
		UseColors:   cfg.Logging.UseColors,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer log.Close()

	if err := cfg.Validate(); err != nil {
		log.Fatal("Configuration validation failed: %v", err)
	}

	cfg.Print()
	log.Info("Starting Homelab Monitor API Server")

	// 3. Database Connection
	db, err := database.New(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		log.Fatal("Database migration failed: %v", err)
	}
	log.Info("Database connected and migrated")

	// 4. Repositories
	hostRepo := repository.NewHostRepository(db.DB)
	metricRepo := repository.NewMetricRepository(db.DB)
	ruleRepo := repository.NewAlertRuleRepository(db.DB)
	alertRepo := repository.NewAlertRepository(db.DB)
	analyticsRepo := repository.NewAnalyticsRepository(db.DB)

	// 5. Live updates and the alert pipeline
	hub := websocket.NewHub(log.Named("ws"))

	alertLog := log.Named("alerting")
	ruleCache := alerting.NewRuleCache(ruleRepo, cfg.Alerting.RuleCacheTTL, alertLog)
	cooldowns := alerting.NewCooldownTracker(time.Now)
	engine := alerting.NewEngine(ruleCache, cooldowns, alertRepo, alerting.EngineConfig{
		DefaultCooldown: cfg.Alerting.DefaultCooldown,
	}, alertLog)
	dispatcher := alerting.NewDispatcher(engine, hub, alerting.DispatcherConfig{
		Workers:       cfg.Alerting.Workers,
		QueueSize:     cfg.Alerting.QueueSize,
		EvalTimeout:   cfg.Alerting.EvalTimeout,
		PruneInterval: cfg.Alerting.CooldownPruneInterval,
	}, alertLog)
	dispatcher.Start()

	// 6. Optional rule-change bus
	var (
		ruleBus   *bus.Bus
		publisher service.RuleChangePublisher
	)
	if cfg.NATS.Enabled() {
		ruleBus, err = bus.Connect(cfg.NATS, log.Named("nats"))
		if err != nil {
			log.Fatal("Failed to connect to NATS: %v", err)
		}
		defer ruleBus.Close()

		if err := ruleBus.SubscribeRuleChanges(func(ev bus.RuleChange) {
			log.Debug("Rule %s %s on another replica, invalidating cache", ev.RuleID, ev.Action)
			ruleCache.Invalidate()
		}); err != nil {
			log.Fatal("Failed to subscribe to rule changes: %v", err)
		}
		publisher = ruleBus
	}

	// 7. Services
	hostService := service.NewHostService(hostRepo, hub, log)
	metricService := service.NewMetricService(metricRepo, hostRepo, hub, dispatcher, cfg.Retention.MetricsDays, log)
	ruleService := service.NewRuleService(ruleRepo, ruleCache, publisher, log)
	alertService := service.NewAlertService(alertRepo, hub, log)
	analyticsService := service.NewAnalyticsService(analyticsRepo, log)

	seeds := alerting.DefaultRules()
	if cfg.Alerting.SeedFile != "" {
		if seeds, err = alerting.LoadSeedFile(cfg.Alerting.SeedFile); err != nil {
			log.Fatal("Failed to load alert rule seed file: %v", err)
		}
	}
	if _, err := ruleService.SeedDefaults(ctx, seeds); err != nil {
		log.Error("Failed to seed default alert rules: %v", err)
	}

	hostMonitor := service.NewHostMonitor(hostRepo, metricService, hub, service.HostMonitorConfig{
		StaleAfter:        cfg.Hosts.StaleAfter,
		SweepInterval:     cfg.Hosts.SweepInterval,
		RetentionInterval: cfg.Retention.Interval,
	}, log.Named("hosts"))
	hostMonitor.Start()

	var clusterService *service.ClusterService
	if cfg.Kubernetes.Enabled {
		clusterRepo := repository.NewClusterRepository(db.DB)
		clusterService = service.NewClusterService(clusterRepo, service.KubeClientFactory, hub, service.ClusterMonitorConfig{
			PollInterval: cfg.Kubernetes.PollInterval,
			PollTimeout:  cfg.Kubernetes.PollTimeout,
		}, log.Named("k8s"))
		clusterService.Start()
	}

	// 8. Optional MQTT ingestion
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.NewClient(mqtt.ClientConfig{
			MQTT:   &cfg.MQTT,
			Logger: log.Named("mqtt"),
		})
		if err != nil {
			log.Fatal("Failed to create MQTT client: %v", err)
		}
		if err := mqttClient.Connect(); err != nil {
			log.Fatal("Failed to connect to MQTT broker: %v", err)
		}
		defer mqttClient.Disconnect()

		ingest := mqtt.MetricsHandler(cfg.MQTT.MetricsTopic, service.SourceMQTT, metricService, hostService, 10*time.Second, log)
		if err := mqttClient.Subscribe(cfg.MQTT.MetricsTopic, ingest); err != nil {
			log.Fatal("Failed to subscribe to metrics topic: %v", err)
		}
		log.Info("MQTT ingestion active on %s", cfg.MQTT.MetricsTopic)
	}

	// 9. Handlers
	healthHandler := handler.NewHealthHandler(db, log)
	if mqttClient != nil {
		healthHandler.WithDependency("mqtt", mqttClient)
	}
	if ruleBus != nil {
		healthHandler.WithDependency("nats", ruleBus)
	}

	handlers := server.Handlers{
		Hosts:      handler.NewHostHandler(hostService, log),
		Metrics:    handler.NewMetricHandler(metricService, log),
		AlertRules: handler.NewAlertRuleHandler(ruleService, log),
		Alerts:     handler.NewAlertHandler(alertService, log),
		Analytics:  handler.NewAnalyticsHandler(analyticsService, log),
		Health:     healthHandler,
		WS: handler.NewWSHandler(hub, websocket.Config{
			IdleTimeout:    cfg.WebSocket.IdleTimeout,
			PongTimeout:    cfg.WebSocket.PongTimeout,
			WriteWait:      cfg.WebSocket.WriteWait,
			SendBuffer:     cfg.WebSocket.SendBuffer,
			MaxMessageSize: cfg.WebSocket.MaxMessageSize,
		}, log.Named("ws")),
		AgentAuth: middleware.AgentAuth(hostService, cfg.Security.APIKeyHeader, service.ErrUnauthorized, log),
	}
	if clusterService != nil {
		handlers.Clusters = handler.NewClusterHandler(clusterService, log)
	}

	// 10. Start HTTP Server
	srv := server.New(cfg, log)
	srv.RegisterHandlers(handlers)

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal("Server failed: %v", err)
		}
	}()

	log.Info("API server ready on http://%s:%d", cfg.Server.Host, cfg.Server.Port)

	// 11. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Warn("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error: %v", err)
	}

	hostMonitor.Shutdown()
	if clusterService != nil {
		clusterService.Shutdown()
	}
	if err := dispatcher.Stop(shutdownCtx); err != nil {
		log.Error("Alert dispatcher did not drain: %v", err)
	}
	hub.Close()

	log.Info("Shutdown complete")
}
