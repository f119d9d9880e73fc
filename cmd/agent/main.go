package main

import (
	"os"
	"os/signal"
	"syscall"

	"HomelabMonitorAPI/internal/agent"
	"HomelabMonitorAPI/internal/config"
	"HomelabMonitorAPI/internal/logger"
)

func main() {
	cfg, err := config.LoadAgent()
	if err != nil {
		panic("Failed to load agent configuration: " + err.Error())
	}

	log, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		Mode:      cfg.Logging.Mode,
		UseColors: cfg.Logging.UseColors,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer log.Close()

	log.Info("Starting Homelab Monitor agent, reporting to %s", cfg.ServerURL)

	collector := agent.NewCollector(agent.HostSampler{}, cfg.DiskPaths, log)
	reporter := agent.NewReporter(cfg.ServerURL, cfg.APIKey, cfg.Timeout)
	runner := agent.NewRunner(collector, reporter, cfg.Interval, cfg.Timeout, log)
	runner.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Warn("Shutdown signal received")
	runner.Shutdown()
}
