package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"toolcrib-api/internal/config"
	"toolcrib-api/internal/simulator"
	"toolcrib-api/pkg/logger"
)

// Standalone event generator. Posts synthetic detections to
// SIMULATOR_TARGET_URL on SIMULATOR_SCHEDULE until interrupted.
func main() {
	cfg := config.MustLoad()
	log := logger.Must(logger.New("toolcrib-simulator", cfg.App.LogLevel, cfg.App.Environment))
	defer log.Sync()

	if cfg.Simulator.TargetURL == "" {
		log.Fatal("SIMULATOR_TARGET_URL is required")
	}

	gen := simulator.NewGenerator(simulator.Pool{}, cfg.Simulator.OriginIP, time.Now().UnixNano())
	sim, err := simulator.New(simulator.NewHTTPSink(cfg.Simulator.TargetURL), gen, cfg.Simulator.Schedule, log)
	if err != nil {
		log.Fatal("failed to create simulator", zap.Error(err))
	}

	log.Info("posting synthetic detections", zap.String("target", cfg.Simulator.TargetURL))
	sim.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	<-sim.Stop().Done()
	log.Info("simulator stopped")
}
