package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"laserdamage/aero"
	"laserdamage/assess"
	"laserdamage/config"
	"laserdamage/flight"
	"laserdamage/logging"
	"laserdamage/material"
	"laserdamage/server"
	"laserdamage/simulation"
	"laserdamage/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

func configPath() string {
	if p := os.Getenv("LASERDAMAGE_CONFIG"); p != "" {
		return p
	}
	return "conf/config.ini"
}

func main() {
	if err := run(); err != nil {
		log.WithError(err).Error("laserdamage stopped")
		os.Exit(1)
	}
}

// run 返回前关闭所有资源，main 只负责退出码
func run() (err error) {
	cfg, err := config.Load(configPath())
	if err != nil {
		return errors.WithMessage(err, "配置文件读取错误，请检查文件路径")
	}
	closer, err := logging.Setup(cfg.Log)
	if err != nil {
		return errors.WithMessage(err, "logging setup failed")
	}
	defer func() {
		cerr := closer.Close()
		// GELF 已关闭，之后的日志只写 stderr
		log.SetOutput(os.Stderr)
		if cerr != nil && err == nil {
			err = errors.Wrap(cerr, "close log sink")
		}
	}()

	switch cfg.App.Mode {
	case config.ModeEngine:
		upgrader.CheckOrigin = func(r *http.Request) bool {
			return true
		}
		s := server.NewServer(cfg.Engine.Listen, upgrader, cfg.Engine.MaxSessions)
		return errors.WithMessage(s.Serve(), "engine server stopped")
	case config.ModeBatch:
		return runBatch(cfg)
	}
	return nil
}

func closeQuietly(name string, c io.Closer) {
	if err := c.Close(); err != nil {
		log.WithError(err).Warnf("close %s", name)
	}
}

func runBatch(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	in, err := flight.NewIntegrator(cfg.Airframe, aero.DefaultTable(), cfg.Flight)
	if err != nil {
		return errors.WithMessage(err, "flight model")
	}
	assessor, err := assess.New(cfg.Assessment)
	if err != nil {
		return errors.WithMessage(err, "assessor")
	}

	var results *store.Store
	if cfg.Storage.Type != store.StorageNone {
		if results, err = store.Open(cfg.Storage); err != nil {
			return errors.WithMessage(err, "result store")
		}
		defer closeQuietly("result store", results)
	}

	session := simulation.Connect(ctx, cfg.Engine.URL, cfg.EngineOptions())
	if session != nil {
		defer closeQuietly("engine session", session)
	}

	runner, err := simulation.NewRunner(simulation.Deps{
		Catalog:     material.Default(),
		Session:     session,
		Integrator:  in,
		Translation: cfg.Damage,
		Assessor:    assessor,
		Store:       results,
		Options:     cfg.Simulation,
	})
	if err != nil {
		return errors.WithMessage(err, "runner")
	}

	failed := 0
	for _, o := range runner.RunBatch(ctx, cfg.Scenarios, cfg.Batch.Workers) {
		entry := log.WithField("scenario", o.Scenario)
		if o.Err != nil {
			failed++
			entry.WithError(o.Err).Error("scenario failed")
			continue
		}
		a := o.Result.Assessment
		entry.WithFields(log.Fields{
			"run":         o.Result.RunID,
			"severity":    a.Severity,
			"thermal":     a.ThermalStructural,
			"flight":      a.FlightPerformance,
			"drivers":     a.Drivers,
			"solver":      o.Result.SolverMode,
			"termination": o.Result.Termination,
		}).Info("scenario result")
	}
	if failed > 0 {
		return errors.Errorf("%d of %d scenarios failed", failed, len(cfg.Scenarios))
	}
	return nil
}
