package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/lightsgoout/exchange-engine/internal/audit"
	"github.com/lightsgoout/exchange-engine/internal/auditsink"
	"github.com/lightsgoout/exchange-engine/internal/config"
	"github.com/lightsgoout/exchange-engine/internal/coordinator"
	"github.com/lightsgoout/exchange-engine/internal/latency"
	"github.com/lightsgoout/exchange-engine/internal/productmanager"
	"github.com/lightsgoout/exchange-engine/internal/relationship"
	"github.com/lightsgoout/exchange-engine/internal/stp"
	"github.com/lightsgoout/exchange-engine/internal/topofbook"
	"github.com/lightsgoout/exchange-engine/internal/usermanager"
)

// system is the fully wired process composition root: every collaborator
// design note §9 demands be constructed explicitly and threaded through,
// never a package-level singleton.
type system struct {
	cfg       *config.Config
	logger    *zap.Logger
	chain     *audit.HashChain
	monitor   *latency.Monitor
	publisher *topofbook.Publisher
	products  *productmanager.Manager
	users     *usermanager.Manager
	coord     *coordinator.Coordinator

	dbSink *auditsink.DBSink
}

// newLogger constructs the process logger. EXCHANGE_ENV=production
// selects zap.NewProduction (JSON, Info+); anything else selects
// zap.NewDevelopment (console, Debug+), per SPEC_FULL.md §4.9.
func newLogger() (*zap.Logger, error) {
	if os.Getenv("EXCHANGE_ENV") == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// buildSystem constructs every collaborator from cfg and registers a
// ProductBook for each configured instrument.
func buildSystem(cfg *config.Config, logger *zap.Logger) (*system, error) {
	s := &system{cfg: cfg, logger: logger}

	var sinks []audit.Sink
	if cfg.Audit.HasSink("file") {
		fileSink, err := audit.NewFileSink(cfg.Audit.FilePath)
		if err != nil {
			return nil, fmt.Errorf("wire: open file audit sink: %w", err)
		}
		sinks = append(sinks, fileSink)
	}
	if cfg.Audit.HasSink("database") {
		dbSink, err := auditsink.NewDBSink(cfg.Audit.DatabaseDSN, logger)
		if err != nil {
			return nil, fmt.Errorf("wire: open database audit sink: %w", err)
		}
		s.dbSink = dbSink
		sinks = append(sinks, dbSink)
	}
	s.chain = audit.NewHashChain(sinks...)

	s.monitor = latency.NewMonitor().WithThresholds(
		latency.Threshold{Phase: "e2e", Limit: cfg.Latency.ThresholdE2E()},
		latency.Threshold{Phase: "matching", Limit: cfg.Latency.ThresholdMatching()},
		latency.Threshold{Phase: "audit", Limit: cfg.Latency.ThresholdAudit()},
	)

	s.publisher = topofbook.NewPublisher()
	s.products = productmanager.New(logger)
	s.users = usermanager.New()

	mode, _ := stp.ParseMode(cfg.STP.Mode)
	rels := relationship.NewRegistry()
	for _, instrument := range cfg.Products {
		if _, err := s.products.Register(instrument, mode, rels, s.chain, s.publisher); err != nil {
			return nil, fmt.Errorf("wire: %w", err)
		}
	}

	s.coord = coordinator.New(s.products, s.users, s.monitor, logger)
	return s, nil
}

func (s *system) Close() {
	if s.dbSink != nil {
		_ = s.dbSink.Close()
	}
}
