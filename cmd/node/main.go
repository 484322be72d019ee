// Command node runs a full toycoin node: it dials the relay bus,
// subscribes to a channel, and runs the node event loop that admits
// transactions, mines blocks, and adopts longer valid chains.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Roasted12/toycoin-go/internal/config"
	"github.com/Roasted12/toycoin-go/internal/node"
	"github.com/Roasted12/toycoin-go/internal/observability"
	"github.com/Roasted12/toycoin-go/internal/relaybus"
)

func main() {
	cfg, err := config.ParseNodeConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("parsing flags: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Dev)
	if err != nil {
		log.Fatalf("building logger: %v", err)
	}
	defer logger.Sync()

	me := uuid.New().String()[:8]
	logger.Info("starting node", zap.String("id", me), zap.String("channel", cfg.Channel))

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.Handler(reg))
		logger.Info("serving metrics", zap.String("addr", cfg.MetricsAddr))
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()

	reconnector := relaybus.NewReconnector(cfg.Addr(), cfg.Channel, cfg.ReconnectMin, logger)

	for {
		if ctx.Err() != nil {
			break
		}
		client, err := reconnector.Dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			logger.Error("dial failed", zap.Error(err))
			metrics.RelayReconnects.Inc()
			continue
		}

		n := node.New(client, logger, metrics)
		runErr := n.Run(ctx)
		client.Close()

		if ctx.Err() != nil {
			break
		}
		logger.Warn("node loop ended, reconnecting", zap.Error(runErr))
		metrics.RelayReconnects.Inc()
	}

	logger.Info("node shut down")
}
