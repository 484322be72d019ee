// Command oracle runs the transaction oracle: it bootstraps a small
// set of wallets from a freshly mined genesis block and thereafter
// broadcasts random valid payments between them, giving running nodes
// a steady source of traffic to validate against.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Roasted12/toycoin-go/internal/config"
	"github.com/Roasted12/toycoin-go/internal/observability"
	"github.com/Roasted12/toycoin-go/internal/oracle"
	"github.com/Roasted12/toycoin-go/internal/relaybus"
)

func main() {
	cfg, err := config.ParseOracleConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("parsing flags: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Dev)
	if err != nil {
		log.Fatalf("building logger: %v", err)
	}
	defer logger.Sync()

	me := uuid.New().String()[:8]
	logger.Info("starting oracle", zap.String("id", me), zap.String("channel", cfg.Channel))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client, err := relaybus.Dial(ctx, cfg.Addr(), cfg.Channel, logger)
	if err != nil {
		log.Fatalf("dial relay: %v", err)
	}
	defer client.Close()

	o, err := oracle.New(client, logger, time.Now().UnixNano(), cfg.MinInterval, cfg.MaxInterval, cfg.MinSend, cfg.MaxSend)
	if err != nil {
		log.Fatalf("building oracle: %v", err)
	}

	if err := o.Bootstrap(); err != nil {
		log.Fatalf("bootstrapping genesis block: %v", err)
	}

	if err := o.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("oracle loop ended", zap.Error(err))
	}
	logger.Info("oracle shut down")
}
