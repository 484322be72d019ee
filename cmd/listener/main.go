// Command listener is a read-only diagnostic client: it subscribes to
// a relay channel and prints a human-readable summary of every TXN and
// BLOC frame it observes, independent of any node's own state.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Roasted12/toycoin-go/internal/config"
	"github.com/Roasted12/toycoin-go/internal/observability"
	"github.com/Roasted12/toycoin-go/internal/relaybus"
	"github.com/Roasted12/toycoin-go/internal/wire"
)

func main() {
	cfg, err := config.ParseListenerConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("parsing flags: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Dev)
	if err != nil {
		log.Fatalf("building logger: %v", err)
	}
	defer logger.Sync()

	me := uuid.New().String()[:8]
	logger.Info("starting listener", zap.String("id", me), zap.String("channel", cfg.Channel))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client, err := relaybus.Dial(ctx, cfg.Addr(), cfg.Channel, logger)
	if err != nil {
		log.Fatalf("dial relay: %v", err)
	}
	defer client.Close()

	for {
		select {
		case <-ctx.Done():
			logger.Info("listener shut down")
			return
		case frame, ok := <-client.Frames():
			if !ok {
				logger.Info("relay connection ended")
				return
			}
			handleFrame(logger, frame)
		}
	}
}

func handleFrame(logger *zap.Logger, frame []byte) {
	tag, body, ok := wire.SplitTag(frame)
	if !ok {
		logger.Warn("received short frame")
		return
	}
	switch tag {
	case wire.TxnTag:
		pair, err := wire.UnpackTxnPair(body)
		if err != nil {
			logger.Warn("could not unpack TXN frame", zap.Error(err))
			return
		}
		log.Printf("Received TXN:\n%s", wire.ShowTxnPair(pair))
	case wire.BlockTag:
		chain, err := wire.UnpackBlockchain(body)
		if err != nil {
			logger.Warn("could not unpack BLOC frame", zap.Error(err))
			return
		}
		log.Printf("Received BLOC:\n%s", wire.ShowBlockchain(chain))
	default:
		logger.Warn("could not handle message type", zap.ByteString("tag", tag[:]))
	}
}
