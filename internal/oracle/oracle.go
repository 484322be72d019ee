// Package oracle implements a reference transaction generator: it
// bootstraps a handful of wallets from a freshly mined genesis block,
// then periodically sends a random valid payment between two of them,
// broadcasting it over the relay bus. It exists to give running nodes
// a steady stream of well-formed traffic to validate against.
package oracle

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/Roasted12/toycoin-go/internal/block"
	"github.com/Roasted12/toycoin-go/internal/ledger"
	"github.com/Roasted12/toycoin-go/internal/relaybus"
	"github.com/Roasted12/toycoin-go/internal/signature"
	"github.com/Roasted12/toycoin-go/internal/wallet"
	"github.com/Roasted12/toycoin-go/internal/wire"
)

// genesisGrants are the coinbase amounts minted to the first two
// wallets when the oracle bootstraps a fresh network.
var genesisGrants = [2]uint64{100, 50}

// Oracle drives a fixed set of wallets through a random-send loop. It
// is, like wallet.Wallet, single-owner state: everything here runs
// from the one goroutine Run is called on.
type Oracle struct {
	relay  *relaybus.Client
	logger *zap.Logger
	rng    *rand.Rand

	wallets     []*wallet.Wallet
	minInterval time.Duration
	maxInterval time.Duration
	minSend     uint64
	maxSend     uint64
}

// New creates an Oracle with four wallets. Bootstrap funds the first
// two; the other two only receive funds via later sends, matching the
// reference's c/d wallets.
func New(relay *relaybus.Client, logger *zap.Logger, seed int64, minInterval, maxInterval time.Duration, minSend, maxSend uint64) (*Oracle, error) {
	wallets := make([]*wallet.Wallet, 4)
	for i := range wallets {
		priv, err := signature.GenerateKey()
		if err != nil {
			return nil, err
		}
		addr, err := signature.PublicKeyAddress(priv)
		if err != nil {
			return nil, err
		}
		wallets[i] = wallet.New(addr, priv)
	}
	return &Oracle{
		relay:       relay,
		logger:      logger,
		rng:         rand.New(rand.NewSource(seed)),
		wallets:     wallets,
		minInterval: minInterval,
		maxInterval: maxInterval,
		minSend:     minSend,
		maxSend:     maxSend,
	}, nil
}

// Bootstrap mints genesisGrants to the first two wallets as a single
// mined block, credits those wallets locally, and broadcasts the
// resulting one-block chain so nodes have a tip to build on.
func (o *Oracle) Bootstrap() error {
	txns := make([]ledger.Transaction, len(genesisGrants))
	for i, value := range genesisGrants {
		txns[i] = ledger.Transaction{
			Receiver:      o.wallets[i].PublicKey,
			ReceiverValue: value,
			Sender:        signature.Address("genesis"),
		}
	}

	b, _ := block.GenBlock(block.Genesis, txns, block.Difficulty(0))
	for i, txn := range txns {
		o.wallets[i].Receive(txn)
	}

	o.logger.Info("bootstrapped genesis block", zap.Int("txns", len(txns)))
	payload, err := wire.PackBlockchain([]block.Block{*b})
	if err != nil {
		return err
	}
	return o.relay.Publish(wire.BlockTag, payload)
}

// Run sends one random payment per iteration, sleeping a random
// duration in [minInterval, maxInterval) between attempts, until ctx
// is canceled.
func (o *Oracle) Run(ctx context.Context) error {
	for {
		wait := o.randomInterval()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		o.sendRandomPayment()
	}
}

func (o *Oracle) randomInterval() time.Duration {
	span := o.maxInterval - o.minInterval
	if span <= 0 {
		return o.minInterval
	}
	return o.minInterval + time.Duration(o.rng.Int63n(int64(span)))
}

// sendRandomPayment draws two distinct wallets and sends as much as
// the random amount allows (capped by the sender's balance), mirroring
// the reference oracle's draw_two/update_state loop.
func (o *Oracle) sendRandomPayment() {
	senderIdx, receiverIdx := o.drawTwo(len(o.wallets))
	sender, receiver := o.wallets[senderIdx], o.wallets[receiverIdx]

	amount := o.minSend
	if o.maxSend > o.minSend {
		amount += uint64(o.rng.Int63n(int64(o.maxSend - o.minSend + 1)))
	}
	if bal := sender.Balance(); amount > bal {
		amount = bal
	}
	if amount == 0 {
		return
	}

	pair, ok := sender.Send(receiver.PublicKey, amount)
	if !ok {
		o.logger.Warn("oracle send unexpectedly failed", zap.Uint64("amount", amount))
		return
	}

	txnHash := ledger.HashTxn(pair.Txn)
	sender.ConfirmSend(txnHash)
	sender.Receive(pair.Txn)
	receiver.Receive(pair.Txn)

	o.logger.Info("oracle sent payment",
		zap.Int("from", senderIdx), zap.Int("to", receiverIdx), zap.Uint64("amount", amount))

	body, err := wire.PackTxnPair(pair)
	if err != nil {
		o.logger.Error("failed to pack oracle txn pair", zap.Error(err))
		return
	}
	if err := o.relay.Publish(wire.TxnTag, body); err != nil {
		o.logger.Error("failed to publish oracle txn pair", zap.Error(err))
	}
}

// drawTwo picks two distinct indices in [0, n).
func (o *Oracle) drawTwo(n int) (int, int) {
	i := o.rng.Intn(n)
	j := (i + 1 + o.rng.Intn(n-1)) % n
	return i, j
}
