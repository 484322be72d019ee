// Package node implements the full node's event loop: it ingests
// framed relay messages, admits transaction pairs into a pending
// batch, offloads proof-of-work to a worker goroutine, and replaces
// its chain whenever a longer valid one arrives.
package node

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Roasted12/toycoin-go/internal/block"
	"github.com/Roasted12/toycoin-go/internal/hashing"
	"github.com/Roasted12/toycoin-go/internal/ledger"
	"github.com/Roasted12/toycoin-go/internal/observability"
	"github.com/Roasted12/toycoin-go/internal/relaybus"
	"github.com/Roasted12/toycoin-go/internal/wire"
)

// miningResult is what the offloaded GenBlock call reports back.
type miningResult struct {
	block     *block.Block
	remainder []ledger.Transaction
}

// Node owns the local chain and pending-batch state. Every field below
// is mutated only from the single goroutine running Run; the only
// concurrency crossing that boundary is the channel carrying
// miningResult back from the offloaded proof-of-work worker.
type Node struct {
	Chain   []block.Block
	Pending []ledger.TxnPair

	relay   *relaybus.Client
	logger  *zap.Logger
	metrics *observability.Metrics

	pendingSpent map[string]struct{}
	results      chan miningResult
	mining       bool
	miningBatch  int // len(Pending) captured when the in-flight attempt started
}

// New creates a node that publishes mined blocks and reads incoming
// frames over relay.
func New(relay *relaybus.Client, logger *zap.Logger, metrics *observability.Metrics) *Node {
	return &Node{
		relay:        relay,
		logger:       logger,
		metrics:      metrics,
		pendingSpent: make(map[string]struct{}),
		results:      make(chan miningResult, 1),
	}
}

// Run is the event loop. It returns when ctx is canceled or the relay
// connection's frame channel closes.
func (n *Node) Run(ctx context.Context) error {
	frames := n.relay.Frames()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-frames:
			if !ok {
				return fmt.Errorf("node: relay connection closed")
			}
			n.HandleFrame(frame)
		case res := <-n.results:
			n.handleMiningResult(res)
		}
	}
}

// HandleFrame classifies a tagged relay frame and dispatches it.
func (n *Node) HandleFrame(frame []byte) {
	tag, body, ok := wire.SplitTag(frame)
	if !ok {
		n.drop("short_frame")
		return
	}
	switch tag {
	case wire.TxnTag:
		n.handleTxnFrame(body)
	case wire.BlockTag:
		n.handleBlockFrame(body)
	default:
		n.logger.Info("dropping frame with unrecognized tag", zap.ByteString("tag", tag[:]))
		n.drop("unknown_tag")
	}
}

func (n *Node) handleTxnFrame(body []byte) {
	pair, err := wire.UnpackTxnPair(body)
	if err != nil {
		n.logger.Info("dropping unparseable txn frame", zap.Error(err))
		n.drop("unparseable_txn")
		return
	}
	if !ledger.ValidTxn(pair.Tokens, pair.Txn) {
		n.logger.Info("dropping invalid txn pair", zap.String("txn", wire.ShowTxnPair(pair)))
		n.drop("invalid_txn")
		return
	}
	n.admit(pair)
}

func (n *Node) handleBlockFrame(body []byte) {
	chain, err := wire.UnpackBlockchain(body)
	if err != nil {
		n.logger.Info("dropping unparseable block frame", zap.Error(err))
		n.drop("unparseable_block")
		return
	}
	if len(chain) <= len(n.Chain) {
		n.drop("not_longer")
		return
	}
	if !block.ValidBlockchain(chain) {
		n.drop("invalid_chain")
		return
	}
	n.Chain = chain
	n.metrics.ChainHeight.Set(float64(len(n.Chain)))
	n.logger.Info("replaced chain", zap.Int("height", len(n.Chain)))
}

func (n *Node) drop(reason string) {
	n.metrics.FramesDropped.WithLabelValues(reason).Inc()
}

// admit applies the mining-side double-spend guard (spec.md §4.6): the
// tokens must have provenance in the committed chain, and none may
// already be claimed by a pair already sitting in Pending. It then
// possibly starts a mining attempt.
func (n *Node) admit(pair ledger.TxnPair) bool {
	if !block.ValidTokens(pair.Tokens, n.Chain) {
		n.logger.Info("rejecting txn pair: tokens have no provenance in chain")
		n.drop("no_provenance")
		return false
	}
	for _, tok := range pair.Tokens {
		if _, claimed := n.pendingSpent[tokenKey(tok)]; claimed {
			n.logger.Info("rejecting txn pair: token already pending")
			n.drop("double_spend")
			return false
		}
	}

	for _, tok := range pair.Tokens {
		n.pendingSpent[tokenKey(tok)] = struct{}{}
	}
	n.Pending = append(n.Pending, pair)
	n.metrics.PendingDepth.Set(float64(len(n.Pending)))

	n.maybeStartMining()
	return true
}

func tokenKey(tok ledger.Token) string {
	return string(tok.TxnHash.Bytes()) + "\x00" + string(tok.Owner)
}

// maybeStartMining launches GenBlock on a worker goroutine once at
// least MinBatchSize pairs are pending and no mining attempt is
// already in flight. GenBlock is pure given its inputs, so running it
// off the event-loop goroutine mutates no shared state; only the
// result, delivered over n.results, does.
func (n *Node) maybeStartMining() {
	if n.mining || len(n.Pending) < block.MinBatchSize {
		return
	}
	n.mining = true
	n.miningBatch = len(n.Pending)

	txns := make([]ledger.Transaction, len(n.Pending))
	for i, pair := range n.Pending {
		txns[i] = pair.Txn
	}
	previousHash := block.Genesis
	if len(n.Chain) > 0 {
		previousHash = n.Chain[len(n.Chain)-1].Header.ThisHash
	}
	difficulty := block.Difficulty(len(n.Chain))

	results := n.results
	go func() {
		b, remainder := block.GenBlock(previousHash, txns, difficulty)
		results <- miningResult{block: b, remainder: remainder}
	}()
}

// handleMiningResult applies spec.md §4.5 step 4/5: a successful,
// chain-extending block is appended and broadcast; any pending pair
// whose transaction didn't survive into the worker's remainder is
// dropped along with its double-spend claim. Any failure drops the
// whole pending batch.
func (n *Node) handleMiningResult(res miningResult) {
	n.mining = false

	if res.block != nil && block.ValidBlockchain(append(append([]block.Block(nil), n.Chain...), *res.block)) {
		n.Chain = append(n.Chain, *res.block)
		n.metrics.ChainHeight.Set(float64(len(n.Chain)))
		n.metrics.BlocksMined.Inc()
		n.publishChain()
		n.resetPending(res.remainder)
		return
	}

	n.logger.Info("mining attempt failed or produced an invalid chain, dropping pending batch")
	n.resetPending(nil)
}

// resetPending reconciles Pending against the outcome of the mining
// attempt that was in flight over the first n.miningBatch entries. Only
// that prefix was ever handed to GenBlock, so only it is filtered down
// to whichever pairs survived (identified by their transaction still
// being present in survivors); anything admitted after the attempt
// started was never part of it and is kept untouched.
func (n *Node) resetPending(survivors []ledger.Transaction) {
	survivorHashes := make(map[hashing.Digest]struct{}, len(survivors))
	for _, txn := range survivors {
		survivorHashes[ledger.HashTxn(txn)] = struct{}{}
	}

	batch := n.miningBatch
	if batch > len(n.Pending) {
		batch = len(n.Pending)
	}

	kept := make([]ledger.TxnPair, 0, len(n.Pending))
	for _, pair := range n.Pending[:batch] {
		if _, ok := survivorHashes[ledger.HashTxn(pair.Txn)]; ok {
			kept = append(kept, pair)
		}
	}
	kept = append(kept, n.Pending[batch:]...)
	n.Pending = kept
	n.miningBatch = 0

	n.pendingSpent = make(map[string]struct{}, len(n.Pending)*2)
	for _, pair := range n.Pending {
		for _, tok := range pair.Tokens {
			n.pendingSpent[tokenKey(tok)] = struct{}{}
		}
	}
	n.metrics.PendingDepth.Set(float64(len(n.Pending)))
}

// publishChain sends the two-frame publish envelope (channel name,
// then tagged body) that broadcasts the newly extended chain.
func (n *Node) publishChain() {
	payload, err := wire.PackBlockchain(n.Chain)
	if err != nil {
		n.logger.Error("failed to pack blockchain for broadcast", zap.Error(err))
		return
	}
	if err := n.relay.Publish(wire.BlockTag, payload); err != nil {
		n.logger.Error("failed to publish mined block", zap.Error(err))
	}
}
