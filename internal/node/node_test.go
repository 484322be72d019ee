package node

import (
	"context"
	"crypto/rsa"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Roasted12/toycoin-go/internal/block"
	"github.com/Roasted12/toycoin-go/internal/ledger"
	"github.com/Roasted12/toycoin-go/internal/observability"
	"github.com/Roasted12/toycoin-go/internal/relaybus"
	"github.com/Roasted12/toycoin-go/internal/signature"
	"github.com/Roasted12/toycoin-go/internal/wire"
)

func newKeypair(t *testing.T) (signature.Address, *rsa.PrivateKey) {
	t.Helper()
	priv, err := signature.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	addr, err := signature.PublicKeyAddress(priv)
	if err != nil {
		t.Fatalf("PublicKeyAddress: %v", err)
	}
	return addr, priv
}

func connectedClients(t *testing.T) (*relaybus.Client, net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	serverConnCh := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			wire.ReadFrame(conn) // consume subscribe handshake
			serverConnCh <- conn
		}
	}()

	client, err := relaybus.Dial(context.Background(), ln.Addr().String(), "blocks", zap.NewNop())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	select {
	case serverConn := <-serverConnCh:
		t.Cleanup(func() { serverConn.Close() })
		return client, serverConn
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server-side accept")
		return nil, nil
	}
}

func newTestNode(t *testing.T) (*Node, net.Conn) {
	t.Helper()
	client, serverConn := connectedClients(t)
	reg := prometheus.NewRegistry()
	n := New(client, zap.NewNop(), observability.NewMetrics(reg))
	return n, serverConn
}

// mintToSender mines a one-transaction genesis-rooted block minting value
// to senderAddr, returning the chain containing it plus the spendable token.
func mintToSender(senderAddr signature.Address, value uint64) ([]block.Block, ledger.Token) {
	txn := ledger.Transaction{Receiver: senderAddr, ReceiverValue: value, Sender: signature.Address("genesis")}
	b, _ := block.GenBlock(block.Genesis, []ledger.Transaction{txn}, block.Difficulty(0))
	tok := ledger.Token{TxnHash: ledger.HashTxn(txn), Owner: senderAddr, Value: value}
	return []block.Block{*b}, tok
}

func TestHandleFrameAdmitsValidTxnPair(t *testing.T) {
	n, _ := newTestNode(t)
	senderAddr, senderPriv := newKeypair(t)
	receiverAddr, _ := newKeypair(t)

	chain, tok := mintToSender(senderAddr, 10)
	n.Chain = chain

	pair, ok := ledger.Send(receiverAddr, senderAddr, senderPriv, 10, []ledger.Token{tok})
	if !ok {
		t.Fatal("ledger.Send failed")
	}

	body, err := wire.PackTxnPair(pair)
	if err != nil {
		t.Fatalf("PackTxnPair: %v", err)
	}
	n.HandleFrame(wire.TagBody(wire.TxnTag, body))

	if len(n.Pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(n.Pending))
	}
}

func TestHandleFrameRejectsDoubleSpendAgainstPending(t *testing.T) {
	n, _ := newTestNode(t)
	senderAddr, senderPriv := newKeypair(t)
	receiverAddr, _ := newKeypair(t)

	chain, tok := mintToSender(senderAddr, 10)
	n.Chain = chain

	pair1, ok := ledger.Send(receiverAddr, senderAddr, senderPriv, 10, []ledger.Token{tok})
	if !ok {
		t.Fatal("Send 1 failed")
	}
	otherReceiver, _ := newKeypair(t)
	pair2, ok := ledger.Send(otherReceiver, senderAddr, senderPriv, 10, []ledger.Token{tok})
	if !ok {
		t.Fatal("Send 2 failed")
	}

	body1, _ := wire.PackTxnPair(pair1)
	body2, _ := wire.PackTxnPair(pair2)
	n.HandleFrame(wire.TagBody(wire.TxnTag, body1))
	n.HandleFrame(wire.TagBody(wire.TxnTag, body2))

	if len(n.Pending) != 1 {
		t.Fatalf("pending = %d, want 1 (second spend of the same token must be rejected)", len(n.Pending))
	}
}

func TestHandleFrameAdoptsLongerValidChain(t *testing.T) {
	n, _ := newTestNode(t)
	addr, _ := newKeypair(t)
	chain, _ := mintToSender(addr, 5)

	body, err := wire.PackBlockchain(chain)
	if err != nil {
		t.Fatalf("PackBlockchain: %v", err)
	}
	n.HandleFrame(wire.TagBody(wire.BlockTag, body))

	if len(n.Chain) != 1 {
		t.Fatalf("chain length = %d, want 1", len(n.Chain))
	}
}

func TestHandleFrameIgnoresShorterChain(t *testing.T) {
	n, _ := newTestNode(t)
	addr, _ := newKeypair(t)

	txn1 := ledger.Transaction{Receiver: addr, ReceiverValue: 5, Sender: signature.Address("genesis")}
	b1, remainder := block.GenBlock(block.Genesis, []ledger.Transaction{txn1}, block.Difficulty(0))
	txn2 := ledger.Transaction{Receiver: addr, ReceiverValue: 6, Sender: signature.Address("genesis")}
	b2, _ := block.GenBlock(b1.Header.ThisHash, append(remainder, txn2), block.Difficulty(1))
	n.Chain = []block.Block{*b1, *b2}

	shorter := []block.Block{*b1}
	body, _ := wire.PackBlockchain(shorter)
	n.HandleFrame(wire.TagBody(wire.BlockTag, body))

	if len(n.Chain) != 2 {
		t.Fatalf("chain length = %d, want 2 (shorter chain must not replace it)", len(n.Chain))
	}
}

func TestHandleFrameDropsUnknownTag(t *testing.T) {
	n, _ := newTestNode(t)
	n.HandleFrame(wire.TagBody([4]byte{'X', 'X', 'X', 'X'}, []byte("junk")))
	if len(n.Pending) != 0 || len(n.Chain) != 0 {
		t.Fatal("unknown-tag frame should not mutate node state")
	}
}

func TestMiningRoundAppendsBlockAndPublishes(t *testing.T) {
	n, serverConn := newTestNode(t)
	senderAddr, senderPriv := newKeypair(t)
	receiverAddr, _ := newKeypair(t)
	otherReceiver, _ := newKeypair(t)

	mintTxn1 := ledger.Transaction{Receiver: senderAddr, ReceiverValue: 20, Sender: signature.Address("genesis")}
	mintTxn2 := ledger.Transaction{Receiver: senderAddr, ReceiverValue: 10, Sender: signature.Address("genesis")}
	genesisBlock, _ := block.GenBlock(block.Genesis, []ledger.Transaction{mintTxn1, mintTxn2}, block.Difficulty(0))
	n.Chain = []block.Block{*genesisBlock}
	tok1 := ledger.Token{TxnHash: ledger.HashTxn(mintTxn1), Owner: senderAddr, Value: 20}
	tok2 := ledger.Token{TxnHash: ledger.HashTxn(mintTxn2), Owner: senderAddr, Value: 10}

	// The mined block's timestamp must be strictly later than the genesis
	// block's, and timestamps have one-second resolution.
	time.Sleep(time.Second)

	pair1, ok := ledger.Send(receiverAddr, senderAddr, senderPriv, 5, []ledger.Token{tok1})
	if !ok {
		t.Fatal("Send 1 failed")
	}
	pair2, ok := ledger.Send(otherReceiver, senderAddr, senderPriv, 1, []ledger.Token{tok2})
	if !ok {
		t.Fatal("Send 2 failed")
	}

	n.admit(pair1)
	n.admit(pair2)

	if !n.mining {
		t.Fatal("expected mining to start once MinBatchSize pending pairs are admitted")
	}

	select {
	case res := <-n.results:
		n.handleMiningResult(res)
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for mining result")
	}

	if len(n.Chain) != 2 {
		t.Fatalf("chain length = %d, want 2 after a successful mining round", len(n.Chain))
	}
	if len(n.Pending) != 0 {
		t.Fatalf("pending = %d, want 0 once all admitted txns made it into the block", len(n.Pending))
	}

	chanFrame, err := wire.ReadFrame(serverConn)
	if err != nil {
		t.Fatalf("expected a channel-name frame before the published payload: %v", err)
	}
	if string(chanFrame) != "blocks" {
		t.Fatalf("published channel-name frame = %q, want %q", chanFrame, "blocks")
	}

	frame, err := wire.ReadFrame(serverConn)
	if err != nil {
		t.Fatalf("expected the mined chain to be published: %v", err)
	}
	tag, _, ok2 := wire.SplitTag(frame)
	if !ok2 || tag != wire.BlockTag {
		t.Fatalf("published frame tag = %v, want BlockTag", tag)
	}
}

// TestPendingAdmittedDuringMiningSurvives pins a prior bug: a pair
// admitted to Pending while a mining attempt is already in flight must
// not be purged by resetPending, since it was never part of the batch
// handed to GenBlock and so can never appear in the worker's remainder.
func TestPendingAdmittedDuringMiningSurvives(t *testing.T) {
	n, _ := newTestNode(t)
	senderAddr, senderPriv := newKeypair(t)
	receiverAddr, _ := newKeypair(t)
	otherSenderAddr, otherSenderPriv := newKeypair(t)
	otherReceiverAddr, _ := newKeypair(t)

	mintTxn1 := ledger.Transaction{Receiver: senderAddr, ReceiverValue: 20, Sender: signature.Address("genesis")}
	mintTxn2 := ledger.Transaction{Receiver: otherSenderAddr, ReceiverValue: 10, Sender: signature.Address("genesis")}
	mintTxn3 := ledger.Transaction{Receiver: senderAddr, ReceiverValue: 15, Sender: signature.Address("genesis")}
	genesisBlock, _ := block.GenBlock(block.Genesis, []ledger.Transaction{mintTxn1, mintTxn2, mintTxn3}, block.Difficulty(0))
	n.Chain = []block.Block{*genesisBlock}
	tok1 := ledger.Token{TxnHash: ledger.HashTxn(mintTxn1), Owner: senderAddr, Value: 20}
	tok2 := ledger.Token{TxnHash: ledger.HashTxn(mintTxn2), Owner: otherSenderAddr, Value: 10}
	tok3 := ledger.Token{TxnHash: ledger.HashTxn(mintTxn3), Owner: senderAddr, Value: 15}

	pair1, ok := ledger.Send(receiverAddr, senderAddr, senderPriv, 5, []ledger.Token{tok1})
	if !ok {
		t.Fatal("Send 1 failed")
	}
	n.admit(pair1)
	if n.mining {
		t.Fatal("mining should not start below MinBatchSize")
	}

	pair2, ok := ledger.Send(receiverAddr, senderAddr, senderPriv, 1, []ledger.Token{tok3})
	if !ok {
		t.Fatal("Send 2 failed")
	}
	n.admit(pair2)
	if !n.mining {
		t.Fatal("expected mining to start once MinBatchSize pending pairs are admitted")
	}

	lateIn, ok := ledger.Send(otherReceiverAddr, otherSenderAddr, otherSenderPriv, 10, []ledger.Token{tok2})
	if !ok {
		t.Fatal("late send failed")
	}
	n.admit(lateIn)
	if len(n.Pending) != 3 {
		t.Fatalf("pending = %d, want 3 before the in-flight mining result arrives", len(n.Pending))
	}

	select {
	case res := <-n.results:
		n.handleMiningResult(res)
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for mining result")
	}

	if len(n.Pending) != 1 {
		t.Fatalf("pending = %d, want 1 (the pair admitted after mining started must survive)", len(n.Pending))
	}
	if ledger.HashTxn(n.Pending[0].Txn) != ledger.HashTxn(lateIn.Txn) {
		t.Fatal("surviving pending pair is not the one admitted after mining started")
	}
}
