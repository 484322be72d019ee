package oracle

import (
	"context"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Roasted12/toycoin-go/internal/relaybus"
	"github.com/Roasted12/toycoin-go/internal/wire"
)

func connectedOracle(t *testing.T) (*Oracle, net.Conn) {
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
			wire.ReadFrame(conn)
			serverConnCh <- conn
		}
	}()

	client, err := relaybus.Dial(context.Background(), ln.Addr().String(), "blocks", zap.NewNop())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	var serverConn net.Conn
	select {
	case serverConn = <-serverConnCh:
		t.Cleanup(func() { serverConn.Close() })
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server-side accept")
	}

	o, err := New(client, zap.NewNop(), 1, time.Millisecond, 2*time.Millisecond, 1, 10)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o, serverConn
}

func TestBootstrapPublishesValidGenesisChain(t *testing.T) {
	o, serverConn := connectedOracle(t)

	if err := o.Bootstrap(); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if o.wallets[0].Balance() != genesisGrants[0] {
		t.Fatalf("wallet 0 balance = %d, want %d", o.wallets[0].Balance(), genesisGrants[0])
	}
	if o.wallets[1].Balance() != genesisGrants[1] {
		t.Fatalf("wallet 1 balance = %d, want %d", o.wallets[1].Balance(), genesisGrants[1])
	}

	chanFrame, err := wire.ReadFrame(serverConn)
	if err != nil {
		t.Fatalf("ReadFrame (channel name): %v", err)
	}
	if string(chanFrame) != "blocks" {
		t.Fatalf("published channel-name frame = %q, want %q", chanFrame, "blocks")
	}

	frame, err := wire.ReadFrame(serverConn)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	tag, body, ok := wire.SplitTag(frame)
	if !ok || tag != wire.BlockTag {
		t.Fatalf("tag = %v, ok=%v, want BlockTag", tag, ok)
	}
	chain, err := wire.UnpackBlockchain(body)
	if err != nil {
		t.Fatalf("UnpackBlockchain: %v", err)
	}
	if len(chain) != 1 {
		t.Fatalf("chain length = %d, want 1", len(chain))
	}
}

func TestSendRandomPaymentConservesValue(t *testing.T) {
	o, serverConn := connectedOracle(t)
	if err := o.Bootstrap(); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	wire.ReadFrame(serverConn) // drain the bootstrap publish: channel name...
	wire.ReadFrame(serverConn) // ...then the tagged block frame

	totalBefore := o.totalBalance()
	o.sendRandomPayment()
	totalAfter := o.totalBalance()

	if totalAfter != totalBefore {
		t.Fatalf("total balance changed from %d to %d; sends must conserve value", totalBefore, totalAfter)
	}
}

func (o *Oracle) totalBalance() uint64 {
	var total uint64
	for _, w := range o.wallets {
		total += w.Balance()
	}
	return total
}

func TestDrawTwoAreDistinct(t *testing.T) {
	o, _ := connectedOracle(t)
	for i := 0; i < 50; i++ {
		a, b := o.drawTwo(len(o.wallets))
		if a == b {
			t.Fatalf("drawTwo returned equal indices: %d, %d", a, b)
		}
		if a < 0 || a >= len(o.wallets) || b < 0 || b >= len(o.wallets) {
			t.Fatalf("drawTwo out of range: %d, %d", a, b)
		}
	}
}
