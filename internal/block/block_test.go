package block

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Roasted12/toycoin-go/internal/hashing"
	"github.com/Roasted12/toycoin-go/internal/ledger"
	"github.com/Roasted12/toycoin-go/internal/signature"
)

func coinbaseTxn(t *testing.T, receiver signature.Address, value uint64) ledger.Transaction {
	t.Helper()
	return ledger.Transaction{
		Receiver:      receiver,
		ReceiverValue: value,
		Sender:        signature.Address("genesis"),
	}
}

func TestDifficultySchedule(t *testing.T) {
	cases := map[int]int{-1: 1, 0: 1, 1: 1, 2: 2, 3: 2, 4: 3, 7: 3, 8: 4}
	for n, want := range cases {
		if got := Difficulty(n); got != want {
			t.Errorf("Difficulty(%d) = %d, want %d", n, got, want)
		}
	}
}

func TestGenBlockCapsAtBlockMaxTxns(t *testing.T) {
	addr, _ := signature.GenerateKey()
	pubAddr, _ := signature.PublicKeyAddress(addr)

	txns := make([]ledger.Transaction, BlockMaxTxns+3)
	for i := range txns {
		txns[i] = coinbaseTxn(t, pubAddr, uint64(i+1))
	}

	b, remainder := GenBlock(Genesis, txns, 1)
	require.NotNil(t, b, "GenBlock returned nil for non-empty input")
	require.Len(t, b.Txns, BlockMaxTxns)
	require.Len(t, remainder, 3)
	require.True(t, ValidBlock(*b, 1), "freshly mined block failed validation")
}

func TestGenBlockEmptyInput(t *testing.T) {
	b, remainder := GenBlock(Genesis, nil, 1)
	if b != nil || remainder != nil {
		t.Fatal("GenBlock(nil) must return (nil, nil)")
	}
}

func TestValidHeaderRejectsTamperedNonce(t *testing.T) {
	addr, _ := signature.GenerateKey()
	pubAddr, _ := signature.PublicKeyAddress(addr)
	b, _ := GenBlock(Genesis, []ledger.Transaction{coinbaseTxn(t, pubAddr, 5)}, 1)

	if !ValidHeader(b.Header, 1) {
		t.Fatal("freshly mined header reported invalid")
	}
	b.Header.Nonce = append(b.Header.Nonce, '0')
	if ValidHeader(b.Header, 1) {
		t.Fatal("tampered nonce still validated")
	}
}

func TestValidBlockchainChainsCorrectly(t *testing.T) {
	addr, _ := signature.GenerateKey()
	pubAddr, _ := signature.PublicKeyAddress(addr)

	b0, _ := GenBlock(Genesis, []ledger.Transaction{coinbaseTxn(t, pubAddr, 100)}, Difficulty(0))
	// Timestamps have one-second resolution and must strictly increase.
	time.Sleep(time.Second)
	b1, _ := GenBlock(b0.Header.ThisHash, []ledger.Transaction{coinbaseTxn(t, pubAddr, 1)}, Difficulty(1))

	require.True(t, ValidBlockchain([]Block{*b0, *b1}), "freshly mined two-block chain reported invalid")
}

func TestValidBlockchainRejectsBadGenesis(t *testing.T) {
	addr, _ := signature.GenerateKey()
	pubAddr, _ := signature.PublicKeyAddress(addr)
	b0, _ := GenBlock(hashing.Sum([]byte("not genesis")), []ledger.Transaction{coinbaseTxn(t, pubAddr, 100)}, 1)

	if ValidBlockchain([]Block{*b0}) {
		t.Fatal("chain with a non-genesis first previous-hash validated")
	}
}

func TestValidBlockchainEmpty(t *testing.T) {
	if ValidBlockchain(nil) {
		t.Fatal("empty chain validated")
	}
}

func TestValidTokensProvenance(t *testing.T) {
	addr, _ := signature.GenerateKey()
	pubAddr, _ := signature.PublicKeyAddress(addr)
	txn := coinbaseTxn(t, pubAddr, 50)
	b0, _ := GenBlock(Genesis, []ledger.Transaction{txn}, 1)

	tok := ledger.Token{TxnHash: ledger.HashTxn(txn), Owner: pubAddr, Value: 50}
	if !ValidTokens([]ledger.Token{tok}, []Block{*b0}) {
		t.Fatal("token minted in the chain reported as having no provenance")
	}

	bogus := tok
	bogus.Value = 999
	if ValidTokens([]ledger.Token{bogus}, []Block{*b0}) {
		t.Fatal("token with no matching transaction reported as valid")
	}

	if ValidTokens([]ledger.Token{tok, tok}, []Block{*b0}) {
		t.Fatal("duplicate token list reported as valid")
	}
}
