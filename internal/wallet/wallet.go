// Package wallet implements a client's view of its own holdings: a
// FIFO token queue, a pending-send ledger for tokens committed to an
// unconfirmed transaction, and the send/receive lifecycle that moves
// tokens between the two.
package wallet

import (
	"crypto/rsa"

	"github.com/Roasted12/toycoin-go/internal/hashing"
	"github.com/Roasted12/toycoin-go/internal/ledger"
	"github.com/Roasted12/toycoin-go/internal/signature"
)

// pendingSend tracks tokens removed from the wallet to fund a
// transaction that has not yet been confirmed or rejected.
type pendingSend struct {
	txnHash hashing.Digest
	tokens  []ledger.Token
}

// Wallet holds one address's tokens and tracks its in-flight sends.
// It is not safe for concurrent use; callers serialize access (the
// oracle's loop owns each wallet it drives).
type Wallet struct {
	PublicKey  signature.Address
	PrivateKey *rsa.PrivateKey

	tokens  []ledger.Token
	pending []pendingSend
}

// New creates an empty wallet for the given keypair.
func New(pub signature.Address, priv *rsa.PrivateKey) *Wallet {
	return &Wallet{PublicKey: pub, PrivateKey: priv}
}

// Balance is the sum of confirmed, unspent token values. Tokens
// committed to a pending send are excluded.
func (w *Wallet) Balance() uint64 {
	var total uint64
	for _, tok := range w.tokens {
		total += tok.Value
	}
	return total
}

// Send attempts to build a transaction paying sendValue to receiver,
// selecting input tokens FIFO from the front of the wallet. On success
// the selected tokens move to the pending set (removed from Balance
// until ConfirmSend or RejectSend resolves them) and ok is true.
func (w *Wallet) Send(receiver signature.Address, sendValue uint64) (ledger.TxnPair, bool) {
	if sendValue > w.Balance() {
		return ledger.TxnPair{}, false
	}

	var sum uint64
	i := 0
	for sum < sendValue {
		sum += w.tokens[i].Value
		i++
	}
	spend := w.tokens[:i]

	pair, ok := ledger.Send(receiver, w.PublicKey, w.PrivateKey, sendValue, spend)
	if !ok {
		return ledger.TxnPair{}, false
	}

	w.pending = append(w.pending, pendingSend{txnHash: ledger.HashTxn(pair.Txn), tokens: spend})
	w.tokens = w.tokens[i:]

	return pair, true
}

// ConfirmSend drops the pending entry for txnHash: the transaction
// cleared, so its input tokens are permanently spent.
func (w *Wallet) ConfirmSend(txnHash hashing.Digest) {
	kept := w.pending[:0]
	for _, p := range w.pending {
		if p.txnHash != txnHash {
			kept = append(kept, p)
		}
	}
	w.pending = kept
}

// RejectSend returns the pending entry for txnHash's tokens to the
// front of the wallet: the transaction was rejected, so its inputs are
// still spendable.
func (w *Wallet) RejectSend(txnHash hashing.Digest) {
	kept := w.pending[:0]
	for _, p := range w.pending {
		if p.txnHash == txnHash {
			w.tokens = append(append([]ledger.Token(nil), p.tokens...), w.tokens...)
		} else {
			kept = append(kept, p)
		}
	}
	w.pending = kept
}

// Receive inspects txn and, if this wallet's address is the receiver
// or the sender (of a change token), appends the corresponding new
// token to the wallet. Any other transaction is ignored.
func (w *Wallet) Receive(txn ledger.Transaction) {
	txnHash := ledger.HashTxn(txn)

	switch {
	case string(w.PublicKey) == string(txn.Receiver):
		w.tokens = append(w.tokens, ledger.Token{
			TxnHash:   txnHash,
			Owner:     w.PublicKey,
			Value:     txn.ReceiverValue,
			Signature: txn.ReceiverSignature,
		})
	case string(w.PublicKey) == string(txn.Sender):
		w.tokens = append(w.tokens, ledger.Token{
			TxnHash:   txnHash,
			Owner:     w.PublicKey,
			Value:     txn.SenderChange,
			Signature: txn.SenderSignature,
		})
	}
}
