// Package ledger implements the payment data model: Token, Transaction,
// and the signature-and-balance rules that decide whether a transaction
// and the tokens it claims to produce are valid.
package ledger

import (
	"crypto/rsa"
	"strconv"

	"github.com/Roasted12/toycoin-go/internal/hashing"
	"github.com/Roasted12/toycoin-go/internal/signature"
	"github.com/Roasted12/toycoin-go/internal/timeutil"
)

// genesisSender is the literal sender address of a coinbase transaction.
const genesisSender = "genesis"

// Token is an immutable unit of value: the hash of the transaction that
// produced it, the address that owns it, its value, and the signature
// binding it to that transaction.
type Token struct {
	TxnHash   hashing.Digest
	Owner     signature.Address
	Value     uint64
	Signature signature.Signature
}

// Equal reports whether two tokens carry identical fields.
func (t Token) Equal(other Token) bool {
	return t.TxnHash == other.TxnHash &&
		string(t.Owner) == string(other.Owner) &&
		t.Value == other.Value &&
		string(t.Signature) == string(other.Signature)
}

// Transaction is a payment: previous_hashes names the input tokens
// being consumed, and the transaction produces up to two new tokens —
// one to the receiver, one change token back to the sender.
type Transaction struct {
	PreviousHashes    []hashing.Digest
	Receiver          signature.Address
	ReceiverValue     uint64
	ReceiverSignature signature.Signature
	Sender            signature.Address
	SenderChange      uint64
	SenderSignature   signature.Signature
}

// TxnPair is the wire unit for a payment: the input tokens alongside
// the transaction that consumes them.
type TxnPair struct {
	Tokens []Token
	Txn    Transaction
}

// IsCoinbase reports whether txn is a genesis ("coinbase") transaction:
// no inputs, no signatures, sender is the literal address "genesis".
func (txn Transaction) IsCoinbase() bool {
	return len(txn.PreviousHashes) == 0 &&
		string(txn.Sender) == genesisSender &&
		len(txn.ReceiverSignature) == 0 &&
		len(txn.SenderSignature) == 0
}

// concatHashes concatenates a sequence of digests in order.
func concatHashes(hs []hashing.Digest) []byte {
	out := make([]byte, 0, len(hs)*hashing.Size)
	for _, h := range hs {
		out = append(out, h.Bytes()...)
	}
	return out
}

// HashTxn computes the canonical transaction hash: SHA-512 of
// concat(previous_hashes) ‖ receiver ‖ ascii_decimal(receiver_value) ‖
// receiver_signature ‖ sender ‖ ascii_decimal(sender_change) ‖
// sender_signature.
func HashTxn(txn Transaction) hashing.Digest {
	var buf []byte
	buf = append(buf, concatHashes(txn.PreviousHashes)...)
	buf = append(buf, txn.Receiver...)
	buf = append(buf, timeutil.ASCIIDecimal(txn.ReceiverValue)...)
	buf = append(buf, txn.ReceiverSignature...)
	buf = append(buf, txn.Sender...)
	buf = append(buf, timeutil.ASCIIDecimal(txn.SenderChange)...)
	buf = append(buf, txn.SenderSignature...)
	return hashing.Sum(buf)
}

// previousHashesBytes is the message signed for both the receiver and
// sender commitments: concat(previous_hashes) with no further framing.
func previousHashesBytes(hs []hashing.Digest) []byte {
	return concatHashes(hs)
}

// Send builds a payment transaction spending tokens (all assumed to be
// owned by senderPub — a lower layer's ValidTxn enforces that later) to
// pay sendValue to receiver. It returns ok=false without constructing a
// transaction if the tokens do not cover sendValue.
//
// The caller is responsible for passing only tokens it actually owns;
// Send performs no ownership check of its own.
func Send(receiverAddr, senderAddr signature.Address, senderPriv *rsa.PrivateKey, sendValue uint64, tokens []Token) (TxnPair, bool) {
	var total uint64
	for _, tok := range tokens {
		total += tok.Value
	}
	if total < sendValue {
		return TxnPair{}, false
	}

	previousHashes := make([]hashing.Digest, len(tokens))
	for i, tok := range tokens {
		previousHashes[i] = tok.TxnHash
	}

	msg := previousHashesBytes(previousHashes)
	receiverMsg := append(append([]byte(nil), msg...), receiverAddr...)
	senderMsg := append(append([]byte(nil), msg...), senderAddr...)

	receiverSig, err := signature.Sign(senderPriv, receiverMsg)
	if err != nil {
		return TxnPair{}, false
	}
	senderSig, err := signature.Sign(senderPriv, senderMsg)
	if err != nil {
		return TxnPair{}, false
	}

	txn := Transaction{
		PreviousHashes:    previousHashes,
		Receiver:          receiverAddr,
		ReceiverValue:     sendValue,
		ReceiverSignature: receiverSig,
		Sender:            senderAddr,
		SenderChange:      total - sendValue,
		SenderSignature:   senderSig,
	}
	return TxnPair{Tokens: tokens, Txn: txn}, true
}

// ValidToken reports whether token is one of the (at most two) tokens
// that txn legitimately produces: it must carry txn's hash, and either
// match the receiver leg or the sender-change leg exactly.
func ValidToken(txn Transaction, token Token) bool {
	if token.TxnHash != HashTxn(txn) {
		return false
	}
	receiverLeg := string(token.Owner) == string(txn.Receiver) &&
		token.Value == txn.ReceiverValue &&
		string(token.Signature) == string(txn.ReceiverSignature)
	if receiverLeg {
		return true
	}
	senderLeg := string(token.Owner) == string(txn.Sender) &&
		token.Value == txn.SenderChange &&
		string(token.Signature) == string(txn.SenderSignature)
	return senderLeg
}

// ValidTxn checks a non-coinbase transaction against the input tokens
// it claims to spend: the tokens must be non-empty, share a single
// owner O, and both output commitments (to receiver and to sender-as-
// change-recipient) must verify under O's key over concat(previous_hashes)
// plus the respective address.
func ValidTxn(tokens []Token, txn Transaction) bool {
	if len(tokens) == 0 {
		return false
	}
	owner := tokens[0].Owner
	for _, tok := range tokens[1:] {
		if string(tok.Owner) != string(owner) {
			return false
		}
	}

	msg := previousHashesBytes(txn.PreviousHashes)
	receiverMsg := append(append([]byte(nil), msg...), txn.Receiver...)
	senderMsg := append(append([]byte(nil), msg...), txn.Sender...)

	if !signature.VerifyAddress(txn.ReceiverSignature, owner, receiverMsg) {
		return false
	}
	return signature.VerifyAddress(txn.SenderSignature, owner, senderMsg)
}

// ValidCoinbaseTxn checks the narrow genesis-only variant: IsCoinbase
// must hold, and the transaction must produce exactly one receiver
// token with a positive value. Coinbase transactions mint value out of
// thin air and carry no signatures to verify.
func ValidCoinbaseTxn(txn Transaction) bool {
	return txn.IsCoinbase() && txn.ReceiverValue > 0 && txn.SenderChange == 0
}

// UniqueTokens reports whether every token in tokens is distinct by
// value — no two tokens share the same (txn hash, owner, value,
// signature) tuple.
func UniqueTokens(tokens []Token) bool {
	seen := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		key := string(tok.TxnHash.Bytes()) + "\x00" + string(tok.Owner) + "\x00" +
			strconv.FormatUint(tok.Value, 10) + "\x00" + string(tok.Signature)
		if _, ok := seen[key]; ok {
			return false
		}
		seen[key] = struct{}{}
	}
	return true
}
