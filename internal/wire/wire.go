// Package wire implements the node's on-the-wire encodings: a
// base64-inside-JSON codec for Token, Transaction, TxnPair, Block and
// Blockchain, and the 4-byte length-prefixed framing every relay
// message is sent under.
package wire

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/Roasted12/toycoin-go/internal/block"
	"github.com/Roasted12/toycoin-go/internal/hashing"
	"github.com/Roasted12/toycoin-go/internal/ledger"
	"github.com/Roasted12/toycoin-go/internal/signature"
)

// tokenJSON is the wire shape of a Token: every byte field is standard
// base64, every integer is a plain JSON number.
type tokenJSON struct {
	TxnHash   string `json:"txn_hash"`
	Owner     string `json:"owner"`
	Value     uint64 `json:"value"`
	Signature string `json:"signature"`
}

// txnJSON is the wire shape of a Transaction.
type txnJSON struct {
	PreviousHashes    []string `json:"previous_hashes"`
	Receiver          string   `json:"receiver"`
	ReceiverValue     uint64   `json:"receiver_value"`
	ReceiverSignature string   `json:"receiver_signature"`
	Sender            string   `json:"sender"`
	SenderChange      uint64   `json:"sender_change"`
	SenderSignature   string   `json:"sender_signature"`
}


func b2s(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

func s2b(s string) ([]byte, error) { return base64.StdEncoding.DecodeString(s) }

func tokenToJSON(tok ledger.Token) tokenJSON {
	return tokenJSON{
		TxnHash:   b2s(tok.TxnHash.Bytes()),
		Owner:     b2s(tok.Owner),
		Value:     tok.Value,
		Signature: b2s(tok.Signature),
	}
}

func tokenFromJSON(j tokenJSON) (ledger.Token, error) {
	txnHashBytes, err := s2b(j.TxnHash)
	if err != nil {
		return ledger.Token{}, fmt.Errorf("wire: token txn_hash: %w", err)
	}
	txnHash, ok := hashing.FromBytes(txnHashBytes)
	if !ok {
		return ledger.Token{}, fmt.Errorf("wire: token txn_hash is not %d bytes", hashing.Size)
	}
	owner, err := s2b(j.Owner)
	if err != nil {
		return ledger.Token{}, fmt.Errorf("wire: token owner: %w", err)
	}
	sig, err := s2b(j.Signature)
	if err != nil {
		return ledger.Token{}, fmt.Errorf("wire: token signature: %w", err)
	}
	return ledger.Token{
		TxnHash:   txnHash,
		Owner:     signature.Address(owner),
		Value:     j.Value,
		Signature: signature.Signature(sig),
	}, nil
}

func txnToJSON(txn ledger.Transaction) txnJSON {
	hashes := make([]string, len(txn.PreviousHashes))
	for i, h := range txn.PreviousHashes {
		hashes[i] = b2s(h.Bytes())
	}
	return txnJSON{
		PreviousHashes:    hashes,
		Receiver:          b2s(txn.Receiver),
		ReceiverValue:     txn.ReceiverValue,
		ReceiverSignature: b2s(txn.ReceiverSignature),
		Sender:            b2s(txn.Sender),
		SenderChange:      txn.SenderChange,
		SenderSignature:   b2s(txn.SenderSignature),
	}
}

func txnFromJSON(j txnJSON) (ledger.Transaction, error) {
	hashes := make([]hashing.Digest, len(j.PreviousHashes))
	for i, s := range j.PreviousHashes {
		b, err := s2b(s)
		if err != nil {
			return ledger.Transaction{}, fmt.Errorf("wire: previous_hashes[%d]: %w", i, err)
		}
		h, ok := hashing.FromBytes(b)
		if !ok {
			return ledger.Transaction{}, fmt.Errorf("wire: previous_hashes[%d] is not %d bytes", i, hashing.Size)
		}
		hashes[i] = h
	}
	receiver, err := s2b(j.Receiver)
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("wire: receiver: %w", err)
	}
	receiverSig, err := s2b(j.ReceiverSignature)
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("wire: receiver_signature: %w", err)
	}
	sender, err := s2b(j.Sender)
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("wire: sender: %w", err)
	}
	senderSig, err := s2b(j.SenderSignature)
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("wire: sender_signature: %w", err)
	}
	return ledger.Transaction{
		PreviousHashes:    hashes,
		Receiver:          signature.Address(receiver),
		ReceiverValue:     j.ReceiverValue,
		ReceiverSignature: signature.Signature(receiverSig),
		Sender:            signature.Address(sender),
		SenderChange:      j.SenderChange,
		SenderSignature:   signature.Signature(senderSig),
	}, nil
}

// PackToken encodes a Token as wire JSON.
func PackToken(tok ledger.Token) ([]byte, error) {
	return json.Marshal(tokenToJSON(tok))
}

// UnpackToken decodes wire JSON into a Token.
func UnpackToken(data []byte) (ledger.Token, error) {
	var j tokenJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return ledger.Token{}, err
	}
	return tokenFromJSON(j)
}

// PackTxn encodes a Transaction as wire JSON.
func PackTxn(txn ledger.Transaction) ([]byte, error) {
	return json.Marshal(txnToJSON(txn))
}

// UnpackTxn decodes wire JSON into a Transaction.
func UnpackTxn(data []byte) (ledger.Transaction, error) {
	var j txnJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return ledger.Transaction{}, err
	}
	return txnFromJSON(j)
}

// PackTxnPair encodes a TxnPair as the wire's 2-element array
// [tokens_array, txn_object].
func PackTxnPair(pair ledger.TxnPair) ([]byte, error) {
	tokens := make([]tokenJSON, len(pair.Tokens))
	for i, tok := range pair.Tokens {
		tokens[i] = tokenToJSON(tok)
	}
	return json.Marshal([]interface{}{tokens, txnToJSON(pair.Txn)})
}

// UnpackTxnPair decodes the wire's 2-element array into a TxnPair.
func UnpackTxnPair(data []byte) (ledger.TxnPair, error) {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return ledger.TxnPair{}, fmt.Errorf("wire: txn pair array: %w", err)
	}

	var tokensJSON []tokenJSON
	if err := json.Unmarshal(raw[0], &tokensJSON); err != nil {
		return ledger.TxnPair{}, fmt.Errorf("wire: txn pair tokens: %w", err)
	}
	tokens := make([]ledger.Token, len(tokensJSON))
	for i, tj := range tokensJSON {
		tok, err := tokenFromJSON(tj)
		if err != nil {
			return ledger.TxnPair{}, err
		}
		tokens[i] = tok
	}

	var tj txnJSON
	if err := json.Unmarshal(raw[1], &tj); err != nil {
		return ledger.TxnPair{}, fmt.Errorf("wire: txn pair txn: %w", err)
	}
	txn, err := txnFromJSON(tj)
	if err != nil {
		return ledger.TxnPair{}, err
	}
	return ledger.TxnPair{Tokens: tokens, Txn: txn}, nil
}

// headerJSON is the wire shape of a BlockHeader. Timestamp and Nonce
// travel as base64 of their literal ASCII-decimal bytes, matching how
// they are hashed.
type headerJSON struct {
	Timestamp    string `json:"timestamp"`
	PreviousHash string `json:"previous_hash"`
	Nonce        string `json:"nonce"`
	MerkleRoot   string `json:"merkle_root"`
	ThisHash     string `json:"this_hash"`
}

type blockJSON struct {
	Header headerJSON `json:"header"`
	Txns   []txnJSON  `json:"txns"`
}

func headerToJSON(h block.BlockHeader) headerJSON {
	return headerJSON{
		Timestamp:    b2s(h.Timestamp),
		PreviousHash: b2s(h.PreviousHash.Bytes()),
		Nonce:        b2s(h.Nonce),
		MerkleRoot:   b2s(h.MerkleRoot),
		ThisHash:     b2s(h.ThisHash.Bytes()),
	}
}

func headerFromJSON(j headerJSON) (block.BlockHeader, error) {
	timestamp, err := s2b(j.Timestamp)
	if err != nil {
		return block.BlockHeader{}, fmt.Errorf("wire: timestamp: %w", err)
	}
	previousHashBytes, err := s2b(j.PreviousHash)
	if err != nil {
		return block.BlockHeader{}, fmt.Errorf("wire: previous_hash: %w", err)
	}
	previousHash, ok := hashing.FromBytes(previousHashBytes)
	if !ok {
		return block.BlockHeader{}, fmt.Errorf("wire: previous_hash is not %d bytes", hashing.Size)
	}
	nonce, err := s2b(j.Nonce)
	if err != nil {
		return block.BlockHeader{}, fmt.Errorf("wire: nonce: %w", err)
	}
	merkleRoot, err := s2b(j.MerkleRoot)
	if err != nil {
		return block.BlockHeader{}, fmt.Errorf("wire: merkle_root: %w", err)
	}
	thisHashBytes, err := s2b(j.ThisHash)
	if err != nil {
		return block.BlockHeader{}, fmt.Errorf("wire: this_hash: %w", err)
	}
	thisHash, ok := hashing.FromBytes(thisHashBytes)
	if !ok {
		return block.BlockHeader{}, fmt.Errorf("wire: this_hash is not %d bytes", hashing.Size)
	}
	return block.BlockHeader{
		Timestamp:    timestamp,
		PreviousHash: previousHash,
		Nonce:        nonce,
		MerkleRoot:   merkleRoot,
		ThisHash:     thisHash,
	}, nil
}

// PackBlock encodes a Block as wire JSON.
func PackBlock(b block.Block) ([]byte, error) {
	txns := make([]txnJSON, len(b.Txns))
	for i, txn := range b.Txns {
		txns[i] = txnToJSON(txn)
	}
	return json.Marshal(blockJSON{Header: headerToJSON(b.Header), Txns: txns})
}

// UnpackBlock decodes wire JSON into a Block.
func UnpackBlock(data []byte) (block.Block, error) {
	var j blockJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return block.Block{}, err
	}
	header, err := headerFromJSON(j.Header)
	if err != nil {
		return block.Block{}, err
	}
	txns := make([]ledger.Transaction, len(j.Txns))
	for i, tj := range j.Txns {
		txn, err := txnFromJSON(tj)
		if err != nil {
			return block.Block{}, err
		}
		txns[i] = txn
	}
	return block.Block{Header: header, Txns: txns}, nil
}

// PackBlockchain encodes a whole chain as a wire JSON array of blocks.
func PackBlockchain(chain []block.Block) ([]byte, error) {
	blocks := make([]blockJSON, len(chain))
	for i, b := range chain {
		txns := make([]txnJSON, len(b.Txns))
		for j, txn := range b.Txns {
			txns[j] = txnToJSON(txn)
		}
		blocks[i] = blockJSON{Header: headerToJSON(b.Header), Txns: txns}
	}
	return json.Marshal(blocks)
}

// UnpackBlockchain decodes a wire JSON array of blocks into a chain.
func UnpackBlockchain(data []byte) ([]block.Block, error) {
	var blocks []blockJSON
	if err := json.Unmarshal(data, &blocks); err != nil {
		return nil, err
	}
	chain := make([]block.Block, len(blocks))
	for i, bj := range blocks {
		header, err := headerFromJSON(bj.Header)
		if err != nil {
			return nil, err
		}
		txns := make([]ledger.Transaction, len(bj.Txns))
		for j, tj := range bj.Txns {
			txn, err := txnFromJSON(tj)
			if err != nil {
				return nil, err
			}
			txns[j] = txn
		}
		chain[i] = block.Block{Header: header, Txns: txns}
	}
	return chain, nil
}
