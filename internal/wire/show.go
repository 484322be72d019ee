package wire

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/Roasted12/toycoin-go/internal/block"
	"github.com/Roasted12/toycoin-go/internal/ledger"
)

// abbreviate truncates a base64 string the way a human-facing log line
// wants: enough to eyeball, not enough to clutter a terminal.
func abbreviate(s string) string {
	const keep = 19
	if len(s) <= keep {
		return s
	}
	return s[:keep] + "..."
}

func abbrevB2S(b []byte) string {
	return abbreviate(base64.StdEncoding.EncodeToString(b))
}

// ShowTokens renders tokens as one abbreviated line each, for console
// or log output.
func ShowTokens(tokens []ledger.Token) string {
	lines := make([]string, len(tokens))
	for i, tok := range tokens {
		lines[i] = fmt.Sprintf("token{hash=%s owner=%s value=%d sig=%s}",
			abbrevB2S(tok.TxnHash.Bytes()), abbrevB2S(tok.Owner), tok.Value, abbrevB2S(tok.Signature))
	}
	return strings.Join(lines, "\n")
}

// ShowTxnPair renders a TxnPair's inputs and the transaction spending
// them, for console or log output.
func ShowTxnPair(pair ledger.TxnPair) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\nTokens\n%s\n\nTransaction\n", strings.Repeat("-", 80), ShowTokens(pair.Tokens))
	fmt.Fprintf(&b, "receiver=%s value=%d\nsender=%s change=%d",
		abbrevB2S(pair.Txn.Receiver), pair.Txn.ReceiverValue,
		abbrevB2S(pair.Txn.Sender), pair.Txn.SenderChange)
	return b.String()
}

// ShowTxnHashes renders, per transaction, its input hashes and its own
// canonical hash — useful for eyeballing a block's chain of custody.
func ShowTxnHashes(txns []ledger.Transaction) string {
	lines := make([]string, len(txns))
	for i, txn := range txns {
		prev := make([]string, len(txn.PreviousHashes))
		for j, h := range txn.PreviousHashes {
			prev[j] = abbrevB2S(h.Bytes())
		}
		lines[i] = fmt.Sprintf("%s -> %s", strings.Join(prev, ", "), abbrevB2S(ledger.HashTxn(txn).Bytes()))
	}
	return strings.Join(lines, "\n")
}

// ShowBlockchain renders a summary line plus each block's header and
// transaction hashes, for console or log output.
func ShowBlockchain(chain []block.Block) string {
	txnCount := 0
	for _, b := range chain {
		txnCount += len(b.Txns)
	}
	valid := block.ValidBlockchain(chain)

	var b strings.Builder
	fmt.Fprintf(&b, "%s\nBlockchain\nBlocks: %d | Total Txns: %d | Valid: %t\n",
		strings.Repeat("-", 80), len(chain), txnCount, valid)
	for i, blk := range chain {
		fmt.Fprintf(&b, "\nBlock %d Header: this=%s prev=%s nonce=%s merkle=%s",
			i, abbrevB2S(blk.Header.ThisHash.Bytes()), abbrevB2S(blk.Header.PreviousHash.Bytes()),
			string(blk.Header.Nonce), abbrevB2S(blk.Header.MerkleRoot))
		fmt.Fprintf(&b, "\nTxn Hashes:\n%s\n", ShowTxnHashes(blk.Txns))
	}
	return b.String()
}
