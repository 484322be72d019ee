// Package block implements block assembly, proof-of-work mining, and
// the validation predicates that decide whether a single block — or a
// whole chain of them — is acceptable.
package block

import (
	"math/bits"

	"github.com/Roasted12/toycoin-go/internal/hashing"
	"github.com/Roasted12/toycoin-go/internal/ledger"
	"github.com/Roasted12/toycoin-go/internal/merkle"
	"github.com/Roasted12/toycoin-go/internal/timeutil"
)

// BlockMaxTxns caps the number of transactions a single block may carry.
const BlockMaxTxns = 10

// MinBatchSize is the smallest pending-transaction batch the node will
// spend proof-of-work on; below it, mining waits for more work to arrive.
const MinBatchSize = 2

// Genesis is the previous-hash value the first block in any chain must
// declare: SHA-512("genesis").
var Genesis = hashing.Sum([]byte("genesis"))

// BlockHeader commits to a batch of transactions and to the block that
// preceded it. Timestamp and Nonce are ASCII-decimal byte strings, not
// binary integers — ThisHash is computed over their literal bytes.
type BlockHeader struct {
	Timestamp    []byte
	PreviousHash hashing.Digest
	Nonce        []byte
	MerkleRoot   []byte
	ThisHash     hashing.Digest
}

// Block is a header plus the ordered transactions it commits to.
type Block struct {
	Header BlockHeader
	Txns   []ledger.Transaction
}

// headerDigestInput is the exact byte sequence hashed to produce ThisHash.
func headerDigestInput(timestamp []byte, previousHash hashing.Digest, nonce, merkleRoot []byte) []byte {
	buf := make([]byte, 0, len(timestamp)+hashing.Size+len(nonce)+len(merkleRoot))
	buf = append(buf, timestamp...)
	buf = append(buf, previousHash.Bytes()...)
	buf = append(buf, nonce...)
	buf = append(buf, merkleRoot...)
	return buf
}

// Difficulty returns the number of leading zero bytes block index n's
// hash must have: 1 for an empty or single-block chain, otherwise
// 1 + floor(log2(n)).
func Difficulty(n int) int {
	if n < 1 {
		return 1
	}
	return bits.Len(uint(n))
}

// leadingZeroBytes reports whether h's first `difficulty` bytes are all zero.
func leadingZeroBytes(h hashing.Digest, difficulty int) bool {
	if difficulty > hashing.Size {
		difficulty = hashing.Size
	}
	for i := 0; i < difficulty; i++ {
		if h[i] != 0 {
			return false
		}
	}
	return true
}

// ProofOfWork runs the serial nonce-search: it samples the current
// timestamp once, then increments nonce until SHA-512(timestamp ‖
// previousHash ‖ nonce ‖ root) has `difficulty` leading zero bytes.
func ProofOfWork(previousHash hashing.Digest, root []byte, difficulty int) BlockHeader {
	now := timeutil.ASCIIDecimal(timeutil.NowSeconds())

	var nonce uint64
	var h hashing.Digest
	for {
		nonceBytes := timeutil.ASCIIDecimal(nonce)
		h = hashing.Sum(headerDigestInput(now, previousHash, nonceBytes, root))
		if leadingZeroBytes(h, difficulty) {
			return BlockHeader{
				Timestamp:    now,
				PreviousHash: previousHash,
				Nonce:        nonceBytes,
				MerkleRoot:   root,
				ThisHash:     h,
			}
		}
		nonce++
	}
}

// GenBlock assembles a block from the first BlockMaxTxns transactions in
// txns, mines it at difficulty, and returns the block along with the
// remaining unbatched transactions. An empty txns returns (nil, nil).
func GenBlock(previousHash hashing.Digest, txns []ledger.Transaction, difficulty int) (*Block, []ledger.Transaction) {
	if len(txns) == 0 {
		return nil, nil
	}

	n := len(txns)
	if n > BlockMaxTxns {
		n = BlockMaxTxns
	}
	batch := txns[:n]
	remainder := txns[n:]

	hashes := make([]hashing.Digest, len(batch))
	for i, txn := range batch {
		hashes[i] = ledger.HashTxn(txn)
	}
	tree := merkle.FromList(hashes)
	header := ProofOfWork(previousHash, tree.Label, difficulty)

	return &Block{Header: header, Txns: batch}, remainder
}

// ValidHeader recomputes ThisHash from the header's fields and checks
// it both matches the stored value and clears the difficulty bar.
func ValidHeader(header BlockHeader, difficulty int) bool {
	want := hashing.Sum(headerDigestInput(header.Timestamp, header.PreviousHash, header.Nonce, header.MerkleRoot))
	if want != header.ThisHash {
		return false
	}
	return leadingZeroBytes(header.ThisHash, difficulty)
}

// ValidBlock checks the header at difficulty, then confirms the Merkle
// root committed in the header matches the block's actual transactions.
func ValidBlock(b Block, difficulty int) bool {
	if !ValidHeader(b.Header, difficulty) {
		return false
	}
	hashes := make([]hashing.Digest, len(b.Txns))
	for i, txn := range b.Txns {
		hashes[i] = ledger.HashTxn(txn)
	}
	tree := merkle.FromList(hashes)
	if tree == nil {
		return len(b.Header.MerkleRoot) == 0
	}
	return string(tree.Label) == string(b.Header.MerkleRoot)
}

// ValidBlockchain checks a whole chain: non-empty, genesis-rooted,
// strictly increasing timestamps, correctly chained previous-hashes,
// and each block valid at its index's difficulty.
func ValidBlockchain(chain []Block) bool {
	if len(chain) == 0 {
		return false
	}
	if chain[0].Header.PreviousHash != Genesis {
		return false
	}
	if !ValidBlock(chain[0], Difficulty(0)) {
		return false
	}
	for i := 1; i < len(chain); i++ {
		prev, cur := chain[i-1], chain[i]
		if cur.Header.PreviousHash != prev.Header.ThisHash {
			return false
		}
		prevTs, err1 := timeutil.ParseASCIIDecimal(prev.Header.Timestamp)
		curTs, err2 := timeutil.ParseASCIIDecimal(cur.Header.Timestamp)
		if err1 != nil || err2 != nil || curTs <= prevTs {
			return false
		}
		if !ValidBlock(cur, Difficulty(i)) {
			return false
		}
	}
	return true
}

// ValidTokens is the anti-double-spend mint check: every token must be
// distinct from every other, and each must trace back to some block in
// chain whose transactions produced it. Blocks are scanned newest to
// oldest, since recently-minted tokens are the common case.
func ValidTokens(tokens []ledger.Token, chain []Block) bool {
	if !ledger.UniqueTokens(tokens) {
		return false
	}
	for _, tok := range tokens {
		if !tokenHasProvenance(tok, chain) {
			return false
		}
	}
	return true
}

func tokenHasProvenance(tok ledger.Token, chain []Block) bool {
	for i := len(chain) - 1; i >= 0; i-- {
		for _, txn := range chain[i].Txns {
			if ledger.ValidToken(txn, tok) {
				return true
			}
		}
	}
	return false
}
