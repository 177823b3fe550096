package btcproof

import (
	"bytes"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/btcsettle/btcsettle/internal/domain"
)

// HeaderRelay stores Bitcoin block headers by height. An operator feeds it
// headers out of band; inclusion proofs are checked against the stored
// merkle roots. The relay trusts its operator and does not validate
// proof-of-work or chain linkage.
type HeaderRelay struct {
	mu      sync.RWMutex
	headers map[uint64]*wire.BlockHeader
}

// NewHeaderRelay creates an empty relay.
func NewHeaderRelay() *HeaderRelay {
	return &HeaderRelay{headers: make(map[uint64]*wire.BlockHeader)}
}

// SubmitHeader deserializes an 80-byte serialized block header and stores it
// at the given height, replacing any previous header there.
func (r *HeaderRelay) SubmitHeader(height uint64, raw []byte) error {
	var h wire.BlockHeader
	if err := h.Deserialize(bytes.NewReader(raw)); err != nil {
		return err
	}
	r.mu.Lock()
	r.headers[height] = &h
	r.mu.Unlock()
	return nil
}

// Header returns the stored header at height.
func (r *HeaderRelay) Header(height uint64) (*wire.BlockHeader, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.headers[height]
	return h, ok
}

// Heights returns the number of stored headers.
func (r *HeaderRelay) Heights() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.headers)
}

// VerifyInclusion checks an SPV proof against the stored headers. The raw
// transaction must hash to the proof's txid, and folding the txid up the
// merkle path at the proof's index must land on the merkle root of the
// header stored at the proof's height.
func (r *HeaderRelay) VerifyInclusion(proof domain.InclusionProof) error {
	header, ok := r.Header(proof.BlockHeight)
	if !ok {
		return domain.ErrTxNotIncluded
	}

	var tx wire.MsgTx
	if err := tx.Deserialize(bytes.NewReader(proof.RawTx)); err != nil {
		return domain.ErrInvalidOutHash
	}
	if tx.TxHash() != proof.TxID {
		return domain.ErrInvalidOutHash
	}

	node := proof.TxID
	idx := proof.TxIndex
	for _, sibling := range proof.MerklePath {
		if idx&1 == 1 {
			node = merkleParent(sibling, node)
		} else {
			node = merkleParent(node, sibling)
		}
		idx >>= 1
	}
	if node != header.MerkleRoot {
		return domain.ErrTxNotIncluded
	}
	return nil
}

// merkleParent hashes two sibling nodes into their parent.
func merkleParent(left, right chainhash.Hash) chainhash.Hash {
	var buf [chainhash.HashSize * 2]byte
	copy(buf[:chainhash.HashSize], left[:])
	copy(buf[chainhash.HashSize:], right[:])
	return chainhash.DoubleHashH(buf[:])
}
