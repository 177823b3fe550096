package domain

import "github.com/btcsuite/btcd/chaincfg/chainhash"

// InclusionProof is an SPV-style proof that a raw Bitcoin transaction was
// included in a block: the block height, the transaction's index within the
// block, its txid, and the merkle path from the txid up to the block
// header's merkle root.
type InclusionProof struct {
	BlockHeight uint64           `json:"block_height"`
	TxIndex     uint32           `json:"tx_index"`
	TxID        chainhash.Hash   `json:"txid"`
	MerklePath  []chainhash.Hash `json:"merkle_path"`
	RawTx       []byte           `json:"raw_tx"`
}
