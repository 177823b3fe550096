package btcproof

import (
	"bytes"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btcsettle/btcsettle/internal/domain"
)

// serializeHeader builds an 80-byte header committing to the given merkle
// root.
func serializeHeader(t *testing.T, root chainhash.Hash) []byte {
	t.Helper()
	header := wire.BlockHeader{
		Version:    2,
		MerkleRoot: root,
		Timestamp:  time.Unix(1_700_000_000, 0),
		Bits:       0x1d00ffff,
		Nonce:      42,
	}
	var buf bytes.Buffer
	require.NoError(t, header.Serialize(&buf))
	return buf.Bytes()
}

// parseTx deserializes raw transaction bytes and returns the message and its
// txid.
func parseTx(t *testing.T, raw []byte) (*wire.MsgTx, chainhash.Hash) {
	t.Helper()
	var tx wire.MsgTx
	require.NoError(t, tx.Deserialize(bytes.NewReader(raw)))
	return &tx, tx.TxHash()
}

func TestSubmitHeader(t *testing.T) {
	relay := NewHeaderRelay()

	t.Run("rejects malformed bytes", func(t *testing.T) {
		err := relay.SubmitHeader(100, []byte{0x01, 0x02})
		assert.Error(t, err)
		assert.Equal(t, 0, relay.Heights())
	})

	t.Run("stores and replaces", func(t *testing.T) {
		require.NoError(t, relay.SubmitHeader(100, serializeHeader(t, chainhash.Hash{0x01})))
		require.NoError(t, relay.SubmitHeader(100, serializeHeader(t, chainhash.Hash{0x02})))

		header, ok := relay.Header(100)
		require.True(t, ok)
		assert.Equal(t, chainhash.Hash{0x02}, header.MerkleRoot)
		assert.Equal(t, 1, relay.Heights())
	})
}

func TestVerifyInclusion_SingleTxBlock(t *testing.T) {
	relay := NewHeaderRelay()
	raw := buildTx(t, payTo(t, testHash(), domain.FormatP2WPKH, 200_000))
	_, txid := parseTx(t, raw)

	// A block with one transaction has the txid as its merkle root.
	require.NoError(t, relay.SubmitHeader(800_000, serializeHeader(t, txid)))

	err := relay.VerifyInclusion(domain.InclusionProof{
		BlockHeight: 800_000,
		TxIndex:     0,
		TxID:        txid,
		RawTx:       raw,
	})

	assert.NoError(t, err)
}

func TestVerifyInclusion_TwoTxBlock(t *testing.T) {
	relay := NewHeaderRelay()
	rawA := buildTx(t, payTo(t, testHash(), domain.FormatP2SH, 38_900_688))
	rawB := buildTx(t, payTo(t, [20]byte{0x33}, domain.FormatP2PKH, 75_000))
	_, txidA := parseTx(t, rawA)
	_, txidB := parseTx(t, rawB)

	var buf [chainhash.HashSize * 2]byte
	copy(buf[:chainhash.HashSize], txidA[:])
	copy(buf[chainhash.HashSize:], txidB[:])
	root := chainhash.DoubleHashH(buf[:])
	require.NoError(t, relay.SubmitHeader(800_001, serializeHeader(t, root)))

	t.Run("left leaf", func(t *testing.T) {
		err := relay.VerifyInclusion(domain.InclusionProof{
			BlockHeight: 800_001,
			TxIndex:     0,
			TxID:        txidA,
			MerklePath:  []chainhash.Hash{txidB},
			RawTx:       rawA,
		})
		assert.NoError(t, err)
	})

	t.Run("right leaf", func(t *testing.T) {
		err := relay.VerifyInclusion(domain.InclusionProof{
			BlockHeight: 800_001,
			TxIndex:     1,
			TxID:        txidB,
			MerklePath:  []chainhash.Hash{txidA},
			RawTx:       rawB,
		})
		assert.NoError(t, err)
	})

	t.Run("wrong index folds to the wrong root", func(t *testing.T) {
		err := relay.VerifyInclusion(domain.InclusionProof{
			BlockHeight: 800_001,
			TxIndex:     1,
			TxID:        txidA,
			MerklePath:  []chainhash.Hash{txidB},
			RawTx:       rawA,
		})
		assert.ErrorIs(t, err, domain.ErrTxNotIncluded)
	})
}

func TestVerifyInclusion_Failures(t *testing.T) {
	relay := NewHeaderRelay()
	raw := buildTx(t, payTo(t, testHash(), domain.FormatP2WPKH, 200_000))
	_, txid := parseTx(t, raw)
	require.NoError(t, relay.SubmitHeader(800_000, serializeHeader(t, txid)))

	t.Run("no header at height", func(t *testing.T) {
		err := relay.VerifyInclusion(domain.InclusionProof{
			BlockHeight: 900_000,
			TxID:        txid,
			RawTx:       raw,
		})
		assert.ErrorIs(t, err, domain.ErrTxNotIncluded)
	})

	t.Run("raw tx does not parse", func(t *testing.T) {
		err := relay.VerifyInclusion(domain.InclusionProof{
			BlockHeight: 800_000,
			TxID:        txid,
			RawTx:       []byte{0xff},
		})
		assert.ErrorIs(t, err, domain.ErrInvalidOutHash)
	})

	t.Run("txid does not match raw tx", func(t *testing.T) {
		err := relay.VerifyInclusion(domain.InclusionProof{
			BlockHeight: 800_000,
			TxID:        chainhash.Hash{0x01},
			RawTx:       raw,
		})
		assert.ErrorIs(t, err, domain.ErrInvalidOutHash)
	})

	t.Run("root mismatch", func(t *testing.T) {
		err := relay.VerifyInclusion(domain.InclusionProof{
			BlockHeight: 800_000,
			TxID:        txid,
			MerklePath:  []chainhash.Hash{{0x05}},
			RawTx:       raw,
		})
		assert.ErrorIs(t, err, domain.ErrTxNotIncluded)
	})
}
