package btcproof

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btcsettle/btcsettle/internal/domain"
)

func testHash() [20]byte {
	var h [20]byte
	for i := range h {
		h[i] = byte(i + 1)
	}
	return h
}

// buildTx serializes a one-input transaction paying the given outputs.
func buildTx(t *testing.T, outs ...*wire.TxOut) []byte {
	t.Helper()
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Index: 0}, []byte{txscript.OP_0}, nil))
	for _, out := range outs {
		tx.AddTxOut(out)
	}
	var buf bytes.Buffer
	require.NoError(t, tx.Serialize(&buf))
	return buf.Bytes()
}

func payTo(t *testing.T, hash [20]byte, format domain.AddressFormat, value int64) *wire.TxOut {
	t.Helper()
	script, err := OutputScript(hash, format)
	require.NoError(t, err)
	return wire.NewTxOut(value, script)
}

func opReturn(t *testing.T, payload []byte) *wire.TxOut {
	t.Helper()
	script, err := txscript.NullDataScript(payload)
	require.NoError(t, err)
	return wire.NewTxOut(0, script)
}

func TestOutputScript_Templates(t *testing.T) {
	hash := testHash()

	tests := []struct {
		format domain.AddressFormat
		length int
		first  byte
	}{
		{domain.FormatP2SH, 23, txscript.OP_HASH160},
		{domain.FormatP2PKH, 25, txscript.OP_DUP},
		{domain.FormatP2WPKH, 22, txscript.OP_0},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			script, err := OutputScript(hash, tt.format)
			require.NoError(t, err)
			assert.Len(t, script, tt.length)
			assert.Equal(t, tt.first, script[0])
			assert.True(t, bytes.Contains(script, hash[:]))
		})
	}

	t.Run("unknown format", func(t *testing.T) {
		_, err := OutputScript(hash, domain.AddressFormat("p2tr"))
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	})
}

func TestExtractOutput(t *testing.T) {
	hash := testHash()

	t.Run("p2sh payment", func(t *testing.T) {
		raw := buildTx(t, payTo(t, hash, domain.FormatP2SH, 38_900_688))

		paid, data := ExtractOutput(raw, hash, domain.FormatP2SH)

		assert.Equal(t, uint64(38_900_688), paid)
		assert.Equal(t, make([]byte, 32), data)
	})

	t.Run("p2wpkh payment among other outputs", func(t *testing.T) {
		other := [20]byte{0xee}
		raw := buildTx(t,
			payTo(t, other, domain.FormatP2WPKH, 1_000_000),
			payTo(t, hash, domain.FormatP2WPKH, 200_000),
		)

		paid, _ := ExtractOutput(raw, hash, domain.FormatP2WPKH)

		assert.Equal(t, uint64(200_000), paid)
	})

	t.Run("op_return payload after the match", func(t *testing.T) {
		payload := []byte("request-7f3a")
		raw := buildTx(t,
			payTo(t, hash, domain.FormatP2PKH, 55_000),
			opReturn(t, payload),
		)

		paid, data := ExtractOutput(raw, hash, domain.FormatP2PKH)

		require.Equal(t, uint64(55_000), paid)
		assert.Equal(t, payload, data[:len(payload)])
		assert.Equal(t, make([]byte, 32-len(payload)), data[len(payload):])
	})

	t.Run("op_return before the match is ignored", func(t *testing.T) {
		raw := buildTx(t,
			opReturn(t, []byte("unrelated")),
			payTo(t, hash, domain.FormatP2PKH, 55_000),
		)

		paid, data := ExtractOutput(raw, hash, domain.FormatP2PKH)

		require.Equal(t, uint64(55_000), paid)
		assert.Equal(t, make([]byte, 32), data)
	})

	t.Run("same hash wrong format pays nothing", func(t *testing.T) {
		raw := buildTx(t, payTo(t, hash, domain.FormatP2SH, 38_900_688))

		paid, _ := ExtractOutput(raw, hash, domain.FormatP2PKH)

		assert.Equal(t, uint64(0), paid)
	})

	t.Run("wrong hash pays nothing", func(t *testing.T) {
		raw := buildTx(t, payTo(t, hash, domain.FormatP2WPKH, 200_000))

		paid, _ := ExtractOutput(raw, [20]byte{0x99}, domain.FormatP2WPKH)

		assert.Equal(t, uint64(0), paid)
	})

	t.Run("garbage bytes pay nothing", func(t *testing.T) {
		paid, data := ExtractOutput([]byte{0xde, 0xad, 0xbe, 0xef}, hash, domain.FormatP2SH)

		assert.Equal(t, uint64(0), paid)
		assert.Equal(t, make([]byte, 32), data)
	})
}

func TestHash160_MatchesBtcutil(t *testing.T) {
	pubkey := bytes.Repeat([]byte{0x02, 0x71}, 16)

	got := Hash160(pubkey)

	assert.Equal(t, btcutil.Hash160(pubkey), got[:])
}
