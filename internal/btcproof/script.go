// Package btcproof verifies Bitcoin payments from raw transaction bytes: it
// matches outputs against the three supported address formats, extracts paid
// amounts and OP_RETURN payloads, and checks SPV merkle inclusion against
// submitted block headers.
package btcproof

import (
	"bytes"
	"crypto/sha256"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"golang.org/x/crypto/ripemd160"

	"github.com/btcsettle/btcsettle/internal/domain"
)

// dataLen is the size of the fixed data slot returned alongside an extracted
// amount. When the matched transaction carries no OP_RETURN output the slot
// is all zeroes.
const dataLen = 32

// OutputScript builds the exact output script a payment to scriptHash must
// carry under the given format. Anything else, including the same hash under
// a different format, must not match.
func OutputScript(scriptHash [20]byte, format domain.AddressFormat) ([]byte, error) {
	b := txscript.NewScriptBuilder()
	switch format {
	case domain.FormatP2SH:
		b.AddOp(txscript.OP_HASH160).AddData(scriptHash[:]).AddOp(txscript.OP_EQUAL)
	case domain.FormatP2PKH:
		b.AddOp(txscript.OP_DUP).AddOp(txscript.OP_HASH160).AddData(scriptHash[:]).
			AddOp(txscript.OP_EQUALVERIFY).AddOp(txscript.OP_CHECKSIG)
	case domain.FormatP2WPKH:
		b.AddOp(txscript.OP_0).AddData(scriptHash[:])
	default:
		return nil, domain.ErrInvalidRequest
	}
	return b.Script()
}

// ExtractOutput deserializes rawTx and scans its outputs for one paying
// scriptHash under format. On the first exact match it returns the output's
// value and, if a later output is an OP_RETURN data carrier, its payload
// padded into the fixed data slot. A transaction that fails to parse or pays
// nothing to the hash yields (0, zero-data); callers treat zero as "not
// paid". There is no failure path.
func ExtractOutput(rawTx []byte, scriptHash [20]byte, format domain.AddressFormat) (uint64, []byte) {
	zero := make([]byte, dataLen)

	var tx wire.MsgTx
	if err := tx.Deserialize(bytes.NewReader(rawTx)); err != nil {
		return 0, zero
	}
	want, err := OutputScript(scriptHash, format)
	if err != nil {
		return 0, zero
	}

	for i, out := range tx.TxOut {
		if !bytes.Equal(out.PkScript, want) {
			continue
		}
		data := zero
		for _, later := range tx.TxOut[i+1:] {
			if payload, ok := dataPayload(later.PkScript); ok {
				data = make([]byte, dataLen)
				copy(data, payload)
				break
			}
		}
		return uint64(out.Value), data
	}
	return 0, zero
}

// dataPayload returns the pushed bytes of an OP_RETURN output script.
func dataPayload(script []byte) ([]byte, bool) {
	if len(script) < 2 || script[0] != txscript.OP_RETURN {
		return nil, false
	}
	op := script[1]
	switch {
	case op >= txscript.OP_DATA_1 && op <= txscript.OP_DATA_75:
		n := int(op)
		if len(script) >= 2+n {
			return script[2 : 2+n], true
		}
	case op == txscript.OP_PUSHDATA1 && len(script) >= 3:
		n := int(script[2])
		if len(script) >= 3+n {
			return script[3 : 3+n], true
		}
	}
	return nil, false
}

// Hash160 computes RIPEMD160(SHA256(b)), the hash both P2PKH and P2WPKH
// scripts commit to.
func Hash160(b []byte) [20]byte {
	sha := sha256.Sum256(b)
	r := ripemd160.New()
	r.Write(sha[:])
	var out [20]byte
	copy(out[:], r.Sum(nil))
	return out
}
