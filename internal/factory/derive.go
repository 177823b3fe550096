package factory

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/btcsettle/btcsettle/internal/domain"
)

// Code tags distinguish the two identities instantiated from one salt.
const (
	CodeTagOption     = "btcsettle/option/v1"
	CodeTagObligation = "btcsettle/obligation/v1"
)

// SaltHash derives the pair salt from the full term tuple. Identical terms
// always hash identically, so any party can compute a pair's identities
// before the pair exists.
func SaltHash(terms domain.PairTerms) common.Hash {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[0:8], uint64(terms.Expiry.Unix()))
	binary.BigEndian.PutUint64(buf[8:16], uint64(terms.Window/1e9)) // seconds
	return crypto.Keccak256Hash(
		buf[:],
		[]byte(terms.StrikePrice.String()),
		terms.CollateralAsset[:],
		terms.Verifier[:],
	)
}

// DeriveAddress computes the identity instantiated by `factoryID` for the
// given salt and code tag:
//
//	keccak256(0xff ++ factory ++ salt ++ keccak256(codeTag))[12:]
//
// It is a pure function of its inputs; external tooling recomputes it
// without touching the ledger.
func DeriveAddress(factoryID domain.Account, salt common.Hash, codeTag string) domain.Account {
	codeHash := crypto.Keccak256([]byte(codeTag))
	h := crypto.Keccak256Hash([]byte{0xff}, factoryID[:], salt[:], codeHash)
	var out domain.Account
	copy(out[:], h[12:])
	return out
}
