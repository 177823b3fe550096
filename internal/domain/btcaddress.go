package domain

import (
	"encoding/hex"
	"fmt"
)

// AddressFormat selects which Bitcoin output script template a 20-byte hash
// is wrapped in.
type AddressFormat string

const (
	FormatP2SH   AddressFormat = "p2sh"
	FormatP2PKH  AddressFormat = "p2pkh"
	FormatP2WPKH AddressFormat = "p2wpkh"
)

// Valid reports whether f is one of the three supported formats.
func (f AddressFormat) Valid() bool {
	switch f {
	case FormatP2SH, FormatP2PKH, FormatP2WPKH:
		return true
	}
	return false
}

// BtcAddress is the external-chain payment target registered by a writer: a
// 20-byte script/pubkey hash plus the format it must be matched under.
type BtcAddress struct {
	Hash   [20]byte      `json:"hash"`
	Format AddressFormat `json:"format"`
}

// IsZero reports whether no address has been registered.
func (a BtcAddress) IsZero() bool {
	return a.Hash == [20]byte{}
}

// String renders the hash as hex with its format, for logs and API responses.
func (a BtcAddress) String() string {
	return fmt.Sprintf("%s:%s", a.Format, hex.EncodeToString(a.Hash[:]))
}

// ParseHash160 decodes a 40-character hex string into a 20-byte hash.
func ParseHash160(s string) ([20]byte, error) {
	var out [20]byte
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("parse hash160: %w", err)
	}
	if len(b) != 20 {
		return out, fmt.Errorf("parse hash160: want 20 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}
