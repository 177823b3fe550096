package btcproof

import "github.com/btcsettle/btcsettle/internal/domain"

// Verifier bundles a header relay with output extraction into the payment
// verifier interface pairs consume.
type Verifier struct {
	relay *HeaderRelay
}

// NewVerifier creates a Verifier backed by relay.
func NewVerifier(relay *HeaderRelay) *Verifier {
	return &Verifier{relay: relay}
}

// Relay exposes the underlying header relay.
func (v *Verifier) Relay() *HeaderRelay { return v.relay }

// VerifyInclusion checks the proof against the relay's stored headers.
func (v *Verifier) VerifyInclusion(proof domain.InclusionProof) error {
	return v.relay.VerifyInclusion(proof)
}

// ExtractOutput returns the amount rawTx pays to scriptHash under format.
func (v *Verifier) ExtractOutput(rawTx []byte, scriptHash [20]byte, format domain.AddressFormat) (uint64, []byte) {
	return ExtractOutput(rawTx, scriptHash, format)
}
