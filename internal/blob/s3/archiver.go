package s3blob

import (
	"bytes"
	"context"
	"fmt"

	"github.com/btcsettle/btcsettle/internal/domain"
)

// ProofArchive implements domain.ProofArchiver by uploading accepted
// exercise proofs to object storage, keyed by pair and request. Proofs are
// written once and never modified, so the archive doubles as an audit trail
// for every settled exercise.
type ProofArchive struct {
	writer domain.BlobWriter
}

// NewProofArchive creates a ProofArchive that uploads through writer.
func NewProofArchive(writer domain.BlobWriter) *ProofArchive {
	return &ProofArchive{writer: writer}
}

// ArchiveProof uploads one serialized proof to proofs/{pairID}/{requestID}.json.
func (a *ProofArchive) ArchiveProof(ctx context.Context, pairID, requestID string, proof []byte) error {
	path := proofPath(pairID, requestID)
	if err := a.writer.Put(ctx, path, bytes.NewReader(proof), "application/json"); err != nil {
		return fmt.Errorf("s3blob: archive proof %s: %w", path, err)
	}
	return nil
}

// proofPath builds the S3 key for an archived proof.
//
//	proofs/{pairID}/{requestID}.json
func proofPath(pairID, requestID string) string {
	return fmt.Sprintf("proofs/%s/%s.json", pairID, requestID)
}

// Compile-time interface check.
var _ domain.ProofArchiver = (*ProofArchive)(nil)
