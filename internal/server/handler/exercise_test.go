package handler

import (
	"bytes"
	"context"
	"encoding/hex"
	"math/big"
	"net/http"
	"testing"

	"github.com/btcsuite/btcd/wire"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btcsettle/btcsettle/internal/domain"
)

type stubExerciseService struct {
	request    domain.ExerciseRequest
	requestErr error
	executeErr error
	gotProof   domain.InclusionProof
}

func (s *stubExerciseService) RequestExercise(_ context.Context, _ string, holder, owner domain.Account, amountOut uint64) (domain.ExerciseRequest, error) {
	return s.request, s.requestErr
}

func (s *stubExerciseService) ExecuteExercise(_ context.Context, _ string, _ domain.Account, _ uuid.UUID, proof domain.InclusionProof) error {
	s.gotProof = proof
	return s.executeErr
}

func (s *stubExerciseService) ReclaimRequest(context.Context, string, domain.Account, uuid.UUID) error {
	return nil
}

func (s *stubExerciseService) Refund(context.Context, string, domain.Account, *big.Int) error {
	return nil
}

func (s *stubExerciseService) Request(context.Context, string, uuid.UUID) (domain.ExerciseRequest, error) {
	return s.request, nil
}

func TestProofBody_ToProof(t *testing.T) {
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{}, nil, nil))
	tx.AddTxOut(wire.NewTxOut(1000, []byte{0x51}))
	var raw bytes.Buffer
	require.NoError(t, tx.Serialize(&raw))
	txid := tx.TxHash()

	body := proofBody{
		BlockHeight: 800_000,
		TxIndex:     3,
		TxID:        txid.String(),
		MerklePath:  []string{txid.String(), txid.String()},
		RawTx:       hex.EncodeToString(raw.Bytes()),
	}

	proof, err := body.toProof()
	require.NoError(t, err)

	assert.Equal(t, uint64(800_000), proof.BlockHeight)
	assert.Equal(t, uint32(3), proof.TxIndex)
	assert.Equal(t, txid, proof.TxID)
	require.Len(t, proof.MerklePath, 2)
	assert.Equal(t, txid, proof.MerklePath[0])
	assert.Equal(t, raw.Bytes(), proof.RawTx)
}

func TestProofBody_ToProofErrors(t *testing.T) {
	valid := proofBody{
		TxID:  "0000000000000000000000000000000000000000000000000000000000000001",
		RawTx: "00",
	}

	t.Run("bad txid", func(t *testing.T) {
		b := valid
		b.TxID = "zz"
		_, err := b.toProof()
		assert.Error(t, err)
	})

	t.Run("bad merkle node", func(t *testing.T) {
		b := valid
		b.MerklePath = []string{"nothex"}
		_, err := b.toProof()
		assert.Error(t, err)
	})

	t.Run("bad raw tx hex", func(t *testing.T) {
		b := valid
		b.RawTx = "0"
		_, err := b.toProof()
		assert.Error(t, err)
	})
}

func TestRequestExerciseHandler(t *testing.T) {
	stub := &stubExerciseService{
		request: domain.ExerciseRequest{
			ID:               uuid.New(),
			AmountCollateral: big.NewInt(4_500_000_000),
			AmountExternal:   5_000_000_000,
			Secret:           777,
			State:            domain.RequestPending,
		},
	}
	h := NewExerciseHandler(stub, testLogger())
	target := "/api/pairs/0x0000000000000000000000000000000000000002/exercise/request"

	t.Run("returns the request with its nonce", func(t *testing.T) {
		body := `{"holder":"0x0000000000000000000000000000000000000020",
			"owner":"0x0000000000000000000000000000000000000010","amount_out":5000000000}`
		rec := serve(h.RequestExercise, "POST /api/pairs/{id}/exercise/request", http.MethodPost, target, body)

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Contains(t, rec.Body.String(), `"secret":777`)
		assert.Contains(t, rec.Body.String(), stub.request.ID.String())
	})

	t.Run("bad holder", func(t *testing.T) {
		body := `{"holder":"nope","owner":"0x0000000000000000000000000000000000000010","amount_out":1}`
		rec := serve(h.RequestExercise, "POST /api/pairs/{id}/exercise/request", http.MethodPost, target, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("window closed", func(t *testing.T) {
		stub.requestErr = domain.ErrExpired
		defer func() { stub.requestErr = nil }()
		body := `{"holder":"0x0000000000000000000000000000000000000020",
			"owner":"0x0000000000000000000000000000000000000010","amount_out":1}`
		rec := serve(h.RequestExercise, "POST /api/pairs/{id}/exercise/request", http.MethodPost, target, body)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

func TestExecuteExerciseHandler(t *testing.T) {
	stub := &stubExerciseService{}
	h := NewExerciseHandler(stub, testLogger())
	target := "/api/pairs/0x0000000000000000000000000000000000000002/exercise/execute"

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{}, nil, nil))
	tx.AddTxOut(wire.NewTxOut(1000, []byte{0x51}))
	var raw bytes.Buffer
	require.NoError(t, tx.Serialize(&raw))
	txid := tx.TxHash()

	body := `{"caller":"0x0000000000000000000000000000000000000020",
		"request_id":"` + uuid.NewString() + `",
		"proof":{"block_height":800000,"tx_index":0,"txid":"` + txid.String() + `",
		"merkle_path":[],"raw_tx":"` + hex.EncodeToString(raw.Bytes()) + `"}}`

	rec := serve(h.ExecuteExercise, "POST /api/pairs/{id}/exercise/execute", http.MethodPost, target, body)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, txid, stub.gotProof.TxID)
	assert.Equal(t, raw.Bytes(), stub.gotProof.RawTx)
}
