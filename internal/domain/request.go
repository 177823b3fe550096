package domain

import (
	"math/big"
	"time"

	"github.com/google/uuid"
)

// RequestState tags the lifecycle of an exercise request.
type RequestState string

const (
	RequestPending   RequestState = "pending"
	RequestExecuted  RequestState = "executed"
	RequestAbandoned RequestState = "abandoned"
)

// ExerciseRequest is the optimistic reservation created by requestExercise.
// Balances are debited when the request is created, not when it executes, so
// two holders racing for the same obligation owner cannot both reserve more
// than is available.
type ExerciseRequest struct {
	ID               uuid.UUID    `json:"id"`
	Holder           Account      `json:"holder"`
	ObligationOwner  Account      `json:"obligation_owner"`
	AmountCollateral *big.Int     `json:"amount_collateral"` // obligation units debited
	AmountExternal   uint64       `json:"amount_external"`   // BTC base units requested
	Secret           uint64       `json:"secret"`            // per-request payment nonce
	CreatedAt        time.Time    `json:"created_at"`
	State            RequestState `json:"state"`
}

// ExpectedPayment is the exact external amount the holder must pay: the
// requested amount plus the secret nonce, which binds the on-chain payment to
// this request and defeats exact-amount replay.
func (r *ExerciseRequest) ExpectedPayment() uint64 {
	return r.AmountExternal + r.Secret
}
