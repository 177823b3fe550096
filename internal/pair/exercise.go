package pair

import (
	"crypto/rand"
	"math/big"

	"github.com/google/uuid"

	"github.com/btcsettle/btcsettle/internal/domain"
)

// secretMax bounds the per-request payment nonce. Small enough that the
// holder's payment differs from the requested amount by dust, large enough
// that a stray payment of the bare amount cannot be claimed.
const secretMax = 9999

// RequestExercise reserves an obligation owner's collateral for the holder.
// Valid only inside the exercise window (after expiry, before expiry+window).
// Both the owner's Obligation balance and the holder's Option balance are
// debited here, at request time: the first request ordered wins the
// reservation and a second over-requesting holder fails cleanly.
func (p *Pair) RequestExercise(holder, obligationOwner domain.Account, amountOut uint64) (domain.ExerciseRequest, error) {
	if !p.expired() {
		return domain.ExerciseRequest{}, domain.ErrNotExpired
	}
	if p.CanExit() {
		return domain.ExerciseRequest{}, domain.ErrExpired
	}
	if amountOut == 0 {
		return domain.ExerciseRequest{}, domain.ErrInvalidRequest
	}
	if p.pending != nil && p.pending.State == domain.RequestPending {
		return domain.ExerciseRequest{}, domain.ErrRequestPending
	}
	if _, ok := p.receiving[obligationOwner]; !ok {
		return domain.ExerciseRequest{}, domain.ErrNoBtcAddress
	}

	amountIn := CalculateAmountIn(amountOut, p.terms.StrikePrice, p.decimals)
	if p.obligation.BalanceOf(obligationOwner).Cmp(amountIn) < 0 {
		return domain.ExerciseRequest{}, domain.ErrInsufficientObligations
	}
	if p.option.BalanceOf(holder).Cmp(amountIn) < 0 {
		return domain.ExerciseRequest{}, domain.ErrTransferExceedsBalance
	}

	// Balance checks passed; the burns below cannot fail, so the debit is
	// atomic.
	if err := p.obligation.Burn(obligationOwner, amountIn); err != nil {
		return domain.ExerciseRequest{}, err
	}
	if err := p.option.Burn(holder, amountIn); err != nil {
		return domain.ExerciseRequest{}, err
	}

	req := &domain.ExerciseRequest{
		ID:               uuid.New(),
		Holder:           holder,
		ObligationOwner:  obligationOwner,
		AmountCollateral: amountIn,
		AmountExternal:   amountOut,
		Secret:           newSecret(),
		CreatedAt:        p.clock.Now(),
		State:            domain.RequestPending,
	}
	p.requests[req.ID] = req
	p.pending = req
	return *req, nil
}

// ExecuteExercise settles a pending request against an SPV proof of the
// holder's Bitcoin payment. The payment must go to the obligation owner's
// registered script hash and must equal the requested amount plus the
// request's secret exactly. On success the reserved collateral is released
// to the holder.
func (p *Pair) ExecuteExercise(caller domain.Account, requestID uuid.UUID, proof domain.InclusionProof) error {
	req, ok := p.requests[requestID]
	if !ok || req.State != domain.RequestPending {
		return domain.ErrInvalidRequestID
	}
	if caller != req.Holder {
		return domain.ErrCallerNotOwner
	}
	if err := p.verifier.VerifyInclusion(proof); err != nil {
		return err
	}

	addr := p.receiving[req.ObligationOwner]
	paid, _ := p.verifier.ExtractOutput(proof.RawTx, addr.Hash, addr.Format)
	if paid != req.ExpectedPayment() {
		return domain.ErrInvalidOutputAmount
	}

	if err := p.treasury.Release(p.obligationID, p.obligationID, req.ObligationOwner, req.Holder, req.AmountCollateral); err != nil {
		return err
	}
	req.State = domain.RequestExecuted
	p.pending = nil
	return nil
}

// ReclaimRequest resolves a request that was never executed, once the
// exercise window has closed. The debited Obligation is restored to its
// owner so the writer can refund; the holder's burned Option stays burned,
// since options past the window are worthless anyway. Without this
// operation an abandoned request would strand the owner's collateral in the
// locked state forever.
func (p *Pair) ReclaimRequest(caller domain.Account, requestID uuid.UUID) error {
	if !p.CanExit() {
		return domain.ErrMarketNotExpired
	}
	req, ok := p.requests[requestID]
	if !ok || req.State != domain.RequestPending {
		return domain.ErrInvalidRequestID
	}
	if caller != req.Holder && caller != req.ObligationOwner {
		return domain.ErrCallerNotOwner
	}
	if err := p.obligation.Mint(req.ObligationOwner, req.AmountCollateral); err != nil {
		return err
	}
	req.State = domain.RequestAbandoned
	p.pending = nil
	return nil
}

// Refund burns amount of the writer's Obligation after the exercise window
// closes and returns the matching collateral. Any Option the writer still
// holds is burned alongside, keeping the supplies aligned.
func (p *Pair) Refund(writer domain.Account, amount *big.Int) error {
	if !p.CanExit() {
		return domain.ErrMarketNotExpired
	}
	if amount == nil || amount.Sign() <= 0 {
		return domain.ErrInvalidRequest
	}
	if p.obligation.BalanceOf(writer).Cmp(amount) < 0 {
		return domain.ErrInsufficientObligations
	}
	if err := p.treasury.Release(p.obligationID, p.obligationID, writer, writer, amount); err != nil {
		return err
	}
	if err := p.obligation.Burn(writer, amount); err != nil {
		return err
	}
	// Options the writer sold off cannot be clawed back; burn what they
	// still hold, capped at the refunded amount.
	if held := p.option.BalanceOf(writer); held.Sign() > 0 {
		burn := new(big.Int).Set(amount)
		if held.Cmp(burn) < 0 {
			burn.Set(held)
		}
		if err := p.option.Burn(writer, burn); err != nil {
			return err
		}
	}
	return nil
}

// newSecret draws a payment nonce in [1, secretMax] from crypto/rand.
func newSecret() uint64 {
	n, err := rand.Int(rand.Reader, big.NewInt(secretMax))
	if err != nil {
		// crypto/rand only fails when the platform's entropy source is
		// broken; a fixed nonce is still protocol-correct, just weaker.
		return 1
	}
	return n.Uint64() + 1
}
