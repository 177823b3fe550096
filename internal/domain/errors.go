package domain

import "errors"

// Lifecycle / timing errors.
var (
	ErrInitExpired      = errors.New("pair expiry is not in the future")
	ErrExpired          = errors.New("exercise window has closed")
	ErrNotExpired       = errors.New("pair has not expired yet")
	ErrWindowZero       = errors.New("exercise window must be non-zero")
	ErrMarketNotExpired = errors.New("exercise window is still open")
)

// Position / collateral errors.
var (
	ErrPositionNotSet             = errors.New("no position set for account on this asset")
	ErrPositionInvalidExpiry      = errors.New("position window end is invalid")
	ErrPositionStrikeRangeInvalid = errors.New("position strike range is invalid")
	ErrInsufficientDeposit        = errors.New("insufficient deposited collateral")
	ErrInsufficientLocked         = errors.New("insufficient locked collateral")
	ErrInsufficientUnlocked       = errors.New("insufficient unlocked collateral")
	ErrNoBtcAddress               = errors.New("account has no registered btc address")
	ErrNoBtcHash                  = errors.New("writer has no registered btc hash")
)

// Exercise protocol errors.
var (
	ErrInvalidRequest          = errors.New("exercise request has no amount")
	ErrRequestPending          = errors.New("an exercise request is already pending")
	ErrInsufficientObligations = errors.New("obligation balance below requested amount")
	ErrTransferExceedsBalance  = errors.New("transfer exceeds balance")
	ErrInvalidOutputAmount     = errors.New("proven output amount does not match request")
	ErrTxNotIncluded           = errors.New("transaction inclusion proof is invalid")
	ErrInvalidOutHash          = errors.New("transaction hash does not match raw bytes")
	ErrInvalidRequestID        = errors.New("unknown or already resolved exercise request")
)

// Factory / setup errors.
var (
	ErrNotSupported    = errors.New("collateral asset is not supported")
	ErrNoTreasury      = errors.New("no treasury registered for collateral asset")
	ErrZeroStrikePrice = errors.New("strike price must be non-zero")
	ErrPairExists      = errors.New("pair already exists for these terms")
	ErrUnknownVerifier = errors.New("no payment verifier registered under this id")
	ErrPairNotFound    = errors.New("pair not found")
	ErrNotFound        = errors.New("not found")
)

// Authorization errors.
var (
	ErrCallerNotOwner = errors.New("caller does not own the request")
	ErrNotAuthorized  = errors.New("caller is not authorized")
)
