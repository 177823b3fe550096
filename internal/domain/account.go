package domain

import "github.com/ethereum/go-ethereum/common"

// Account identifies a ledger account. Accounts are 20-byte addresses so that
// deterministically derived pair identities and externally supplied accounts
// share one namespace.
type Account = common.Address

// AssetID identifies a fungible collateral asset on the ledger.
type AssetID = common.Address

// VerifierID names a registered payment verifier. It participates in the pair
// derivation salt so pairs bound to different verifiers never collide.
type VerifierID = common.Address
