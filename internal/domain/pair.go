package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PairTerms are the immutable economic terms a settlement pair is created
// under. The full tuple is the derivation salt: identical terms always
// produce the same pair identity.
type PairTerms struct {
	Expiry          time.Time       `json:"expiry"`
	Window          time.Duration   `json:"window"`
	StrikePrice     decimal.Decimal `json:"strike_price"` // collateral units per BTC
	CollateralAsset AssetID         `json:"collateral_asset"`
	Verifier        VerifierID      `json:"verifier"`
}

// PairDetails is the read-only view exposed to clients and the AMM.
type PairDetails struct {
	OptionID        Account         `json:"option_id"`
	ObligationID    Account         `json:"obligation_id"`
	Expiry          time.Time       `json:"expiry"`
	Window          time.Duration   `json:"window"`
	StrikePrice     decimal.Decimal `json:"strike_price"`
	Decimals        uint8           `json:"decimals"`
	CollateralAsset AssetID         `json:"collateral_asset"`
}

// Asset describes a supported collateral asset.
type Asset struct {
	Symbol   string  `json:"symbol"`
	ID       AssetID `json:"id"`
	Decimals uint8   `json:"decimals"`
}
