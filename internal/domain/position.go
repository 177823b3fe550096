package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is a writer's standing declaration on one collateral asset: the
// strike range they are willing to underwrite, how long their collateral may
// stay committed, and the Bitcoin address exercising holders must pay.
// One active position per (account, asset); deposits require it.
type Position struct {
	MinStrike decimal.Decimal `json:"min_strike"`
	MaxStrike decimal.Decimal `json:"max_strike"`
	WindowEnd time.Time       `json:"window_end"`
	Receiving BtcAddress      `json:"receiving"`
}
