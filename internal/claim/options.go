package claim

import (
	"time"

	"github.com/shopspring/decimal"
)

// Options configures the claim transaction and the payout fallback.
type Options struct {
	// Function is the claim entry function, <address>::<module>::<function>
	Function string
	// CoinType is passed as the only type argument when set
	CoinType string

	// Used when no payout config was stored yet
	DefaultTokenName      string
	DefaultPayoutPerToken decimal.Decimal

	// LockDuration is how long claimed tokens stay locked, DefaultLockDuration
	// when zero
	LockDuration time.Duration
}
