// Package strategy holds the bidder decision policies. Every policy is a pure
// function of its parameters, the lot, the displayed price, the bidder's
// balance and an injected random source.
package strategy

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/GoPolymarket/dutchauction/internal/model"
	"github.com/shopspring/decimal"
)

// Rand is the randomness a policy or a tie-break may consume.
// *math/rand.Rand satisfies it.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// Input is everything a policy may look at for one tick.
type Input struct {
	Lot       model.Lot
	Price     decimal.Decimal
	Balance   decimal.Decimal
	Preferred []string
}

type Policy interface {
	Name() model.StrategyName
	Decide(in Input, rng Rand) (bool, error)
}

// Evaluate applies the affordability gate shared by all strategies and then
// the policy itself. A bidder that cannot pay the displayed price never buys.
func Evaluate(p Policy, in Input, rng Rand) (bool, error) {
	if in.Balance.LessThan(in.Price) {
		return false, nil
	}
	return p.Decide(in, rng)
}

// unbounded stands in for a threshold that was never configured.
var unbounded = decimal.NewFromInt(1_000_000_000)

var (
	preferredBonus = decimal.NewFromFloat(0.95)
	neutralBonus   = decimal.NewFromInt(1)
)

// PreferenceBonus is 0.95 when the bidder likes any of the lot's categories.
func PreferenceBonus(preferred, categories []string) decimal.Decimal {
	if intersects(preferred, categories) {
		return preferredBonus
	}
	return neutralBonus
}

// PreferenceWeight ranks willing bidders for tie-breaks: a bidder that wants
// the lot is half again as eager as a neutral one.
func PreferenceWeight(preferred, categories []string) float64 {
	if intersects(preferred, categories) {
		return 1.5
	}
	return 1.0
}

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

func orDefault(v, def decimal.Decimal) decimal.Decimal {
	if v.IsZero() {
		return def
	}
	return v
}

func orDefaultFloat(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

func nonNegative(field string, v decimal.Decimal) error {
	if v.IsNegative() {
		return fmt.Errorf("%s must not be negative, got %s", field, v)
	}
	return nil
}

// lockedRand makes a math/rand source safe for the engine goroutine and the
// request handlers to share.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func NewLockedRand(seed int64) Rand {
	return &lockedRand{r: rand.New(rand.NewSource(seed))}
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}
