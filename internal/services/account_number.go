package services

import (
	"context"
	"math/rand"
	"strconv"
	"time"
)

// Account numbers are 10-digit strings drawn uniformly from
// [1,000,000,000, 9,999,999,999].
const (
	accountNumFloor = 1_000_000_000
	accountNumSpan  = 9_000_000_000
)

// defaultMaxDrawAttempts bounds the draw-and-check loop. The number space is
// nine billion wide, so hitting this limit means the store is effectively
// full or broken, and we fail hard instead of spinning.
const defaultMaxDrawAttempts = 100

// ExistsFunc reports whether an account number is already taken.
type ExistsFunc func(ctx context.Context, accountNum string) (bool, error)

// AccountNumberGenerator draws candidate account numbers until it finds one
// not present in the store. The draw function is injectable so tests can
// force collisions deterministically.
type AccountNumberGenerator struct {
	draw        func() string
	maxAttempts int
}

func NewAccountNumberGenerator() *AccountNumberGenerator {
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	return newAccountNumberGenerator(func() string {
		return strconv.FormatInt(accountNumFloor+rnd.Int63n(accountNumSpan), 10)
	}, defaultMaxDrawAttempts)
}

func newAccountNumberGenerator(draw func() string, maxAttempts int) *AccountNumberGenerator {
	return &AccountNumberGenerator{draw: draw, maxAttempts: maxAttempts}
}

// Next returns an account number not currently present in the store.
// Uniqueness under concurrent callers is ultimately guaranteed by the unique
// constraint on accounts.account_num; this loop only keeps the expected
// number of constraint violations near zero.
func (g *AccountNumberGenerator) Next(ctx context.Context, exists ExistsFunc) (string, error) {
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		num := g.draw()
		taken, err := exists(ctx, num)
		if err != nil {
			return "", err
		}
		if !taken {
			return num, nil
		}
	}
	return "", ErrAccountSpaceExhausted
}
