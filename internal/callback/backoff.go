package callback

import (
	"errors"
	"math"
	"math/rand"
	"time"

	"golang.org/x/exp/constraints"
)

// Backoff returns how long to wait before retry attempt n, or false once no
// attempts are left.
type Backoff interface {
	Delay(n uint) (time.Duration, bool)
}

type noRetry struct{}

func NoRetry() Backoff {
	return noRetry{}
}

func (noRetry) Delay(n uint) (time.Duration, bool) {
	return 0, false
}

// Jitter picks a delay in [0, n).
type Jitter func(n int64) int64

// ExponentialBackoff waits a random time below Base*2^n, capped at Max,
// for at most MaxRetries attempts.
type ExponentialBackoff struct {
	Base       time.Duration
	Max        time.Duration
	MaxRetries uint
	Jitter     Jitter
}

func (b *ExponentialBackoff) Delay(n uint) (time.Duration, bool) {
	if n >= b.MaxRetries {
		return 0, false
	}

	ceiling := int64(b.Max)
	if n < 63 {
		if delay, err := checkedMul(int64(1)<<n, int64(b.Base)); err == nil {
			ceiling = smaller(delay, ceiling)
		}
	}
	if ceiling <= 0 {
		return 0, true
	}

	return time.Duration(b.jitter()(ceiling)), true
}

func (b *ExponentialBackoff) jitter() Jitter {
	if b.Jitter == nil {
		return rand.Int63n
	}
	return b.Jitter
}

func smaller[T constraints.Ordered](l T, r T) T {
	if l > r {
		return r
	}
	return l
}

var errOverflow = errors.New("overflow")

func checkedMul(l int64, r int64) (int64, error) {
	if l == 0 || r == 0 {
		return 0, nil
	}
	if l > math.MaxInt64/r {
		return 0, errOverflow
	}
	return l * r, nil
}
