package bearer

import (
	"math/rand"
	"time"
)

// RandomSource provides random values for transmit-delay jitter.
// Allows injection of a deterministic source for testing.
type RandomSource interface {
	Float64() float64
}

type defaultRandomSource struct{}

func (defaultRandomSource) Float64() float64 { return rand.Float64() }

// DefaultRandomSource is the default random source, backed by math/rand.
var DefaultRandomSource RandomSource = defaultRandomSource{}

// JitterCalculator picks a transmit delay uniformly within
// [MinTxDelay, MaxTxDelay), so two bearers don't retransmit in lock-step
// on a shared advertising channel.
type JitterCalculator struct {
	random RandomSource
}

// NewJitterCalculator returns a calculator using random, or
// DefaultRandomSource if random is nil.
func NewJitterCalculator(random RandomSource) *JitterCalculator {
	if random == nil {
		random = DefaultRandomSource
	}
	return &JitterCalculator{random: random}
}

// Delay returns a transmit delay in [MinTxDelay, MaxTxDelay).
func (j *JitterCalculator) Delay() time.Duration {
	span := MaxTxDelay - MinTxDelay
	return MinTxDelay + time.Duration(j.random.Float64()*float64(span))
}
