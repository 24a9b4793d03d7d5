// Package otp keeps one-time login codes keyed by phone number.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"time"
)

var (
	// ErrCodeInvalid is returned when no matching code is outstanding.
	ErrCodeInvalid = errors.New("verification code is invalid")
	// ErrCodeExpired is returned when the outstanding code is past its expiry.
	ErrCodeExpired = errors.New("verification code expired")
)

// Store issues and consumes verification codes. At most one code per phone is
// outstanding; issuing a new code replaces the previous one.
type Store interface {
	Issue(ctx context.Context, phone string) (code string, expiresAt time.Time, err error)
	Consume(ctx context.Context, phone, code string) error
}

// Options tunes code generation and verification.
type Options struct {
	TTL         time.Duration
	CodeLength  int
	MaxAttempts int
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = 10 * time.Minute
	}
	if o.CodeLength <= 0 {
		o.CodeLength = 6
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	return o
}

// GenerateNumericCode returns a uniformly random decimal code.
func GenerateNumericCode(length int) (string, error) {
	if length <= 0 {
		length = 6
	}
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}
