package service

import (
	"crypto/rand"
	"io"
	"math/big"
	"strconv"
	"time"

	"org-portal/internal/domain"
)

const (
	// DefaultCodeTTL is how long an issued verification code stays usable.
	DefaultCodeTTL = 5 * time.Minute

	codeMin = 100000
	codeMax = 999999
)

var codeSpan = big.NewInt(codeMax - codeMin + 1)

// CodeGenerator produces six-digit verification codes with an expiry.
type CodeGenerator struct {
	ttl    time.Duration
	now    func() time.Time
	random io.Reader
}

func NewCodeGenerator(ttl time.Duration) *CodeGenerator {
	if ttl <= 0 {
		ttl = DefaultCodeTTL
	}
	return &CodeGenerator{
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
		random: rand.Reader,
	}
}

// Generate draws a code uniformly from [100000, 999999], so it is always six digits.
func (g *CodeGenerator) Generate() (domain.PendingCode, error) {
	n, err := rand.Int(g.random, codeSpan)
	if err != nil {
		return domain.PendingCode{}, err
	}
	return domain.PendingCode{
		Code:      strconv.FormatInt(n.Int64()+codeMin, 10),
		ExpiresAt: g.now().Add(g.ttl),
	}, nil
}
