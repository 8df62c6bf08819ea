package token

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vultisig/tokensync/types"
)

// Inspection is the unverified view of a token's claims.
type Inspection struct {
	Issuer      string
	Audience    string
	Subject     string
	Team        string
	IssuedAt    time.Time
	ExpiresAt   time.Time
	Permissions []string
	GeneratedAt string
	Version     string
}

func inspect(claims *Claims) *Inspection {
	return &Inspection{
		Issuer:      claims.Issuer,
		Audience:    strings.Join(claims.Audience, ","),
		Subject:     claims.Subject,
		Team:        claims.Team,
		IssuedAt:    numericTime(claims.IssuedAt),
		ExpiresAt:   numericTime(claims.ExpiresAt),
		Permissions: claims.Permissions,
		GeneratedAt: claims.GeneratedAt,
		Version:     claims.Version,
	}
}

func numericTime(d *jwt.NumericDate) time.Time {
	if d == nil {
		return time.Time{}
	}
	return d.Time.UTC()
}

func (i *Inspection) HasExpiry() bool {
	return !i.ExpiresAt.IsZero()
}

// ValidAt reports whether exp is strictly after now. A token without exp is not
// reported as valid.
func (i *Inspection) ValidAt(now time.Time) bool {
	return i.HasExpiry() && types.ExpiresAfter(i.ExpiresAt, now)
}

func (i *Inspection) TimeLeft(now time.Time) time.Duration {
	if !i.ValidAt(now) {
		return 0
	}
	return i.ExpiresAt.Sub(now.UTC())
}

// Preview returns at most n runes of raw followed by an ellipsis, for logs.
func Preview(raw string, n int) string {
	runes := []rune(raw)
	if len(runes) <= n {
		return raw
	}
	return string(runes[:n]) + "..."
}
