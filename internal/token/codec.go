// Package token mints and reads the HS256 credentials handed out to API engineers.
//
// There are two read paths and they return different types on purpose:
// Verify checks the signature and yields a *types.Credential that may be trusted,
// DecodeUnverified skips the signature and yields an *Inspection that is only fit
// for display.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vultisig/tokensync/types"
)

type Claims struct {
	jwt.RegisteredClaims
	Team        string   `json:"team,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	GeneratedAt string   `json:"generated_at,omitempty"`
	Version     string   `json:"version,omitempty"`
}

// ClaimSpec is everything that varies between two issued credentials.
type ClaimSpec struct {
	Issuer          string
	Audience        string
	ExpirationHours int
	IssuedAt        time.Time
}

// NewClaimSpec builds the spec for a credential issued at now under cfg.
func NewClaimSpec(cfg types.SigningConfig, now time.Time) ClaimSpec {
	hours := cfg.ExpirationHours
	if hours <= 0 {
		hours = types.DefaultExpirationHours
	}
	return ClaimSpec{
		Issuer:          cfg.Issuer,
		Audience:        cfg.Audience,
		ExpirationHours: hours,
		IssuedAt:        now,
	}
}

type Codec struct {
	parser *jwt.Parser
}

func NewCodec() *Codec {
	return &Codec{
		parser: jwt.NewParser(),
	}
}

// Encode signs a credential for spec. Output depends only on spec and secret.
func (c *Codec) Encode(spec ClaimSpec, secret []byte) (*types.Credential, error) {
	if len(secret) == 0 {
		return nil, types.ErrSecretMissing
	}
	if spec.ExpirationHours <= 0 {
		return nil, fmt.Errorf("expiration hours must be positive, got %d", spec.ExpirationHours)
	}

	issuedAt := spec.IssuedAt.UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(time.Duration(spec.ExpirationHours) * time.Hour)
	generatedAt := issuedAt.Format(time.RFC3339)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    spec.Issuer,
			Audience:  jwt.ClaimStrings{spec.Audience},
			Subject:   types.CredentialSubject,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Team:        types.CredentialTeam,
		Permissions: types.DefaultPermissions(),
		GeneratedAt: generatedAt,
		Version:     types.CredentialVersion,
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &types.Credential{
		Raw:         raw,
		Issuer:      spec.Issuer,
		Audience:    spec.Audience,
		Subject:     types.CredentialSubject,
		Team:        types.CredentialTeam,
		IssuedAt:    issuedAt,
		ExpiresAt:   expiresAt,
		Permissions: types.DefaultPermissions(),
		GeneratedAt: generatedAt,
		Version:     types.CredentialVersion,
	}, nil
}

// Verify checks signature, algorithm, issuer, audience and expiry at now.
func (c *Codec) Verify(raw string, cfg types.SigningConfig, now time.Time) (*types.Credential, error) {
	if !cfg.HasSecret() {
		return nil, types.ErrSecretMissing
	}
	claims := &Claims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithAudience(cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	token, err := parser.ParseWithClaims(strings.TrimSpace(raw), claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(cfg.Secret), nil
	})
	if err != nil || !token.Valid {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return nil, fmt.Errorf("%w: %v", types.ErrMalformedToken, err)
		}
		return nil, fmt.Errorf("invalid or expired token: %w", err)
	}
	inspection := inspect(claims)
	return &types.Credential{
		Raw:         token.Raw,
		Issuer:      inspection.Issuer,
		Audience:    inspection.Audience,
		Subject:     inspection.Subject,
		Team:        inspection.Team,
		IssuedAt:    inspection.IssuedAt,
		ExpiresAt:   inspection.ExpiresAt,
		Permissions: inspection.Permissions,
		GeneratedAt: inspection.GeneratedAt,
		Version:     inspection.Version,
	}, nil
}

// DecodeUnverified reads the claims without checking the signature. The result must
// never feed an authorization decision.
func (c *Codec) DecodeUnverified(raw string) (*Inspection, error) {
	claims := &Claims{}
	if _, _, err := c.parser.ParseUnverified(strings.TrimSpace(raw), claims); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrMalformedToken, err)
	}
	return inspect(claims), nil
}
