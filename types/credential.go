package types

import "time"

const (
	CredentialVersion = "1.0"
	CredentialSubject = "api-development-access"
	CredentialTeam    = "API Engineers"
)

// DefaultPermissions is the fixed, ordered permission set carried by every credential.
func DefaultPermissions() []string {
	return []string{"api:read", "api:write", "api:deploy"}
}

// Credential is a signed token minted by the issuer, plus the metadata it was minted with.
// It is never mutated once created; the next issuance supersedes it.
type Credential struct {
	Raw         string    `json:"raw"`
	Issuer      string    `json:"issuer"`
	Audience    string    `json:"audience"`
	Subject     string    `json:"subject"`
	Team        string    `json:"team"`
	IssuedAt    time.Time `json:"issued_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Permissions []string  `json:"permissions"`
	GeneratedAt string    `json:"generated_at"`
	Version     string    `json:"version"`
}

// ValidAt reports whether the credential is still usable at now. A credential
// expiring exactly at now is expired.
func (c *Credential) ValidAt(now time.Time) bool {
	return ExpiresAfter(c.ExpiresAt, now)
}

// ExpiresAfter is the single expiry rule shared by every credential view: exp must be
// strictly after now, both compared in UTC.
func ExpiresAfter(exp, now time.Time) bool {
	return exp.UTC().After(now.UTC())
}
