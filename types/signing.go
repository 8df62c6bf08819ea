package types

const (
	DefaultIssuer          = "api-development-server"
	DefaultAudience        = "api-engineers"
	DefaultExpirationHours = 24
	DefaultSecretsDir      = "secrets"
	DefaultJWTFilename     = "api_access.jwt"
)

// SigningConfig is loaded fresh from the config record on every run and passed by
// value through the workflow. Secret must never be logged.
type SigningConfig struct {
	Secret          string
	Issuer          string
	Audience        string
	ExpirationHours int
	LocalDirectory  string
	LocalFilename   string
}

func (s SigningConfig) HasSecret() bool {
	return s.Secret != ""
}

// String hides the secret so a config accidentally passed to a logger stays safe.
func (s SigningConfig) String() string {
	secret := "<empty>"
	if s.HasSecret() {
		secret = "<redacted>"
	}
	return "SigningConfig{issuer=" + s.Issuer + ", audience=" + s.Audience +
		", dir=" + s.LocalDirectory + ", file=" + s.LocalFilename + ", secret=" + secret + "}"
}
