package service

import (
	"strconv"
	"strings"

	"github.com/vultisig/tokensync/types"
)

// Custom field labels read from the config record and written to the token record.
const (
	FieldIssuer          = "issuer"
	FieldAudience        = "audience"
	FieldExpirationHours = "expiration_hours"
	FieldSecretsDir      = "secrets_dir"
	FieldJWTFilename     = "jwt_filename"
	FieldExpires         = "expires"
)

// SigningConfigFromRecord reads the signing config out of the config record. The
// secret is the record password; every other value falls back to its default when
// absent or unusable.
func SigningConfigFromRecord(record *types.Record) types.SigningConfig {
	return types.SigningConfig{
		Secret:          record.Password,
		Issuer:          fieldOr(record, FieldIssuer, types.DefaultIssuer),
		Audience:        fieldOr(record, FieldAudience, types.DefaultAudience),
		ExpirationHours: expirationHours(record),
		LocalDirectory:  fieldOr(record, FieldSecretsDir, types.DefaultSecretsDir),
		LocalFilename:   fieldOr(record, FieldJWTFilename, types.DefaultJWTFilename),
	}
}

// SigningMetadataFromRecord is SigningConfigFromRecord without the secret, for
// consumers that only read tokens.
func SigningMetadataFromRecord(record *types.Record) types.SigningConfig {
	cfg := SigningConfigFromRecord(record)
	cfg.Secret = ""
	return cfg
}

func fieldOr(record *types.Record, label, fallback string) string {
	value, ok := record.Field(label)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}

func expirationHours(record *types.Record) int {
	value, ok := record.Field(FieldExpirationHours)
	if !ok {
		return types.DefaultExpirationHours
	}
	hours, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || hours <= 0 {
		return types.DefaultExpirationHours
	}
	return hours
}
