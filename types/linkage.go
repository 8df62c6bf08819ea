package types

import "strings"

const (
	PlaceholderPrefix          = "YOUR_"
	PlaceholderTokenRecordUID  = PlaceholderPrefix + "JWT_TOKEN_RECORD_UID"
	PlaceholderConfigRecordUID = PlaceholderPrefix + "JWT_CONFIG_RECORD_UID"
)

// AppLinkage locates the token record and the config record an installation is bound to.
type AppLinkage struct {
	TokenRecordID  string `json:"jwt_token_record_uid"`
	ConfigRecordID string `json:"jwt_config_record_uid"`
}

// TemplateAppLinkage is written to disk when no linkage is configured anywhere.
func TemplateAppLinkage() AppLinkage {
	return AppLinkage{
		TokenRecordID:  PlaceholderTokenRecordUID,
		ConfigRecordID: PlaceholderConfigRecordUID,
	}
}

// MissingKeys returns the JSON keys that are empty or still hold a placeholder.
func (a AppLinkage) MissingKeys() []string {
	var missing []string
	if unresolved(a.TokenRecordID) {
		missing = append(missing, "jwt_token_record_uid")
	}
	if unresolved(a.ConfigRecordID) {
		missing = append(missing, "jwt_config_record_uid")
	}
	return missing
}

func unresolved(id string) bool {
	id = strings.TrimSpace(id)
	return id == "" || strings.HasPrefix(id, PlaceholderPrefix)
}
