// Package linkage resolves which vault records this installation is bound to.
//
// Environment variables win over the local appConfig.json. When neither exists a
// template file with placeholder values is written and resolution fails, so the
// operator can fill it in and re-run.
package linkage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"

	"github.com/vultisig/tokensync/types"
)

const DefaultAppConfigPath = "appConfig.json"

type envLinkage struct {
	TokenRecordID  string `envconfig:"JWT_TOKEN_RECORD_UID"`
	ConfigRecordID string `envconfig:"JWT_CONFIG_RECORD_UID"`
}

type Resolver struct {
	path   string
	logger *logrus.Logger
}

func NewResolver(path string, logger *logrus.Logger) *Resolver {
	if path == "" {
		path = DefaultAppConfigPath
	}
	return &Resolver{
		path:   path,
		logger: logger,
	}
}

func (r *Resolver) Path() string {
	return r.path
}

// Resolve returns a validated AppLinkage or an ErrConfigurationMissing /
// ErrConfigurationIncomplete error.
func (r *Resolver) Resolve() (types.AppLinkage, error) {
	linkage, source, err := r.load()
	if err != nil {
		return types.AppLinkage{}, err
	}
	if missing := linkage.MissingKeys(); len(missing) > 0 {
		return types.AppLinkage{}, fmt.Errorf("%w: %s in %s must be set to real record uids",
			types.ErrConfigurationIncomplete, strings.Join(missing, ", "), source)
	}
	r.logger.WithFields(logrus.Fields{
		"source":           source,
		"token_record_id":  linkage.TokenRecordID,
		"config_record_id": linkage.ConfigRecordID,
	}).Info("resolved app linkage")
	return linkage, nil
}

func (r *Resolver) load() (types.AppLinkage, string, error) {
	var env envLinkage
	if err := envconfig.Process("", &env); err != nil {
		return types.AppLinkage{}, "", fmt.Errorf("%w: %v", types.ErrConfigurationIncomplete, err)
	}
	if strings.TrimSpace(env.TokenRecordID) != "" && strings.TrimSpace(env.ConfigRecordID) != "" {
		return types.AppLinkage{
			TokenRecordID:  strings.TrimSpace(env.TokenRecordID),
			ConfigRecordID: strings.TrimSpace(env.ConfigRecordID),
		}, "environment", nil
	}

	content, err := os.ReadFile(r.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return types.AppLinkage{}, "", fmt.Errorf("%w: read %s: %v", types.ErrConfigurationIncomplete, r.path, err)
		}
		if err := r.writeTemplate(); err != nil {
			return types.AppLinkage{}, "", err
		}
		return types.AppLinkage{}, "", fmt.Errorf("%w: created template %s, edit it with the token and config record uids and retry",
			types.ErrConfigurationMissing, r.path)
	}

	var linkage types.AppLinkage
	if err := json.Unmarshal(content, &linkage); err != nil {
		return types.AppLinkage{}, "", fmt.Errorf("%w: parse %s: %v", types.ErrConfigurationIncomplete, r.path, err)
	}
	return linkage, r.path, nil
}

func (r *Resolver) writeTemplate() error {
	content, err := json.MarshalIndent(types.TemplateAppLinkage(), "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrWriteFailure, err)
	}
	// O_EXCL: a file that appeared in the meantime is left alone.
	f, err := os.OpenFile(r.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", types.ErrWriteFailure, r.path, err)
	}
	if _, err := f.Write(append(content, '\n')); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: write %s: %v", types.ErrWriteFailure, r.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", types.ErrWriteFailure, r.path, err)
	}
	r.logger.WithField("path", r.path).Warn("app config template created")
	return nil
}
