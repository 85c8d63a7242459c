// Package config loads the engine's configuration surface (spec.md §6)
// through github.com/spf13/viper, the same library anasdox-workline uses
// to configure its own engine (cmd/wl/main.go). Defaults are set
// programmatically, then overridden by a YAML file and/or
// JITACCESS_-prefixed environment variables. Config is validated once at
// construction and is immutable afterward.
package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/activation"
	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/jiterrors"
)

// Config is the fully validated, immutable configuration surface.
type Config struct {
	// Scope is the analyzer search root: organizations/<id>,
	// folders/<id>, or projects/<id>.
	Scope string

	// ProjectQuery, if non-empty, makes listProjects use a
	// resource-manager search instead of policy analysis.
	ProjectQuery string

	MinActivationDuration time.Duration
	MaxActivationDuration time.Duration

	MinReviewers int
	MaxReviewers int

	MaxEntitlementsPerJitRequest int

	JustificationPattern *regexp.Regexp
	JustificationHint    string

	TokenValidity time.Duration

	// ServiceAccount is the signing identity: issuer and audience of
	// every issued token.
	ServiceAccount string

	// EnableEmail records whether notifications go out as mail or to
	// notify.LogTransport. Config only carries the value; the transport
	// is chosen by whoever builds the notify.Engine, and the cmd/jitctl
	// demo session always uses notify.LogTransport.
	EnableEmail bool

	// EmailTemplatePath, if set, is read by the caller and passed to
	// notify.NewTemplate; empty means notify.DefaultTemplate.
	EmailTemplatePath string
}

const envPrefix = "JITACCESS"

func setDefaults(v *viper.Viper) {
	v.SetDefault("scope", "")
	v.SetDefault("projectQuery", "")
	v.SetDefault("minActivationDuration", 5*time.Minute)
	v.SetDefault("maxActivationDuration", 24*time.Hour)
	v.SetDefault("minReviewers", 1)
	v.SetDefault("maxReviewers", 10)
	v.SetDefault("maxEntitlementsPerJitRequest", 10)
	v.SetDefault("justificationPattern", "")
	v.SetDefault("justificationHint", "Enter a justification for this request")
	v.SetDefault("tokenValidity", time.Hour)
	v.SetDefault("serviceAccount", "")
	v.SetDefault("enableEmail", true)
	v.SetDefault("emailTemplatePath", "")
}

// Load binds v (a fresh Viper instance if nil) to configFile (if
// non-empty), the environment (JITACCESS_<KEY>), and any flags already
// bound by the caller via v.BindPFlag, then validates and returns the
// resulting Config. Callers that need the underlying *viper.Viper for
// cobra-flag binding construct it with viper.New, bind their flags, and
// pass it to Load afterward.
func Load(v *viper.Viper, configFile string) (Config, error) {
	if v == nil {
		v = viper.New()
	}
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, jiterrors.Wrap(jiterrors.InvalidArgument, err, "read config file %s", configFile)
		}
	}

	cfg := Config{
		Scope:                        v.GetString("scope"),
		ProjectQuery:                 v.GetString("projectQuery"),
		MinActivationDuration:        v.GetDuration("minActivationDuration"),
		MaxActivationDuration:        v.GetDuration("maxActivationDuration"),
		MinReviewers:                 v.GetInt("minReviewers"),
		MaxReviewers:                 v.GetInt("maxReviewers"),
		MaxEntitlementsPerJitRequest: v.GetInt("maxEntitlementsPerJitRequest"),
		JustificationHint:            v.GetString("justificationHint"),
		TokenValidity:                v.GetDuration("tokenValidity"),
		ServiceAccount:               v.GetString("serviceAccount"),
		EnableEmail:                  v.GetBool("enableEmail"),
		EmailTemplatePath:            v.GetString("emailTemplatePath"),
	}

	if pattern := v.GetString("justificationPattern"); pattern != "" {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return Config{}, jiterrors.Wrap(jiterrors.InvalidArgument, err, "compile justificationPattern %q", pattern)
		}
		cfg.JustificationPattern = re
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Scope == "" {
		return jiterrors.New(jiterrors.InvalidArgument, "scope is required")
	}
	if c.MinActivationDuration <= 0 || c.MaxActivationDuration <= 0 {
		return jiterrors.New(jiterrors.InvalidArgument, "activation durations must be positive")
	}
	if c.MinActivationDuration > c.MaxActivationDuration {
		return jiterrors.New(jiterrors.InvalidArgument, "minActivationDuration must not exceed maxActivationDuration")
	}
	if c.MinReviewers <= 0 || c.MaxReviewers <= 0 || c.MinReviewers > c.MaxReviewers {
		return jiterrors.New(jiterrors.InvalidArgument, "reviewer bounds are invalid")
	}
	if c.MaxEntitlementsPerJitRequest <= 0 {
		return jiterrors.New(jiterrors.InvalidArgument, "maxEntitlementsPerJitRequest must be positive")
	}
	if c.TokenValidity <= 0 {
		return jiterrors.New(jiterrors.InvalidArgument, "tokenValidity must be positive")
	}
	if c.ServiceAccount == "" {
		return jiterrors.New(jiterrors.InvalidArgument, "serviceAccount is required")
	}
	return nil
}

// ActivatorConfig converts the loaded surface into activation.Config,
// applying the 1-minute start-time tolerance spec.md §9 Open Question 2
// settles on uniformly for both request kinds.
func (c Config) ActivatorConfig() activation.Config {
	return activation.Config{
		MinDuration:                  c.MinActivationDuration,
		MaxDuration:                  c.MaxActivationDuration,
		MinReviewers:                 c.MinReviewers,
		MaxReviewers:                 c.MaxReviewers,
		MaxEntitlementsPerJitRequest: c.MaxEntitlementsPerJitRequest,
		JustificationPattern:         c.JustificationPattern,
		JustificationHint:            c.JustificationHint,
		StartTimeTolerance:           time.Minute,
	}
}

// String renders a redacted summary safe for logs: it never includes
// the justification regex source or the service account's raw value
// beyond its domain, matching the teacher's habit of scrubbing
// credentials-adjacent fields before logging config at startup.
func (c Config) String() string {
	return fmt.Sprintf(
		"scope=%s projectQuery=%q minDuration=%s maxDuration=%s minReviewers=%d maxReviewers=%d maxBatch=%d tokenValidity=%s enableEmail=%t",
		c.Scope, c.ProjectQuery, c.MinActivationDuration, c.MaxActivationDuration,
		c.MinReviewers, c.MaxReviewers, c.MaxEntitlementsPerJitRequest, c.TokenValidity, c.EnableEmail,
	)
}
