package account

import (
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// Login attribute modes.
const (
	LoginEmail    = "email"
	LoginUsername = "username"
)

// Activation modes.
const (
	ActivateNone = "none"
	ActivateAuto = "auto"
	ActivateUser = "user"
)

// Remember-login modes.
const (
	RememberAlways = "always"
	RememberNever  = "never"
	RememberAsk    = "ask"
)

// Settings supplies named configuration values. Implementations are expected
// to reflect external changes between calls; snapshots are taken per request
// and never cached.
type Settings interface {
	Get(key string, def any) any
}

// Snapshot is a read-only view of the settings a single operation needs.
type Snapshot struct {
	LoginAttribute      string
	ActivateMode        string
	RememberLogin       string
	AllowRegistration   bool
	RequireActivation   bool
	UseRegisterThrottle bool
	SafePasswordUpdates bool
	ActivateRedirect    string
	ActivateURL         string
	PasswordResetURL    string
}

// SnapshotSettings reads a fresh Snapshot. Defaults mirror a newly installed
// system: email login, user-driven activation, registration open.
func SnapshotSettings(s Settings) Snapshot {
	return Snapshot{
		LoginAttribute:      cast.ToString(s.Get("login_attribute", LoginEmail)),
		ActivateMode:        cast.ToString(s.Get("activate_mode", ActivateUser)),
		RememberLogin:       cast.ToString(s.Get("remember_login", RememberAlways)),
		AllowRegistration:   cast.ToBool(s.Get("allow_registration", true)),
		RequireActivation:   cast.ToBool(s.Get("require_activation", true)),
		UseRegisterThrottle: cast.ToBool(s.Get("use_register_throttle", false)),
		SafePasswordUpdates: cast.ToBool(s.Get("safe_password_updates", false)),
		ActivateRedirect:    cast.ToString(s.Get("activate_redirect", "/")),
		ActivateURL:         cast.ToString(s.Get("activate_url", "")),
		PasswordResetURL:    cast.ToString(s.Get("password_reset_url", "")),
	}
}

// ActivationLink builds the link mailed during user-driven activation. The
// template may carry a {code} placeholder; without one the code is appended.
func (s Snapshot) ActivationLink(code string) string {
	if s.ActivateURL == "" {
		return code
	}

	if strings.Contains(s.ActivateURL, "{code}") {
		return strings.ReplaceAll(s.ActivateURL, "{code}", code)
	}

	return strings.TrimRight(s.ActivateURL, "/") + "/" + code
}

// ResetLink substitutes the {code} placeholder in the configured password
// reset URL template.
func (s Snapshot) ResetLink(code string) string {
	return strings.ReplaceAll(s.PasswordResetURL, "{code}", code)
}

// ViperSettings adapts a viper instance to the Settings interface.
type ViperSettings struct {
	v *viper.Viper
}

// NewViperSettings wraps v, falling back to viper's global instance when nil.
func NewViperSettings(v *viper.Viper) *ViperSettings {
	if v == nil {
		v = viper.GetViper()
	}
	return &ViperSettings{v: v}
}

func (s *ViperSettings) Get(key string, def any) any {
	if !s.v.IsSet(key) {
		return def
	}
	return s.v.Get(key)
}

// MapSettings is an in-memory Settings implementation, mostly for tests and
// embedding applications that already resolved their configuration.
type MapSettings map[string]any

func (m MapSettings) Get(key string, def any) any {
	if v, ok := m[key]; ok {
		return v
	}
	return def
}
