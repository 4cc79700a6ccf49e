package config

import (
	"os"
	"strings"
)

// KeySource represents where a credential-like setting comes from.
type KeySource string

const (
	KeySourceEnv     KeySource = "env"
	KeySourceConfig  KeySource = "config"
	KeySourceDefault KeySource = "default"
	KeySourceNone    KeySource = "none"
)

// KeyStatus represents the status of a credential-like setting.
type KeyStatus struct {
	Name   string    `json:"name"`
	Source KeySource `json:"source"`
	IsSet  bool      `json:"is_set"`
	Masked string    `json:"masked,omitempty"`
}

// defaultSECUserAgent mirrors the placeholder in setDefaults. EDGAR
// throttles anonymous-looking agents, so the status command flags it.
const defaultSECUserAgent = "panelstudy research contact@example.com"

// CheckKeys returns the status of the settings the data sources need.
func CheckKeys(cfg *Config) []KeyStatus {
	ua := checkKey("SEC User-Agent", cfg.Sources.SECUserAgent,
		EnvPrefix+"_SOURCES_SEC_USER_AGENT", "SEC_USER_AGENT")
	if cfg.Sources.SECUserAgent == defaultSECUserAgent {
		ua.Source = KeySourceDefault
	}
	return []KeyStatus{ua}
}

// checkKey checks if a value is set and which of envVars supplied it.
func checkKey(name, value string, envVars ...string) KeyStatus {
	status := KeyStatus{Name: name, IsSet: value != "", Source: KeySourceNone}
	if value == "" {
		return status
	}
	status.Source = KeySourceConfig
	for _, env := range envVars {
		if os.Getenv(env) != "" {
			status.Source = KeySourceEnv
			break
		}
	}
	status.Masked = maskKey(value)
	return status
}

// maskKey masks a value for display. An e-mail address keeps its domain.
func maskKey(key string) string {
	if at := strings.LastIndex(key, "@"); at > 0 {
		return "***" + key[at:]
	}
	if len(key) <= 8 {
		return "***"
	}
	return key[:3] + "..." + key[len(key)-3:]
}
