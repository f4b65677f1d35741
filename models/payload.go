package models

import (
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
)

const maxDescriptionLen = 4096

// Payload is the plugin metadata submitted once per run. Every step receives
// it unchanged.
type Payload struct {
	PluginTitle  string `json:"plugin_title"`
	ScriptName   string `json:"scriptname"`
	Description  string `json:"description"`
	Organization string `json:"organization"`
	Email        string `json:"email"`
	GithubToken  string `json:"github_token"`
	ServiceURL   string `json:"service_url,omitempty"`
}

func (p Payload) Validate() error {
	if strings.TrimSpace(p.PluginTitle) == "" {
		return ValidationError("invalid payload: missing 'plugin_title'")
	}
	if len(p.Description) > maxDescriptionLen {
		return ValidationError(fmt.Sprintf("invalid payload: 'description' exceeds %d characters", maxDescriptionLen))
	}
	if p.Email != "" {
		if _, err := mail.ParseAddress(p.Email); err != nil {
			return ValidationError(fmt.Sprintf("invalid payload: 'email': %v", err))
		}
	}
	return nil
}

// Redacted returns a copy that is safe to log or persist.
func (p Payload) Redacted() Payload {
	if p.GithubToken != "" {
		p.GithubToken = "REDACTED"
	}
	return p
}

func (p Payload) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("plugin_title", p.PluginTitle),
		slog.String("scriptname", p.ScriptName),
		slog.String("organization", p.Organization),
		slog.String("email", p.Email),
		slog.String("service_url", p.ServiceURL),
		slog.Bool("has_token", p.GithubToken != ""),
	)
}
