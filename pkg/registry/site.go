package registry

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ServeMode determines how a site is exposed through the proxy.
type ServeMode string

const (
	// ModeLoopbackPort serves the site at localhost on a specific port.
	ModeLoopbackPort ServeMode = "loopback"
	// ModeCustomDomain serves the site at a custom local hostname,
	// which requires privileged ports and a hosts-table alias.
	ModeCustomDomain ServeMode = "domain"
)

// DefaultPort is used for loopback sites that don't specify one.
const DefaultPort = 3000

// Site is a registered project folder.
type Site struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	ShortcutLabel string    `json:"shortcut_label"`
	Folder        string    `json:"folder"`
	Mode          ServeMode `json:"mode"`
	Port          int       `json:"port,omitempty"`
	Domain        string    `json:"domain,omitempty"`
	Served        bool      `json:"served"`
	Shortcut      bool      `json:"shortcut"`
}

// Normalize trims fields and applies mode-dependent defaults.
// Labels and names fall back to each other so neither is ever empty.
func (s *Site) Normalize() {
	s.Name = strings.TrimSpace(s.Name)
	s.ShortcutLabel = strings.TrimSpace(s.ShortcutLabel)
	s.Folder = strings.TrimSpace(s.Folder)
	s.Domain = strings.TrimSpace(s.Domain)

	if s.ID == "" {
		s.ID = uuid.NewString()
	}

	if s.Name == "" {
		s.Name = s.ShortcutLabel
	}
	if s.ShortcutLabel == "" {
		s.ShortcutLabel = s.Name
	}

	switch {
	case s.Mode == ModeCustomDomain && s.Domain != "":
		// Port is meaningless for domain sites.
		s.Port = 0
	default:
		// A domain-mode record with no domain has nothing to serve at;
		// downgrade it to loopback rather than emit an empty address.
		s.Mode = ModeLoopbackPort
		if s.Port <= 0 {
			s.Port = DefaultPort
		}
	}
}

// Address returns the host[:port] the site is reachable at when served.
func (s *Site) Address() string {
	if s.Mode == ModeCustomDomain {
		return s.Domain
	}
	return fmt.Sprintf("localhost:%d", s.Port)
}

// URL returns the effective HTTPS URL of the site.
func (s *Site) URL() string {
	return "https://" + s.Address()
}

// NeedsPrivileges reports whether serving this site requires elevated
// rights (privileged ports + hosts-table edits).
func (s *Site) NeedsPrivileges() bool {
	return s.Mode == ModeCustomDomain
}

// recoverSite rebuilds a Site from an unstructured record, pulling
// known and renamed fields with defaults for anything missing or
// mistyped. Kept pure so schema recovery is testable on its own.
func recoverSite(raw map[string]interface{}) Site {
	s := Site{
		ID:            stringField(raw, "id"),
		Name:          stringField(raw, "name", "title"),
		ShortcutLabel: stringField(raw, "shortcut_label", "label"),
		Folder:        stringField(raw, "folder", "path"),
		Domain:        stringField(raw, "domain"),
		Port:          intField(raw, "port"),
		Served:        boolField(raw, "served", "active"),
		Shortcut:      boolField(raw, "shortcut"),
	}

	switch stringField(raw, "mode") {
	case string(ModeCustomDomain):
		s.Mode = ModeCustomDomain
	case string(ModeLoopbackPort):
		s.Mode = ModeLoopbackPort
	default:
		// Older records carried a privileged/custom-domain boolean
		// instead of a mode. A domain implies domain mode.
		if boolField(raw, "privileged", "custom_domain") && s.Domain != "" {
			s.Mode = ModeCustomDomain
		} else {
			s.Mode = ModeLoopbackPort
		}
	}

	s.Normalize()
	return s
}

func stringField(raw map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if v, ok := raw[key].(string); ok {
			return v
		}
	}
	return ""
}

func intField(raw map[string]interface{}, keys ...string) int {
	for _, key := range keys {
		switch v := raw[key].(type) {
		case float64:
			return int(v)
		case int:
			return v
		}
	}
	return 0
}

func boolField(raw map[string]interface{}, keys ...string) bool {
	for _, key := range keys {
		if v, ok := raw[key].(bool); ok {
			return v
		}
	}
	return false
}
