// Package user provides the persisted per-user state of the ACS bot: the
// authentication flag, badge id, watch list and toggle settings.
package user

import (
	"encoding/json"
	"fmt"
)

// Record is the persisted state of one chat user.
type Record struct {
	// Authenticated is set once the user entered the access password.
	Authenticated bool `json:"authenticated"`

	// DisplayName is the chat display name captured at registration.
	DisplayName string `json:"display_name,omitempty"`

	// BadgeID is the numeric staff id issued by the ACS portal.
	BadgeID string `json:"badge_id,omitempty"`

	// WatchedNames are colleague names to report arrivals and departures for.
	// Insertion order, no duplicates.
	WatchedNames []string `json:"watched_names,omitempty"`

	// Settings is nil until first needed.
	Settings *Settings `json:"settings,omitempty"`
}

// Registered reports whether the user finished registration.
func (r Record) Registered() bool {
	return r.Authenticated && r.BadgeID != ""
}

// Watches reports whether name is on the watch list.
func (r Record) Watches(name string) bool {
	key := NormalizeName(name)
	for _, w := range r.WatchedNames {
		if NormalizeName(w) == key {
			return true
		}
	}
	return false
}

// clone returns a deep copy safe to hand out of the store.
func (r Record) clone() Record {
	c := r
	if r.WatchedNames != nil {
		c.WatchedNames = append([]string(nil), r.WatchedNames...)
	}
	if r.Settings != nil {
		s := r.Settings.Clone()
		c.Settings = &s
	}
	return c
}

// UnmarshalJSON decodes a record. Field names and the string-typed
// authentication flag written by the previous bot are accepted too.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw struct {
		Authenticated json.RawMessage `json:"authenticated"`
		DisplayName   string          `json:"display_name"`
		BadgeID       string          `json:"badge_id"`
		WatchedNames  []string        `json:"watched_names"`
		Settings      *Settings       `json:"settings"`

		LegacyName   string   `json:"name"`
		LegacyWho    string   `json:"who"`
		LegacyAlerts []string `json:"alert_users"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	auth, err := decodeFlag(raw.Authenticated)
	if err != nil {
		return err
	}

	*r = Record{
		Authenticated: auth,
		DisplayName:   firstNonEmpty(raw.DisplayName, raw.LegacyWho),
		BadgeID:       firstNonEmpty(raw.BadgeID, raw.LegacyName),
		Settings:      raw.Settings,
	}
	for _, name := range append(raw.WatchedNames, raw.LegacyAlerts...) {
		if name != "" && !r.Watches(name) {
			r.WatchedNames = append(r.WatchedNames, name)
		}
	}
	return nil
}

// decodeFlag accepts true/false and the legacy "True"/"False" strings.
func decodeFlag(raw json.RawMessage) (bool, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return false, nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return false, fmt.Errorf("%w: authenticated flag %s", ErrMalformedDocument, raw)
	}
	switch s {
	case "True", "true":
		return true, nil
	case "False", "false", "":
		return false, nil
	}
	return false, fmt.Errorf("%w: authenticated flag %q", ErrMalformedDocument, s)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
