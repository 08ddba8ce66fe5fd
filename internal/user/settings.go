package user

import (
	"encoding/json"
	"fmt"
)

// CurrentSettingsVersion is the schema version written for the settings block.
const CurrentSettingsVersion = 1

// Setting names.
const (
	SettingMorningBirthdays = "morning_birthdays"
	SettingAlertAboutUsers  = "alert_about_users"
)

// Setting values.
const (
	ValueOn           = "on"
	ValueOff          = "off"
	ValueWhenInOffice = "when_in_office"
)

// legacySettingsType is the discriminator the previous bot wrote into the
// settings object.
const legacySettingsType = "UserSettings"

// Definition describes one user setting and its value enumeration.
// The first value is the default.
type Definition struct {
	Name   string
	Title  string
	Values []string
	Emoji  []string
	Help   string
}

// EmojiFor returns the display glyph for value, or "?" for unknown values.
func (d Definition) EmojiFor(value string) string {
	for i, v := range d.Values {
		if v == value && i < len(d.Emoji) {
			return d.Emoji[i]
		}
	}
	return "?"
}

func (d Definition) next(value string) string {
	for i, v := range d.Values {
		if v == value {
			return d.Values[(i+1)%len(d.Values)]
		}
	}
	return d.Values[0]
}

func (d Definition) allows(value string) bool {
	for _, v := range d.Values {
		if v == value {
			return true
		}
	}
	return false
}

// Definitions lists every recognized setting in display order.
var Definitions = []Definition{
	{
		Name:   SettingMorningBirthdays,
		Title:  "Birthdays:",
		Values: []string{ValueOn, ValueOff},
		Emoji:  []string{"🔔", "🔕"},
		Help: "Morning notice about colleagues' birthdays.\n" +
			"🔔 notify\n" +
			"🔕 do not notify",
	},
	{
		Name:   SettingAlertAboutUsers,
		Title:  "Colleague arrivals:",
		Values: []string{ValueOn, ValueWhenInOffice, ValueOff},
		Emoji:  []string{"🔔", "🔔+🖥", "🔕"},
		Help: "Notices when people from your watch list (/alert_add) arrive or leave.\n" +
			"🔔 always notify\n" +
			"🔔+🖥 only while I am in the office\n" +
			"🔕 do not notify",
	},
}

// LookupDefinition returns the definition for a setting name.
func LookupDefinition(name string) (Definition, bool) {
	for _, d := range Definitions {
		if d.Name == name {
			return d, true
		}
	}
	return Definition{}, false
}

// Settings holds a user's toggle settings. Every recognized setting is
// always present with a value from its own enumeration.
type Settings struct {
	// Version is the schema version of the persisted block.
	Version int `json:"version"`

	// Values maps setting name to its current value.
	Values map[string]string `json:"values"`
}

// DefaultSettings returns settings with every value at its default.
func DefaultSettings() Settings {
	s := Settings{Version: CurrentSettingsVersion}
	s.Reset()
	return s
}

// Get returns the current value of a setting, or "" if it is not recognized.
func (s Settings) Get(name string) string {
	return s.Values[name]
}

// Cycle advances the named setting to its next value, wrapping after the last.
func (s *Settings) Cycle(name string) (string, error) {
	def, ok := LookupDefinition(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownSetting, name)
	}
	s.normalize()
	s.Values[name] = def.next(s.Values[name])
	return s.Values[name], nil
}

// Reset sets every setting back to its default.
func (s *Settings) Reset() {
	s.Version = CurrentSettingsVersion
	s.Values = make(map[string]string, len(Definitions))
	for _, d := range Definitions {
		s.Values[d.Name] = d.Values[0]
	}
}

// Clone returns a deep copy.
func (s Settings) Clone() Settings {
	c := Settings{Version: s.Version, Values: make(map[string]string, len(s.Values))}
	for k, v := range s.Values {
		c.Values[k] = v
	}
	return c
}

// normalize fills missing or out-of-enumeration values with defaults and
// drops names that are no longer recognized.
func (s *Settings) normalize() {
	if s.Values == nil {
		s.Values = make(map[string]string, len(Definitions))
	}
	for name := range s.Values {
		if _, ok := LookupDefinition(name); !ok {
			delete(s.Values, name)
		}
	}
	for _, d := range Definitions {
		if !d.allows(s.Values[d.Name]) {
			s.Values[d.Name] = d.Values[0]
		}
	}
	s.Version = CurrentSettingsVersion
}

// UnmarshalJSON decodes the versioned settings record. Objects written by the
// previous bot (flat values tagged with "__type__") are accepted as well.
func (s *Settings) UnmarshalJSON(data []byte) error {
	var probe struct {
		Version *int            `json:"version"`
		Type    string          `json:"__type__"`
		Values  json.RawMessage `json:"values"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("decoding settings: %w", err)
	}

	switch {
	case probe.Version != nil:
		if *probe.Version > CurrentSettingsVersion {
			return fmt.Errorf("%w: settings version %d", ErrUnsupportedVersion, *probe.Version)
		}
		values := map[string]string{}
		if len(probe.Values) > 0 {
			if err := json.Unmarshal(probe.Values, &values); err != nil {
				return fmt.Errorf("decoding settings values: %w", err)
			}
		}
		s.Values = values

	case probe.Type == legacySettingsType:
		var flat map[string]any
		if err := json.Unmarshal(data, &flat); err != nil {
			return fmt.Errorf("decoding legacy settings: %w", err)
		}
		s.Values = make(map[string]string, len(flat))
		for k, v := range flat {
			if str, ok := v.(string); ok && k != "__type__" {
				s.Values[k] = str
			}
		}

	default:
		return fmt.Errorf("%w: settings block has neither version nor type tag", ErrMalformedDocument)
	}

	s.normalize()
	return nil
}
