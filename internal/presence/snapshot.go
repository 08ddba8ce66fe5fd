// Package presence tracks who is in the office and tells watchers about
// arrivals and departures.
package presence

import (
	"sort"
	"strings"

	"github.com/rfdyn/acsbot/internal/user"
)

// Snapshot is the set of name lines seen in one poll, keyed by normalized
// name. Lines keep their original spelling for display.
type Snapshot struct {
	names map[string]string
	order []string
}

// ParseSnapshot builds a snapshot from the portal's newline-separated list.
// Blank lines are ignored.
func ParseSnapshot(text string) Snapshot {
	s := Snapshot{names: make(map[string]string)}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		key := user.NormalizeName(line)
		if key == "" {
			continue
		}
		if _, dup := s.names[key]; dup {
			continue
		}
		s.names[key] = line
		s.order = append(s.order, key)
	}
	return s
}

// NewSnapshot builds a snapshot from names. Mostly useful in tests.
func NewSnapshot(names ...string) Snapshot {
	return ParseSnapshot(strings.Join(names, "\n"))
}

// Len returns the number of distinct names.
func (s Snapshot) Len() int {
	return len(s.names)
}

// Empty reports whether the snapshot has no names.
func (s Snapshot) Empty() bool {
	return len(s.names) == 0
}

// Contains reports whether name is present.
func (s Snapshot) Contains(name string) bool {
	_, ok := s.names[user.NormalizeName(name)]
	return ok
}

// Names returns the display names in the order the portal listed them.
func (s Snapshot) Names() []string {
	out := make([]string, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.names[key])
	}
	return out
}

// Minus returns the sorted display names present in s but not in other.
func (s Snapshot) Minus(other Snapshot) []string {
	var out []string
	for key, name := range s.names {
		if _, ok := other.names[key]; !ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Change is the difference between two consecutive snapshots.
type Change struct {
	Arrived []string
	Left    []string
}

// Empty reports whether nothing changed.
func (c Change) Empty() bool {
	return len(c.Arrived) == 0 && len(c.Left) == 0
}

// Diff computes arrivals (current - previous) and departures
// (previous - current).
func Diff(previous, current Snapshot) Change {
	return Change{
		Arrived: current.Minus(previous),
		Left:    previous.Minus(current),
	}
}
