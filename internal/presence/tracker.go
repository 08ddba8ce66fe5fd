package presence

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"

	"github.com/rfdyn/acsbot/internal/logging"
	"github.com/rfdyn/acsbot/internal/user"
	"github.com/sirupsen/logrus"
)

// UnavailableText is shown instead of a listing when the portal is down.
const UnavailableText = "ACS server is unavailable right now :("

// Source is the portal side of presence tracking.
type Source interface {
	// InOffice returns the raw newline-separated list of present names.
	InOffice(ctx context.Context) (string, error)

	// IsInOffice reports whether the badge holder is currently inside.
	IsInOffice(ctx context.Context, badgeID string) bool
}

// Directory is the read side of the user store.
type Directory interface {
	UserIDs() []string
	Record(userID string) (user.Record, bool)
}

// Notifier delivers one message to one chat user.
type Notifier interface {
	Notify(ctx context.Context, userID, text string) error
}

// OutageReporter is implemented by notifiers that also want to hear when the
// portal stops answering. It is called once per outage, on the first failed
// fetch after a successful one (or after start).
type OutageReporter interface {
	PortalUnavailable(ctx context.Context, err error)
}

// Notification is one message produced by DiffAndNotify.
type Notification struct {
	UserID  string
	Name    string
	Arrived bool
	Text    string
}

// Tracker keeps the previous presence snapshot and notifies watchers when
// it changes.
type Tracker struct {
	source   Source
	users    Directory
	notifier Notifier
	log      *logrus.Entry

	mu       sync.Mutex
	previous Snapshot
	primed   bool

	outageMu sync.Mutex
	down     bool
}

// NewTracker creates a tracker. Nothing is fetched until the first poll.
func NewTracker(source Source, users Directory, notifier Notifier) *Tracker {
	return &Tracker{
		source:   source,
		users:    users,
		notifier: notifier,
		log:      logging.NewLogger("presence"),
	}
}

// FetchSnapshot reads the current presence list. When the portal fails the
// snapshot is empty and available is false; there is no retry.
func (t *Tracker) FetchSnapshot(ctx context.Context) (snap Snapshot, available bool) {
	text, err := t.source.InOffice(ctx)

	t.outageMu.Lock()
	wasDown := t.down
	t.down = err != nil
	t.outageMu.Unlock()

	if err != nil {
		t.log.WithError(err).Warn("Presence fetch failed")
		if r, ok := t.notifier.(OutageReporter); ok && !wasDown {
			r.PortalUnavailable(ctx, err)
		}
		return Snapshot{}, false
	}
	if wasDown {
		t.log.Info("Portal is answering again")
	}
	return ParseSnapshot(text), true
}

// DiffAndNotify polls the portal, diffs against the previous snapshot and
// sends one message per watched name that arrived or left.
//
// The first successful poll only records the snapshot. A failed or empty
// poll is skipped and keeps the previous snapshot, so a portal hiccup is not
// reported as everyone leaving.
func (t *Tracker) DiffAndNotify(ctx context.Context) ([]Notification, error) {
	current, ok := t.FetchSnapshot(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()

	if !ok || current.Empty() {
		return nil, nil
	}
	if !t.primed {
		t.previous = current
		t.primed = true
		t.log.WithField("present", current.Len()).Debug("Presence tracker primed")
		return nil, nil
	}

	change := Diff(t.previous, current)
	t.previous = current
	if change.Empty() {
		return nil, nil
	}
	t.log.WithFields(logrus.Fields{
		"arrived": len(change.Arrived),
		"left":    len(change.Left),
	}).Info("Presence changed")

	var (
		sent []Notification
		errs []error
	)
	for _, userID := range t.users.UserIDs() {
		rec, ok := t.users.Record(userID)
		if !ok || !rec.Registered() || len(rec.WatchedNames) == 0 {
			continue
		}
		pending := notificationsFor(userID, rec, change)
		if len(pending) == 0 || !t.wantsAlerts(ctx, rec) {
			continue
		}
		for _, n := range pending {
			if err := t.notifier.Notify(ctx, n.UserID, n.Text); err != nil {
				errs = append(errs, fmt.Errorf("notifying %s: %w", n.UserID, err))
				continue
			}
			sent = append(sent, n)
		}
	}
	return sent, errors.Join(errs...)
}

// wantsAlerts applies the user's alert_about_users setting.
func (t *Tracker) wantsAlerts(ctx context.Context, rec user.Record) bool {
	setting := user.DefaultSettings().Get(user.SettingAlertAboutUsers)
	if rec.Settings != nil {
		setting = rec.Settings.Get(user.SettingAlertAboutUsers)
	}
	switch setting {
	case user.ValueOn:
		return true
	case user.ValueWhenInOffice:
		return t.source.IsInOffice(ctx, rec.BadgeID)
	}
	return false
}

func notificationsFor(userID string, rec user.Record, change Change) []Notification {
	var out []Notification
	for _, name := range change.Arrived {
		if rec.Watches(name) {
			out = append(out, Notification{
				UserID:  userID,
				Name:    name,
				Arrived: true,
				Text:    fmt.Sprintf("👨🏻‍💻 %s is in the office now!", name),
			})
		}
	}
	for _, name := range change.Left {
		if rec.Watches(name) {
			out = append(out, Notification{
				UserID: userID,
				Name:   name,
				Text:   fmt.Sprintf("🙇🏻 %s has left the office!", name),
			})
		}
	}
	return out
}

// Entry is one line of a presence listing.
type Entry struct {
	Name    string
	Watched bool
}

// Listing is the "who is in the office" answer for one user.
type Listing struct {
	Available bool
	Entries   []Entry
}

// Render formats the listing as chat HTML with watched names in bold.
func (l Listing) Render() string {
	if !l.Available {
		return UnavailableText
	}
	if len(l.Entries) == 0 {
		return "👥 Nobody is in the office."
	}
	lines := make([]string, 0, len(l.Entries))
	for _, e := range l.Entries {
		name := html.EscapeString(e.Name)
		if e.Watched {
			name = "<b>" + name + "</b>"
		}
		lines = append(lines, name)
	}
	return "👥 " + strings.Join(lines, "\n")
}

// QueryPresenceFor fetches the current list and marks the names userID
// watches. It never fails; an unreachable portal yields Available=false.
func (t *Tracker) QueryPresenceFor(ctx context.Context, userID string) Listing {
	snap, ok := t.FetchSnapshot(ctx)
	if !ok {
		return Listing{}
	}
	rec, _ := t.users.Record(userID)
	listing := Listing{Available: true}
	for _, name := range snap.Names() {
		listing.Entries = append(listing.Entries, Entry{Name: name, Watched: rec.Watches(name)})
	}
	return listing
}
