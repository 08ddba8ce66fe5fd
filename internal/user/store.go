package user

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/rfdyn/acsbot/internal/logging"
	"github.com/sirupsen/logrus"
)

var (
	// ErrUserNotFound indicates the requested user has no record.
	ErrUserNotFound = errors.New("user not found")

	// ErrNotAuthenticated indicates the user has not entered the access password.
	ErrNotAuthenticated = errors.New("user not authenticated")

	// ErrWrongPassword indicates the access password did not match.
	ErrWrongPassword = errors.New("wrong password")

	// ErrInvalidBadgeID indicates the badge id is not a number.
	ErrInvalidBadgeID = errors.New("badge id must be numeric")

	// ErrUnknownSetting indicates the setting name is not recognized.
	ErrUnknownSetting = errors.New("unknown setting")

	// ErrEmptyName indicates an empty watch-list name.
	ErrEmptyName = errors.New("name is empty")

	// ErrMalformedDocument indicates the persisted document could not be decoded.
	ErrMalformedDocument = errors.New("malformed user store")

	// ErrUnsupportedVersion indicates a settings block newer than this build.
	ErrUnsupportedVersion = errors.New("unsupported settings version")
)

// Store keeps every user record in memory and persists the whole map to a
// single JSON document on each mutation.
//
// Every mutation re-reads the document, applies the change and writes it
// back while holding both the in-process mutex and an exclusive lock on
// <path>.lock, so two bot processes sharing a document cannot lose each
// other's updates. The in-memory copy only changes once the write succeeded.
type Store struct {
	mu       sync.Mutex
	path     string
	fileLock *flock.Flock
	password string
	records  map[string]*Record
	log      *logrus.Entry
}

// NewStore creates a store backed by the document at path. password is the
// access secret users must enter before registering; an empty password
// rejects everyone.
func NewStore(path, password string) *Store {
	return &Store{
		path:     path,
		fileLock: flock.New(path + ".lock"),
		password: password,
		records:  make(map[string]*Record),
		log:      logging.NewLogger("store"),
	}
}

// Path returns the document path.
func (s *Store) Path() string {
	return s.path
}

// Load replaces the in-memory state with the persisted document. A missing
// or empty document leaves the store empty; a malformed one is an error.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lockFile(); err != nil {
		return err
	}
	defer s.unlockFile()

	records, err := s.readLocked()
	if err != nil {
		return err
	}
	s.records = records
	s.log.WithField("users", len(records)).Debug("Loaded user store")
	return nil
}

// readLocked decodes the document (caller must hold the file lock).
func (s *Store) readLocked() (map[string]*Record, error) {
	records := make(map[string]*Record)

	data, err := os.ReadFile(s.path) //nolint:gosec // G304: path from trusted config
	if err != nil {
		if os.IsNotExist(err) {
			return records, nil
		}
		return nil, fmt.Errorf("reading user store: %w", err)
	}
	if len(data) == 0 {
		return records, nil
	}

	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformedDocument, s.path, err)
	}
	for id, rec := range records {
		if rec == nil {
			delete(records, id)
		}
	}
	return records, nil
}

// Save writes the whole in-memory state to the document.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lockFile(); err != nil {
		return err
	}
	defer s.unlockFile()

	return s.writeLocked(s.records)
}

// writeLocked writes records to the document (caller must hold the file lock).
func (s *Store) writeLocked(records map[string]*Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding user store: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("writing user store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replacing user store: %w", err)
	}
	return nil
}

func (s *Store) lockFile() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	if err := s.fileLock.Lock(); err != nil {
		return fmt.Errorf("locking user store: %w", err)
	}
	return nil
}

func (s *Store) unlockFile() {
	if err := s.fileLock.Unlock(); err != nil {
		s.log.WithError(err).Warn("Failed to release user store lock")
	}
}

// Close releases the file lock handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fileLock.Close()
}

// mutate reloads the document, runs fn on a copy of the record for userID
// and writes the document back when fn reports a change. A missing record is
// created only when create is set. On any error the in-memory state is left
// as it was before the call.
func (s *Store) mutate(userID string, create bool, fn func(*Record) (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lockFile(); err != nil {
		return err
	}
	defer s.unlockFile()

	records, err := s.readLocked()
	if err != nil {
		return err
	}

	var rec Record
	if cur, ok := records[userID]; ok {
		rec = cur.clone()
	} else if !create {
		s.records = records
		return fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}

	changed, err := fn(&rec)
	if err != nil {
		s.records = records
		return err
	}
	if !changed {
		s.records = records
		return nil
	}

	records[userID] = &rec
	if err := s.writeLocked(records); err != nil {
		return err
	}
	s.records = records
	return nil
}

// Authenticate checks password against the access secret and marks the user
// authenticated, creating the record on first success.
func (s *Store) Authenticate(userID, password string) error {
	if s.password == "" || password != s.password {
		return ErrWrongPassword
	}
	return s.mutate(userID, true, func(rec *Record) (bool, error) {
		if rec.Authenticated {
			return false, nil
		}
		rec.Authenticated = true
		return true, nil
	})
}

// Register stores the badge id and display name of an authenticated user.
// Existing settings are kept; missing ones are created with defaults.
func (s *Store) Register(userID, badgeID, displayName string) error {
	badgeID = strings.TrimSpace(badgeID)
	if !isNumeric(badgeID) {
		return fmt.Errorf("%w: %q", ErrInvalidBadgeID, badgeID)
	}
	return s.mutate(userID, false, func(rec *Record) (bool, error) {
		if !rec.Authenticated {
			return false, ErrNotAuthenticated
		}
		rec.BadgeID = badgeID
		rec.DisplayName = displayName
		if rec.Settings == nil {
			def := DefaultSettings()
			rec.Settings = &def
		}
		return true, nil
	})
}

// Record returns a copy of the user's record.
func (s *Store) Record(userID string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok {
		return Record{}, false
	}
	return rec.clone(), true
}

// IsAuthenticated reports whether the user entered the access password.
func (s *Store) IsAuthenticated(userID string) bool {
	rec, ok := s.Record(userID)
	return ok && rec.Authenticated
}

// IsRegistered reports whether the user completed registration.
func (s *Store) IsRegistered(userID string) bool {
	rec, ok := s.Record(userID)
	return ok && rec.Registered()
}

// BadgeID returns the user's badge id, or "" if none is registered.
func (s *Store) BadgeID(userID string) string {
	rec, _ := s.Record(userID)
	return rec.BadgeID
}

// Settings returns the user's settings, materializing defaults on first
// access. The defaults are persisted with the next save.
func (s *Store) Settings(userID string) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok {
		return Settings{}, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	if rec.Settings == nil {
		def := DefaultSettings()
		rec.Settings = &def
	}
	return rec.Settings.Clone(), nil
}

// ToggleSetting advances the named setting to its next value and persists.
func (s *Store) ToggleSetting(userID, name string) (Settings, error) {
	var out Settings
	err := s.mutate(userID, false, func(rec *Record) (bool, error) {
		if rec.Settings == nil {
			def := DefaultSettings()
			rec.Settings = &def
		}
		if _, err := rec.Settings.Cycle(name); err != nil {
			return false, err
		}
		out = rec.Settings.Clone()
		return true, nil
	})
	return out, err
}

// ResetSettings sets every setting to its default and persists.
func (s *Store) ResetSettings(userID string) (Settings, error) {
	var out Settings
	err := s.mutate(userID, false, func(rec *Record) (bool, error) {
		def := DefaultSettings()
		rec.Settings = &def
		out = def.Clone()
		return true, nil
	})
	return out, err
}

// AddWatch appends name to the watch list. Adding a name already present is
// a no-op. Reports whether the list changed.
func (s *Store) AddWatch(userID, name string) (bool, error) {
	name = NormalizeName(name)
	if name == "" {
		return false, ErrEmptyName
	}
	var added bool
	err := s.mutate(userID, false, func(rec *Record) (bool, error) {
		if rec.Watches(name) {
			return false, nil
		}
		rec.WatchedNames = append(rec.WatchedNames, name)
		added = true
		return true, nil
	})
	return added, err
}

// RemoveWatch drops name from the watch list. Removing an absent name is a
// no-op. Reports whether the list changed.
func (s *Store) RemoveWatch(userID, name string) (bool, error) {
	key := NormalizeName(name)
	if key == "" {
		return false, ErrEmptyName
	}
	var removed bool
	err := s.mutate(userID, false, func(rec *Record) (bool, error) {
		for i, w := range rec.WatchedNames {
			if NormalizeName(w) == key {
				rec.WatchedNames = append(rec.WatchedNames[:i], rec.WatchedNames[i+1:]...)
				removed = true
				return true, nil
			}
		}
		return false, nil
	})
	return removed, err
}

// Watched returns the user's watch list in insertion order.
func (s *Store) Watched(userID string) []string {
	rec, _ := s.Record(userID)
	return rec.WatchedNames
}

// UserIDs returns every known user id, sorted.
func (s *Store) UserIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Subscribers returns the sorted ids of registered users whose setting has
// one of the given values. Users without a settings block count as defaults.
func (s *Store) Subscribers(setting string, values ...string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for id, rec := range s.records {
		if !rec.Registered() {
			continue
		}
		current := DefaultSettings().Get(setting)
		if rec.Settings != nil {
			current = rec.Settings.Get(setting)
		}
		for _, v := range values {
			if current == v {
				ids = append(ids, id)
				break
			}
		}
	}
	sort.Strings(ids)
	return ids
}

// Dump returns the persisted document as stored on disk.
func (s *Store) Dump() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lockFile(); err != nil {
		return nil, err
	}
	defer s.unlockFile()

	data, err := os.ReadFile(s.path) //nolint:gosec // G304: path from trusted config
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading user store: %w", err)
	}
	return data, nil
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
