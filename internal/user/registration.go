package user

import (
	"errors"
	"sync"
)

// RegistrationState is a step of the registration conversation.
type RegistrationState int

const (
	StateUnauthenticated RegistrationState = iota
	StateAwaitingPassword
	StateAwaitingBadgeID
	StateComplete
)

func (s RegistrationState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAwaitingPassword:
		return "awaiting_password"
	case StateAwaitingBadgeID:
		return "awaiting_badge_id"
	case StateComplete:
		return "complete"
	}
	return "unknown"
}

// ErrNoConversation indicates Submit was called while no input is expected.
var ErrNoConversation = errors.New("no registration in progress")

// Registrations drives the per-user registration conversation:
// unauthenticated -> awaiting_password -> awaiting_badge_id -> complete.
// The awaiting states live in memory only; the endpoints are derived from
// the store.
type Registrations struct {
	mu      sync.Mutex
	store   *Store
	pending map[string]RegistrationState
}

// NewRegistrations creates a conversation tracker over store.
func NewRegistrations(store *Store) *Registrations {
	return &Registrations{
		store:   store,
		pending: make(map[string]RegistrationState),
	}
}

// State returns where the user currently is in the conversation.
func (r *Registrations) State(userID string) RegistrationState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateLocked(userID)
}

func (r *Registrations) stateLocked(userID string) RegistrationState {
	if st, ok := r.pending[userID]; ok {
		return st
	}
	if r.store.IsRegistered(userID) {
		return StateComplete
	}
	return StateUnauthenticated
}

// Pending reports whether the next plain-text message from the user is
// registration input.
func (r *Registrations) Pending(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pending[userID]
	return ok
}

// Start begins (or restarts) registration. Authenticated users skip the
// password and are asked for their badge id again.
func (r *Registrations) Start(userID string) RegistrationState {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := StateAwaitingPassword
	if r.store.IsAuthenticated(userID) {
		next = StateAwaitingBadgeID
	}
	r.pending[userID] = next
	return next
}

// Submit feeds one message of user input into the conversation and returns
// the resulting state.
//
// A wrong password ends the conversation (ErrWrongPassword). A non-numeric
// badge id keeps the user at awaiting_badge_id (ErrInvalidBadgeID).
func (r *Registrations) Submit(userID, displayName, input string) (RegistrationState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.pending[userID]
	if !ok {
		return r.stateLocked(userID), ErrNoConversation
	}

	switch st {
	case StateAwaitingPassword:
		if err := r.store.Authenticate(userID, input); err != nil {
			delete(r.pending, userID)
			return StateUnauthenticated, err
		}
		r.pending[userID] = StateAwaitingBadgeID
		return StateAwaitingBadgeID, nil

	case StateAwaitingBadgeID:
		if err := r.store.Register(userID, input, displayName); err != nil {
			if errors.Is(err, ErrInvalidBadgeID) {
				return StateAwaitingBadgeID, err
			}
			delete(r.pending, userID)
			return r.stateLocked(userID), err
		}
		delete(r.pending, userID)
		return StateComplete, nil
	}

	delete(r.pending, userID)
	return r.stateLocked(userID), ErrNoConversation
}

// Cancel drops any in-progress conversation for the user.
func (r *Registrations) Cancel(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, userID)
}
