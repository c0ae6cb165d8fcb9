package library

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Capability is an operation a role may be allowed to perform.
type Capability int

const (
	CapBrowse Capability = iota
	CapBorrow
	CapReturn
	CapJoinClub
	CapViewStats
	CapCreateBook
	CapCreateClub
	CapManageUsers
)

var capabilityNames = map[Capability]string{
	CapBrowse:      "browse",
	CapBorrow:      "borrow",
	CapReturn:      "return",
	CapJoinClub:    "join club",
	CapViewStats:   "view stats",
	CapCreateBook:  "create book",
	CapCreateClub:  "create club",
	CapManageUsers: "manage users",
}

func (c Capability) String() string { return capabilityNames[c] }

var memberCapabilities = []Capability{CapBrowse, CapBorrow, CapReturn, CapJoinClub, CapViewStats}

// roleCapabilities is the whole authorization policy. Librarians hold a
// superset of member capabilities.
var roleCapabilities = map[Role]map[Capability]bool{
	RoleMember:    capabilitySet(memberCapabilities...),
	RoleLibrarian: capabilitySet(append(memberCapabilities, CapCreateBook, CapCreateClub, CapManageUsers)...),
}

func capabilitySet(caps ...Capability) map[Capability]bool {
	set := make(map[Capability]bool, len(caps))
	for _, c := range caps {
		set[c] = true
	}
	return set
}

// Allowed reports whether role grants c.
func Allowed(role Role, c Capability) bool {
	return roleCapabilities[role][c]
}

// Authenticator verifies credentials against the store.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*User, error)
}

// SessionOptions tunes login throttling.
type SessionOptions struct {
	// LoginEvery is the interval at which a login attempt is refilled.
	LoginEvery time.Duration
	// LoginBurst is how many attempts may be made back to back.
	LoginBurst int
	Logger     *slog.Logger
}

// Session holds at most one authenticated user for the life of the process.
// Nothing is persisted; a new process must log in again.
type Session struct {
	auth    Authenticator
	limiter *rate.Limiter
	log     *slog.Logger

	mu   sync.Mutex
	user *User
	id   string
}

// NewSession returns an empty session that authenticates through auth.
func NewSession(auth Authenticator, opts SessionOptions) *Session {
	if opts.LoginEvery <= 0 {
		opts.LoginEvery = 12 * time.Second
	}
	if opts.LoginBurst <= 0 {
		opts.LoginBurst = 5
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Session{
		auth:    auth,
		limiter: rate.NewLimiter(rate.Every(opts.LoginEvery), opts.LoginBurst),
		log:     opts.Logger,
	}
}

// Login authenticates and, on success, replaces the held identity. A failed
// attempt leaves the current identity untouched.
func (s *Session) Login(ctx context.Context, username, password string) (*User, error) {
	if !s.limiter.Allow() {
		s.log.Warn("login throttled", "username", username)
		return nil, ErrTooManyAttempts
	}

	user, err := s.auth.Authenticate(ctx, username, password)
	if err != nil {
		s.log.Warn("login failed", "username", username, "error", err)
		return nil, err
	}

	id := uuid.NewString()
	s.mu.Lock()
	s.user = user
	s.id = id
	s.mu.Unlock()

	s.log.Info("logged in", "session", id, "user_id", user.ID, "role", user.Role.String())
	return user, nil
}

// Logout discards the held identity.
func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user != nil {
		s.log.Info("logged out", "session", s.id, "user_id", s.user.ID)
	}
	s.user = nil
	s.id = ""
}

// Current returns the logged-in user.
func (s *Session) Current() (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil, ErrNotAuthenticated
	}
	return s.user, nil
}

// ID identifies the current login in logs. It is empty when logged out.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Require returns the current user if its role grants c.
func (s *Session) Require(c Capability) (*User, error) {
	user, err := s.Current()
	if err != nil {
		return nil, err
	}
	if !Allowed(user.Role, c) {
		return nil, ErrForbidden
	}
	return user, nil
}
