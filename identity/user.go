package identity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

var (
	// ErrUserNotFound is returned by Users lookups that match nothing.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserDisabled is returned by ClaimsResolver for an account that may
	// no longer sign in.
	ErrUserDisabled = errors.New("user disabled")
	// ErrUserExists is returned when a user name or e-mail is already taken.
	ErrUserExists = errors.New("user already exists")
	// ErrUnavailable wraps failures of the user or lockout backends.
	ErrUnavailable = errors.New("identity backend unavailable")
)

// User is an account as stored by a Users repository.
type User struct {
	ID           string
	UserName     string
	Email        string
	PasswordHash string
	Disabled     bool
	CreatedAt    time.Time
}

// Users looks accounts up. Name and e-mail matching is case-insensitive.
type Users interface {
	FindByUserName(ctx context.Context, userName string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	FindByID(ctx context.Context, id string) (User, error)
}

// MemoryUsers is an in-process Users repository.
type MemoryUsers struct {
	mu      sync.RWMutex
	byID    map[string]User
	byName  map[string]string
	byEmail map[string]string
}

func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{
		byID:    make(map[string]User),
		byName:  make(map[string]string),
		byEmail: make(map[string]string),
	}
}

// Add stores u. ID and UserName are required.
func (m *MemoryUsers) Add(u User) error {
	if u.ID == "" || u.UserName == "" {
		return errors.New("user id and user name are required")
	}

	name := normalize(u.UserName)
	email := normalize(u.Email)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[u.ID]; ok {
		return ErrUserExists
	}
	if _, ok := m.byName[name]; ok {
		return ErrUserExists
	}
	if email != "" {
		if _, ok := m.byEmail[email]; ok {
			return ErrUserExists
		}
		m.byEmail[email] = u.ID
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	m.byName[name] = u.ID
	m.byID[u.ID] = u
	return nil
}

func (m *MemoryUsers) FindByUserName(_ context.Context, userName string) (User, error) {
	return m.findVia(m.byName, userName)
}

func (m *MemoryUsers) FindByEmail(_ context.Context, email string) (User, error) {
	return m.findVia(m.byEmail, email)
}

func (m *MemoryUsers) FindByID(_ context.Context, id string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.byID[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (m *MemoryUsers) findVia(index map[string]string, key string) (User, error) {
	key = normalize(key)
	if key == "" {
		return User{}, ErrUserNotFound
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := index[key]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return m.byID[id], nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
