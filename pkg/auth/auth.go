package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrPermissionDenied   = errors.New("permission denied")
)

const (
	saltLength     = 16
	iterationCount = 4096
	keyLength      = 32
)

// User is a database account: a username, a PBKDF2-derived credential, and
// a role.
type User struct {
	Username     string
	Salt         []byte
	StoredKey    []byte
	Role         Role
	CreatedAt    time.Time
	LastModified time.Time
}

// Manager owns the account store for one navdb process. It has no
// knowledge of query.Operation or database.Database; the capability
// question pkg/engine asks before dispatch is answered by Guard and
// HasCapability, not by Manager.
type Manager struct {
	mu    sync.RWMutex
	users map[string]*User
}

// NewManager returns a Manager seeded with a default admin account
// (username "admin", password "admin" — callers should rotate it before
// exposing the server beyond localhost).
func NewManager() *Manager {
	m := &Manager{users: make(map[string]*User)}
	_ = m.CreateUser("admin", "admin", RoleAdmin)
	return m
}

// CreateUser registers a new account.
func (m *Manager) CreateUser(username, password string, role Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.users[username]; exists {
		return ErrUserExists
	}
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}
	m.users[username] = &User{
		Username:     username,
		Salt:         salt,
		StoredKey:    derive(password, salt),
		Role:         role,
		CreatedAt:    time.Now(),
		LastModified: time.Now(),
	}
	return nil
}

// DeleteUser removes an account.
func (m *Manager) DeleteUser(username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[username]; !exists {
		return ErrUserNotFound
	}
	delete(m.users, username)
	return nil
}

// UpdateUserRole changes an account's role.
func (m *Manager) UpdateUserRole(username string, role Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, exists := m.users[username]
	if !exists {
		return ErrUserNotFound
	}
	u.Role = role
	u.LastModified = time.Now()
	return nil
}

// Authenticate verifies a password and returns the account's role.
func (m *Manager) Authenticate(username, password string) (Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, exists := m.users[username]
	if !exists {
		return "", ErrInvalidCredentials
	}
	if !hmac.Equal(derive(password, u.Salt), u.StoredKey) {
		return "", ErrInvalidCredentials
	}
	return u.Role, nil
}

func derive(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, iterationCount, keyLength, sha256.New)
}

// Principal identifies the caller of an operation for capability checks.
type Principal struct {
	Username string
	Role     Role
}

// Guard denies an operation before dispatch when the principal's role
// lacks the capability the operation requires.
type Guard struct {
	manager *Manager
}

// NewGuard builds a Guard backed by manager.
func NewGuard(manager *Manager) *Guard {
	return &Guard{manager: manager}
}

// Check returns ErrPermissionDenied if principal's role does not grant
// capability.
func (g *Guard) Check(principal Principal, capability Capability) error {
	if HasCapability(principal.Role, capability) {
		return nil
	}
	return ErrPermissionDenied
}
