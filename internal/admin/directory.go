// Package admin owns the operator accounts and the current session.
// Usernames are case-insensitive; secrets are bcrypt-hashed at rest.
// The distinguished "admin" account always exists and cannot be deleted.
package admin

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/premsagar786/printsmart/internal/store"
)

const reservedUsername = "admin"

// DefaultAdminPassword is the seeded secret for the built-in admin
// account on first start. Operators are expected to rotate it.
const DefaultAdminPassword = "admin"

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrAdminProtected     = errors.New("the admin account cannot be deleted")
	ErrSelfDelete         = errors.New("you cannot delete your own account")
	ErrSelfEdit           = errors.New("you cannot edit your own account here")
	ErrNotAuthenticated   = errors.New("not logged in")
)

type Account struct {
	Username   string `json:"username"`
	SecretHash string `json:"secret_hash"`
}

// Session identifies the single authenticated operator.
type Session struct {
	Username string `json:"username"`
}

// Directory is the credential store. At most one session is active at a
// time; the zero session (no operator logged in) is the customer-facing
// default, not an error state.
type Directory struct {
	mu       sync.Mutex
	accounts map[string]*Account // keyed by lowercased username
	session  string              // lowercased username, "" when logged out
	store    store.Store
}

func NewDirectory(st store.Store) *Directory {
	d := &Directory{
		accounts: make(map[string]*Account),
		store:    st,
	}
	d.load()
	return d
}

func (d *Directory) load() {
	blob, ok, err := d.store.Get(store.KeyAdminUsers)
	if err != nil {
		log.Printf("[admin] failed to load accounts, using defaults: %v", err)
	}
	if ok && err == nil {
		var accounts []*Account
		if err := json.Unmarshal(blob, &accounts); err != nil {
			log.Printf("[admin] corrupt account data, using defaults: %v", err)
		} else if len(accounts) > 0 {
			for _, a := range accounts {
				d.accounts[strings.ToLower(a.Username)] = a
			}
			if _, exists := d.accounts[reservedUsername]; exists {
				return
			}
		}
	}

	if _, exists := d.accounts[reservedUsername]; !exists {
		hash, err := bcrypt.GenerateFromPassword([]byte(DefaultAdminPassword), bcrypt.DefaultCost)
		if err != nil {
			log.Printf("[admin] failed to hash default password: %v", err)
			return
		}
		d.accounts[reservedUsername] = &Account{Username: reservedUsername, SecretHash: string(hash)}
		d.persist()
	}
}

// persist is best-effort: in-memory state is authoritative for the
// running process, a failed save is logged and not propagated.
func (d *Directory) persist() {
	accounts := make([]*Account, 0, len(d.accounts))
	for _, a := range d.accounts {
		accounts = append(accounts, a)
	}

	blob, err := json.Marshal(accounts)
	if err != nil {
		log.Printf("[admin] failed to marshal accounts: %v", err)
		return
	}
	if err := d.store.Set(store.KeyAdminUsers, blob); err != nil {
		log.Printf("[admin] failed to save accounts: %v", err)
	}
}

// Authenticate verifies the credential pair and, on success, makes the
// account the current session.
func (d *Directory) Authenticate(username, secret string) (Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	account, exists := d.accounts[strings.ToLower(username)]
	if !exists {
		return Session{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.SecretHash), []byte(secret)); err != nil {
		return Session{}, ErrInvalidCredentials
	}

	d.session = strings.ToLower(account.Username)
	return Session{Username: account.Username}, nil
}

func (d *Directory) Logout() {
	d.mu.Lock()
	d.session = ""
	d.mu.Unlock()
}

// Current returns the logged-in account, or ok=false in the
// unauthenticated customer-facing mode.
func (d *Directory) Current() (Session, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.session == "" {
		return Session{}, false
	}
	if account, exists := d.accounts[d.session]; exists {
		return Session{Username: account.Username}, true
	}
	return Session{}, false
}

// Resume restores a session from a previously issued token without
// re-checking the secret. Unknown usernames are rejected.
func (d *Directory) Resume(username string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := strings.ToLower(username)
	if _, exists := d.accounts[key]; !exists {
		return ErrUserNotFound
	}
	d.session = key
	return nil
}

func (d *Directory) CreateAccount(username, secret string) error {
	username = strings.TrimSpace(username)
	if username == "" || secret == "" {
		return fmt.Errorf("username and password cannot be empty")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	key := strings.ToLower(username)
	if _, exists := d.accounts[key]; exists {
		return ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	d.accounts[key] = &Account{Username: username, SecretHash: string(hash)}
	d.persist()
	return nil
}

func (d *Directory) DeleteAccount(username string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := strings.ToLower(username)
	if key == reservedUsername {
		return ErrAdminProtected
	}
	if key == d.session && d.session != "" {
		return ErrSelfDelete
	}
	if _, exists := d.accounts[key]; !exists {
		return ErrUserNotFound
	}

	delete(d.accounts, key)
	d.persist()
	return nil
}

// RotateSecret changes another account's password. The current session
// must use ChangeOwnSecret for itself; the distinction keeps an operator
// from silently cutting off their own access mid-session.
func (d *Directory) RotateSecret(username, newSecret string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := strings.ToLower(username)
	if key == d.session && d.session != "" {
		return ErrSelfEdit
	}

	account, exists := d.accounts[key]
	if !exists {
		return ErrUserNotFound
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newSecret), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	account.SecretHash = string(hash)
	d.persist()
	return nil
}

// ChangeOwnSecret is the "change my own password" path: it requires the
// current secret and only ever touches the session account.
func (d *Directory) ChangeOwnSecret(currentSecret, newSecret string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.session == "" {
		return ErrNotAuthenticated
	}

	account, exists := d.accounts[d.session]
	if !exists {
		return ErrUserNotFound
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.SecretHash), []byte(currentSecret)); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newSecret), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	account.SecretHash = string(hash)
	d.persist()
	return nil
}

// ListAccounts returns usernames only; secret hashes never leave the
// directory.
func (d *Directory) ListAccounts() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	names := make([]string, 0, len(d.accounts))
	for _, a := range d.accounts {
		names = append(names, a.Username)
	}
	sort.Strings(names)
	return names
}
