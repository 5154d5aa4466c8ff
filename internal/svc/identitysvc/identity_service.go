package identitysvc

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mkrupp/storefront/internal/domain"
	"github.com/mkrupp/storefront/internal/infra/logging"
	"github.com/mkrupp/storefront/internal/repo/kv"
)

// Persisted keys owned by the identity service.
const (
	UsersKey   = "storefront:users:v1"
	SessionKey = "storefront:session:v1"
)

// IdentityService registers and authenticates users and tracks the single
// active session identity.
type IdentityService struct {
	Config IdentityConfig
	Store  *kv.Adapter
	Log    logging.Logger
	Now    func() time.Time

	m sync.Mutex
}

// NewIdentityService creates a new IdentityService.
func NewIdentityService(store *kv.Adapter, cfg IdentityConfig) *IdentityService {
	return &IdentityService{
		Config: cfg,
		Store:  store,
		Log:    logging.GetLogger("svc.identitysvc.identity_service"),
		Now:    time.Now,
	}
}

// Register creates a user account and makes it the active session.
// An empty name defaults to the local part of the email.
// Returns ErrUserAlreadyExists if the email is taken.
func (s *IdentityService) Register(ctx context.Context, name, email, password string) (_ domain.User, err error) {
	email = strings.TrimSpace(email)
	log := s.Log.With(logging.Group("user", "email", email))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "register user failed", "error", err)
		} else {
			log.InfoContext(ctx, "user registered")
		}
	}()

	switch {
	case email == "":
		return domain.User{}, domain.ValidationError{Field: "email", Reason: "must not be empty"}
	case password == "":
		return domain.User{}, domain.ValidationError{Field: "password", Reason: "must not be empty"}
	}

	if name = strings.TrimSpace(name); name == "" {
		name = localPart(email)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.Config.cost())
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	s.m.Lock()
	defer s.m.Unlock()

	users, err := s.users(ctx)
	if err != nil {
		return domain.User{}, err
	}

	if findByEmail(users, email) >= 0 {
		return domain.User{}, domain.ErrUserAlreadyExists
	}

	user := domain.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         domain.RoleUser,
		CreatedAt:    s.Now().UnixMilli(),
	}

	s.Store.Set(ctx, UsersKey, append(users, user))
	s.Store.Set(ctx, SessionKey, user.ID)

	return user, nil
}

// Login authenticates a user by email and password and makes it the active session.
// Returns a NotFoundError for unknown emails and ErrInvalidCredentials for wrong passwords.
func (s *IdentityService) Login(ctx context.Context, email, password string) (_ domain.User, err error) {
	log := s.Log.With(logging.Group("user", "email", email))

	defer func() {
		if err != nil {
			log.WarnContext(ctx, "login failed", "error", err)
		} else {
			log.InfoContext(ctx, "login successful")
		}
	}()

	s.m.Lock()
	users, err := s.users(ctx)
	s.m.Unlock()

	if err != nil {
		return domain.User{}, err
	}

	i := findByEmail(users, email)
	if i < 0 {
		return domain.User{}, domain.NotFoundError{Entity: "account", ID: strings.TrimSpace(email)}
	}

	user := users[i]

	// bcrypt runs outside the lock
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return domain.User{}, domain.ErrInvalidCredentials
		}

		return domain.User{}, errors.Join(domain.ErrInvalidCredentials, err)
	}

	s.m.Lock()
	defer s.m.Unlock()

	s.Store.Set(ctx, SessionKey, user.ID)

	return user, nil
}

// Logout ends the active session. Logging out without a session is a no-op.
func (s *IdentityService) Logout(ctx context.Context) {
	s.m.Lock()
	defer s.m.Unlock()

	s.Store.Remove(ctx, SessionKey)

	s.Log.DebugContext(ctx, "logged out")
}

// Current resolves the active session. A missing session or one pointing at
// a user that no longer exists yields the guest session and a nil user, as
// does a user list the store failed to read.
func (s *IdentityService) Current(ctx context.Context) (domain.Session, *domain.User) {
	s.m.Lock()
	defer s.m.Unlock()

	id := kv.Load(ctx, s.Store, SessionKey, "").Value
	if id == "" {
		return domain.GuestSession, nil
	}

	users, err := s.users(ctx)
	if err != nil {
		s.Log.WarnContext(ctx, "resolve session failed", "error", err)

		return domain.GuestSession, nil
	}

	if i := slices.IndexFunc(users, func(u domain.User) bool { return u.ID == id }); i >= 0 {
		return domain.Session{UserID: id}, &users[i]
	}

	return domain.GuestSession, nil
}

// User returns the user with the given id.
func (s *IdentityService) User(ctx context.Context, id string) (domain.User, error) {
	s.m.Lock()
	defer s.m.Unlock()

	users, err := s.users(ctx)
	if err != nil {
		return domain.User{}, err
	}

	if i := slices.IndexFunc(users, func(u domain.User) bool { return u.ID == id }); i >= 0 {
		return users[i], nil
	}

	return domain.User{}, domain.NotFoundError{Entity: "user", ID: id}
}

// RequireAdmin returns the session's user if it is an admin.
// Returns ErrAdminRequired for guests, unknown users and non-admins.
func (s *IdentityService) RequireAdmin(ctx context.Context, session domain.Session) (domain.User, error) {
	if session.IsGuest() {
		return domain.User{}, domain.ErrAdminRequired
	}

	user, err := s.User(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, domain.ErrAdminRequired
		}

		return domain.User{}, err
	}

	if !user.IsAdmin() {
		return domain.User{}, domain.ErrAdminRequired
	}

	return user, nil
}

// SeedAdmin ensures the configured admin account exists. An existing account
// with the admin email is left untouched.
func (s *IdentityService) SeedAdmin(ctx context.Context) (err error) {
	admin := s.Config.Admin
	log := s.Log.With(logging.Group("user", "id", admin.ID, "email", admin.Email))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "seed admin failed", "error", err)
		}
	}()

	s.m.Lock()
	defer s.m.Unlock()

	users, err := s.users(ctx)
	if err != nil {
		return err
	}

	if findByEmail(users, admin.Email) >= 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(admin.Password), s.Config.cost())
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	s.Store.Set(ctx, UsersKey, append(users, domain.User{
		ID:           admin.ID,
		Name:         admin.Name,
		Email:        admin.Email,
		PasswordHash: string(hash),
		Role:         domain.RoleAdmin,
		CreatedAt:    s.Now().UnixMilli(),
	}))

	log.InfoContext(ctx, "admin seeded")

	return nil
}

// users reads the account list. A corrupt list reads as empty; a store fault
// is returned so that callers never write a list derived from nothing.
func (s *IdentityService) users(ctx context.Context) ([]domain.User, error) {
	res := kv.Load(ctx, s.Store, UsersKey, []domain.User{})
	if err := res.Fault(); err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}

	return res.Value, nil
}

func findByEmail(users []domain.User, email string) int {
	email = NormalizeEmail(email)

	return slices.IndexFunc(users, func(u domain.User) bool {
		return NormalizeEmail(u.Email) == email
	})
}
