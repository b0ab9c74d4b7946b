// Package app holds the application services and business logic.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"trimfit/internal/domain"
	"trimfit/internal/logutil"

	"github.com/google/uuid"
)

var (
	// ErrInvalidCredentials indicates that the login form did not validate.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrValidationFailed indicates that the registration form did not validate.
	ErrValidationFailed = errors.New("validation failed")
	// ErrUserNotFound indicates that no account exists for the email.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidPassword indicates that the password does not match.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrUserExists indicates that the email is already registered.
	ErrUserExists = errors.New("user already exists")
	// ErrSomethingWentWrong wraps store or hashing failures.
	ErrSomethingWentWrong = errors.New("something went wrong")
)

// MinPasswordLength is the shortest accepted password after trimming.
const MinPasswordLength = 4

// HomePath is where successful auth actions send the user.
const HomePath = "/"

var messages = map[error]string{
	ErrInvalidCredentials: "Invalid credentials",
	ErrValidationFailed:   "Validation failed",
	ErrUserNotFound:       "User not found",
	ErrInvalidPassword:    "Invalid Password",
	ErrUserExists:         "User already exists, try a different email",
	ErrSomethingWentWrong: "Something went wrong",
}

// Message returns the text shown to users for an auth sentinel error.
func Message(err error) string {
	for sentinel, msg := range messages {
		if errors.Is(err, sentinel) {
			return msg
		}
	}
	return messages[ErrSomethingWentWrong]
}

// ResultKind discriminates Result.
type ResultKind int

const (
	// ResultError carries a form error to render.
	ResultError ResultKind = iota
	// ResultRedirect means the action succeeded and the caller should
	// start a session for UserID and navigate to To.
	ResultRedirect
)

// Result is the outcome of an auth action. Actions never write cookies or
// redirect themselves.
type Result struct {
	Kind   ResultKind
	To     string
	UserID string

	Err     error
	Cause   error
	Details map[string][]string
}

// FormState is what the sign-in and sign-up forms render after a failed submit.
type FormState struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func redirect(userID string) Result {
	return Result{Kind: ResultRedirect, To: HomePath, UserID: userID}
}

func failure(err error) Result {
	return Result{Kind: ResultError, Err: err}
}

// OK reports whether the action succeeded.
func (r Result) OK() bool { return r.Kind == ResultRedirect }

// FormState converts an error result for rendering. Infrastructure causes are
// only included when showCause is set.
func (r Result) FormState(showCause bool) *FormState {
	if r.OK() {
		return nil
	}
	fs := &FormState{Error: Message(r.Err)}
	switch {
	case len(r.Details) > 0:
		fs.Details = r.Details
	case showCause && r.Cause != nil:
		fs.Details = r.Cause.Error()
	}
	return fs
}

// LoginInput is the submitted sign-in form.
type LoginInput struct {
	Email    string
	Password string
}

// RegisterInput is the submitted sign-up form.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// AuthService implements the sign-in and sign-up actions.
type AuthService struct {
	users  domain.UserRepository
	hasher PasswordHasher
	newID  func() string
}

// NewAuthService creates a new authentication service.
func NewAuthService(users domain.UserRepository, hasher PasswordHasher) *AuthService {
	return &AuthService{
		users:  users,
		hasher: hasher,
		newID:  uuid.NewString,
	}
}

// Login checks credentials and returns a redirect result for the matching user.
func (s *AuthService) Login(ctx context.Context, in LoginInput) Result {
	email := strings.TrimSpace(in.Email)
	password := strings.TrimSpace(in.Password)
	if len(validateCredentials(email, password)) > 0 {
		return failure(ErrInvalidCredentials)
	}

	log := logutil.GetOrDefault(ctx)
	user, err := s.users.GetByEmail(ctx, domain.NormalizeEmail(email))
	if errors.Is(err, domain.ErrNotFound) {
		return failure(ErrUserNotFound)
	}
	if err != nil {
		log.Error().Err(err).Msg("login: user lookup failed")
		return s.infra(err)
	}

	ok, err := s.hasher.Compare(user.PasswordHash, password)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("login: password check failed")
		return s.infra(err)
	}
	if !ok {
		return failure(ErrInvalidPassword)
	}

	log.Info().Str("user_id", user.ID).Msg("user signed in")
	return redirect(user.ID)
}

// Register creates an account and returns a redirect result for it.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) Result {
	email := strings.TrimSpace(in.Email)
	password := strings.TrimSpace(in.Password)
	if details := validateCredentials(email, password); len(details) > 0 {
		return Result{Kind: ResultError, Err: ErrValidationFailed, Details: details}
	}

	log := logutil.GetOrDefault(ctx)
	email = domain.NormalizeEmail(email)

	_, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return failure(ErrUserExists)
	case !errors.Is(err, domain.ErrNotFound):
		log.Error().Err(err).Msg("register: user lookup failed")
		return s.infra(err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		log.Error().Err(err).Msg("register: hashing failed")
		return s.infra(err)
	}

	user, err := s.users.Create(ctx, &domain.User{
		ID:           s.newID(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
	})
	if errors.Is(err, domain.ErrConflict) {
		return failure(ErrUserExists)
	}
	if err != nil {
		log.Error().Err(err).Msg("register: create user failed")
		return s.infra(err)
	}

	log.Info().Str("user_id", user.ID).Msg("user registered")
	return redirect(user.ID)
}

// LoginWithEmail finds the user for an email verified by an identity
// provider, creating one without a password on first login.
func (s *AuthService) LoginWithEmail(ctx context.Context, email string) (*domain.User, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("lookup %s: %w", email, err)
	}

	user, err = s.users.Create(ctx, &domain.User{ID: s.newID(), Email: email})
	if errors.Is(err, domain.ErrConflict) {
		// Lost a race with a concurrent first login.
		return s.users.GetByEmail(ctx, email)
	}
	if err != nil {
		return nil, fmt.Errorf("provision %s: %w", email, err)
	}
	log := logutil.GetOrDefault(ctx)
	log.Info().Str("user_id", user.ID).Msg("user provisioned via sso")
	return user, nil
}

// User returns the account for id.
func (s *AuthService) User(ctx context.Context, id string) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *AuthService) infra(err error) Result {
	return Result{Kind: ResultError, Err: ErrSomethingWentWrong, Cause: err}
}

func validateCredentials(email, password string) map[string][]string {
	details := map[string][]string{}
	if !validEmail(email) {
		details["email"] = append(details["email"], "Invalid email address")
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		details["password"] = append(details["password"],
			fmt.Sprintf("Password must be at least %d characters", MinPasswordLength))
	}
	return details
}

func validEmail(email string) bool {
	if email == "" || strings.ContainsAny(email, " \t\r\n") {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	at := strings.LastIndex(email, "@")
	return at > 0 && strings.Contains(email[at+1:], ".")
}
