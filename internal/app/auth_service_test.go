package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"trimfit/internal/domain"

	"golang.org/x/crypto/bcrypt"
)

type mockUserRepo struct {
	getByEmailFn func(ctx context.Context, email string) (*domain.User, error)
	getByIDFn    func(ctx context.Context, id string) (*domain.User, error)
	createFn     func(ctx context.Context, u *domain.User) (*domain.User, error)
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if m.getByEmailFn != nil {
		return m.getByEmailFn(ctx, email)
	}
	return nil, domain.ErrNotFound
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockUserRepo) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	if m.createFn != nil {
		return m.createFn(ctx, u)
	}
	return u, nil
}

type failingHasher struct{ err error }

func (f failingHasher) Hash(string) (string, error)          { return "", f.err }
func (f failingHasher) Compare(string, string) (bool, error) { return false, f.err }

func testHasher() BcryptHasher {
	return BcryptHasher{Cost: bcrypt.MinCost}
}

func userWithPassword(t *testing.T, email, password string) *domain.User {
	t.Helper()
	hash, err := testHasher().Hash(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return &domain.User{ID: "u-1", Email: email, PasswordHash: hash}
}

func TestAuthService_Login_Success(t *testing.T) {
	ctx := context.Background()
	user := userWithPassword(t, "ada@example.com", "testpass123")

	var lookedUp string
	users := &mockUserRepo{
		getByEmailFn: func(ctx context.Context, email string) (*domain.User, error) {
			lookedUp = email
			return user, nil
		},
	}

	svc := NewAuthService(users, testHasher())
	res := svc.Login(ctx, LoginInput{Email: "  Ada@Example.com ", Password: " testpass123 "})

	if !res.OK() {
		t.Fatalf("expected redirect, got error %v", res.Err)
	}
	if res.To != "/" {
		t.Errorf("expected redirect to /, got %q", res.To)
	}
	if res.UserID != "u-1" {
		t.Errorf("expected user id u-1, got %q", res.UserID)
	}
	if lookedUp != "ada@example.com" {
		t.Errorf("expected normalized lookup, got %q", lookedUp)
	}
	if res.FormState(true) != nil {
		t.Error("successful result should have no form state")
	}
}

func TestAuthService_Login_InvalidPassword(t *testing.T) {
	ctx := context.Background()
	user := userWithPassword(t, "ada@example.com", "correctpass")

	users := &mockUserRepo{
		getByEmailFn: func(ctx context.Context, email string) (*domain.User, error) {
			return user, nil
		},
	}
	svc := NewAuthService(users, testHasher())

	res := svc.Login(ctx, LoginInput{Email: "ada@example.com", Password: "wrongpass"})
	if res.OK() {
		t.Fatal("expected failure")
	}
	if !errors.Is(res.Err, ErrInvalidPassword) {
		t.Errorf("expected ErrInvalidPassword, got %v", res.Err)
	}
	if res.UserID != "" {
		t.Error("failed login must not carry a user id")
	}
	if got := res.FormState(false).Error; got != "Invalid Password" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestAuthService_Login_UnknownUser(t *testing.T) {
	svc := NewAuthService(&mockUserRepo{}, testHasher())

	res := svc.Login(context.Background(), LoginInput{Email: "nobody@example.com", Password: "whatever"})
	if !errors.Is(res.Err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", res.Err)
	}
	if got := res.FormState(false).Error; got != "User not found" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestAuthService_Login_ValidationIsGeneric(t *testing.T) {
	called := false
	users := &mockUserRepo{
		getByEmailFn: func(ctx context.Context, email string) (*domain.User, error) {
			called = true
			return nil, domain.ErrNotFound
		},
	}
	svc := NewAuthService(users, testHasher())

	cases := []LoginInput{
		{Email: "not-an-email", Password: "longenough"},
		{Email: "ada@example.com", Password: "abc"},
		{Email: "ada@example.com", Password: "   ab   "},
		{Email: "", Password: ""},
	}
	for _, in := range cases {
		res := svc.Login(context.Background(), in)
		if !errors.Is(res.Err, ErrInvalidCredentials) {
			t.Errorf("%+v: expected ErrInvalidCredentials, got %v", in, res.Err)
		}
		fs := res.FormState(true)
		if fs.Error != "Invalid credentials" || fs.Details != nil {
			t.Errorf("%+v: unexpected form state %+v", in, fs)
		}
	}
	if called {
		t.Error("store must not be queried for invalid input")
	}
}

func TestAuthService_Login_StoreFailure(t *testing.T) {
	boom := errors.New("connection refused")
	users := &mockUserRepo{
		getByEmailFn: func(ctx context.Context, email string) (*domain.User, error) {
			return nil, boom
		},
	}
	svc := NewAuthService(users, testHasher())

	res := svc.Login(context.Background(), LoginInput{Email: "ada@example.com", Password: "secret"})
	if !errors.Is(res.Err, ErrSomethingWentWrong) {
		t.Fatalf("expected ErrSomethingWentWrong, got %v", res.Err)
	}
	if res.FormState(false).Details != nil {
		t.Error("cause must be hidden when showCause is false")
	}
	if got := res.FormState(true).Details; got != "connection refused" {
		t.Errorf("expected cause in details, got %v", got)
	}
}

func TestAuthService_Login_HasherFailure(t *testing.T) {
	users := &mockUserRepo{
		getByEmailFn: func(ctx context.Context, email string) (*domain.User, error) {
			return &domain.User{ID: "u-1", PasswordHash: "x"}, nil
		},
	}
	svc := NewAuthService(users, failingHasher{err: errors.New("bad hash")})

	res := svc.Login(context.Background(), LoginInput{Email: "ada@example.com", Password: "secret"})
	if !errors.Is(res.Err, ErrSomethingWentWrong) {
		t.Fatalf("expected ErrSomethingWentWrong, got %v", res.Err)
	}
}

func TestAuthService_Register_Success(t *testing.T) {
	ctx := context.Background()

	var created []*domain.User
	users := &mockUserRepo{
		createFn: func(ctx context.Context, u *domain.User) (*domain.User, error) {
			created = append(created, u)
			return u, nil
		},
	}
	svc := NewAuthService(users, testHasher())
	svc.newID = func() string { return "new-id" }

	res := svc.Register(ctx, RegisterInput{
		FirstName: " Ada ",
		Email:     "Ada@Example.com",
		Password:  "pass",
	})
	if !res.OK() {
		t.Fatalf("expected redirect, got %v", res.Err)
	}
	if res.UserID != "new-id" || res.To != "/" {
		t.Errorf("unexpected result %+v", res)
	}
	if len(created) != 1 {
		t.Fatalf("expected one user created, got %d", len(created))
	}
	u := created[0]
	if u.Email != "ada@example.com" {
		t.Errorf("expected normalized email, got %q", u.Email)
	}
	if u.FirstName != "Ada" || u.LastName != "" {
		t.Errorf("unexpected names %q %q", u.FirstName, u.LastName)
	}
	if u.PasswordHash == "pass" || !strings.HasPrefix(u.PasswordHash, "$2") {
		t.Errorf("password not hashed: %q", u.PasswordHash)
	}
	if ok, _ := testHasher().Compare(u.PasswordHash, "pass"); !ok {
		t.Error("stored hash does not verify")
	}
}

func TestAuthService_Register_Existing(t *testing.T) {
	createCalled := false
	users := &mockUserRepo{
		getByEmailFn: func(ctx context.Context, email string) (*domain.User, error) {
			return &domain.User{ID: "u-1", Email: email}, nil
		},
		createFn: func(ctx context.Context, u *domain.User) (*domain.User, error) {
			createCalled = true
			return u, nil
		},
	}
	svc := NewAuthService(users, testHasher())

	res := svc.Register(context.Background(), RegisterInput{Email: "ada@example.com", Password: "pass"})
	if !errors.Is(res.Err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", res.Err)
	}
	if got := res.FormState(false).Error; got != "User already exists, try a different email" {
		t.Errorf("unexpected message %q", got)
	}
	if createCalled {
		t.Error("duplicate registration must not create a record")
	}
}

func TestAuthService_Register_RaceReportsConflict(t *testing.T) {
	users := &mockUserRepo{
		createFn: func(ctx context.Context, u *domain.User) (*domain.User, error) {
			return nil, domain.ErrConflict
		},
	}
	svc := NewAuthService(users, testHasher())

	res := svc.Register(context.Background(), RegisterInput{Email: "ada@example.com", Password: "pass"})
	if !errors.Is(res.Err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", res.Err)
	}
}

func TestAuthService_Register_ValidationDetails(t *testing.T) {
	svc := NewAuthService(&mockUserRepo{}, testHasher())

	res := svc.Register(context.Background(), RegisterInput{Email: "bad", Password: "ab"})
	if !errors.Is(res.Err, ErrValidationFailed) {
		t.Fatalf("expected ErrValidationFailed, got %v", res.Err)
	}
	fs := res.FormState(false)
	if fs.Error != "Validation failed" {
		t.Errorf("unexpected message %q", fs.Error)
	}
	details, ok := fs.Details.(map[string][]string)
	if !ok {
		t.Fatalf("expected field details, got %T", fs.Details)
	}
	if len(details["email"]) == 0 || len(details["password"]) == 0 {
		t.Errorf("expected email and password errors, got %v", details)
	}
}

func TestAuthService_LoginWithEmail_ExistingUser(t *testing.T) {
	users := &mockUserRepo{
		getByEmailFn: func(ctx context.Context, email string) (*domain.User, error) {
			return &domain.User{ID: "u-1", Email: email}, nil
		},
	}
	svc := NewAuthService(users, testHasher())

	user, err := svc.LoginWithEmail(context.Background(), "SSO@Example.com")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if user.Email != "sso@example.com" {
		t.Errorf("expected normalized email, got %s", user.Email)
	}
}

func TestAuthService_LoginWithEmail_NewUser(t *testing.T) {
	users := &mockUserRepo{
		createFn: func(ctx context.Context, u *domain.User) (*domain.User, error) {
			if u.PasswordHash != "" {
				t.Errorf("sso users must not get a password hash")
			}
			return u, nil
		},
	}
	svc := NewAuthService(users, testHasher())
	svc.newID = func() string { return "sso-id" }

	user, err := svc.LoginWithEmail(context.Background(), "new@example.com")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if user.ID != "sso-id" {
		t.Errorf("expected id sso-id, got %s", user.ID)
	}
}

func TestAuthService_LoginWithEmail_Race(t *testing.T) {
	calls := 0
	users := &mockUserRepo{
		getByEmailFn: func(ctx context.Context, email string) (*domain.User, error) {
			calls++
			if calls == 1 {
				return nil, domain.ErrNotFound
			}
			return &domain.User{ID: "winner", Email: email}, nil
		},
		createFn: func(ctx context.Context, u *domain.User) (*domain.User, error) {
			return nil, domain.ErrConflict
		},
	}
	svc := NewAuthService(users, testHasher())

	user, err := svc.LoginWithEmail(context.Background(), "race@example.com")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if user.ID != "winner" {
		t.Errorf("expected existing user, got %s", user.ID)
	}
}

func TestAuthService_SSOUserCannotUsePassword(t *testing.T) {
	users := &mockUserRepo{
		getByEmailFn: func(ctx context.Context, email string) (*domain.User, error) {
			return &domain.User{ID: "u-1", Email: email}, nil
		},
	}
	svc := NewAuthService(users, testHasher())

	res := svc.Login(context.Background(), LoginInput{Email: "sso@example.com", Password: "anything"})
	if !errors.Is(res.Err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", res.Err)
	}
}
