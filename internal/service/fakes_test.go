package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/caracolito/auth-service/internal/apperror"
	"github.com/caracolito/auth-service/internal/auth"
	"github.com/caracolito/auth-service/internal/model"
	"github.com/caracolito/auth-service/internal/repository"
)

// In-memory fakes for the service tests. They reproduce the repository
// contracts the services rely on: not-found errors wrap
// apperror.ErrNotFound, uniqueness violations return ErrDuplicate, and the
// consume paths delete the token row and the user mutation together.

type fakeUserRepo struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*model.User
	tokens *fakeTokenRepo // consume paths delete token rows

	failWith error // when set, every call fails with this
}

func newFakeUserRepo(tokens *fakeTokenRepo) *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int64]*model.User), tokens: tokens}
}

func (f *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	return f.insert(user)
}

func (f *fakeUserRepo) insert(user *model.User) error {
	for _, u := range f.users {
		if u.Email == user.Email {
			return repository.ErrDuplicate
		}
		if user.GoogleID != "" && u.GoogleID == user.GoogleID {
			return repository.ErrDuplicate
		}
	}
	f.nextID++
	user.ID = f.nextID
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	clone := *user
	f.users[user.ID] = &clone
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", "id")
	}
	clone := *u
	return &clone, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	for _, u := range f.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeUserRepo) GetByGoogleID(_ context.Context, googleID string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	for _, u := range f.users {
		if u.GoogleID != "" && u.GoogleID == googleID {
			clone := *u
			return &clone, nil
		}
	}
	return nil, apperror.NotFound("user", googleID)
}

func (f *fakeUserRepo) Update(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	if _, ok := f.users[user.ID]; !ok {
		return apperror.NotFound("user", "id")
	}
	user.UpdatedAt = time.Now().UTC()
	clone := *user
	f.users[user.ID] = &clone
	return nil
}

func (f *fakeUserRepo) CreateWithToken(_ context.Context, user *model.User, token *model.VerificationToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	if err := f.insert(user); err != nil {
		return err
	}
	token.UserID = user.ID
	return f.tokens.insert(token)
}

func (f *fakeUserRepo) Activate(_ context.Context, userID int64, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	if !f.tokens.remove(token) {
		return repository.ErrTokenConsumed
	}
	f.users[userID].IsActive = true
	return nil
}

func (f *fakeUserRepo) ResetPassword(_ context.Context, userID int64, passwordHash, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	if !f.tokens.remove(token) {
		return repository.ErrTokenConsumed
	}
	f.users[userID].PasswordHash = passwordHash
	return nil
}

type fakeTokenRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   map[string]*model.VerificationToken
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{rows: make(map[string]*model.VerificationToken)}
}

func (f *fakeTokenRepo) Create(_ context.Context, token *model.VerificationToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insert(token)
}

func (f *fakeTokenRepo) insert(token *model.VerificationToken) error {
	if _, ok := f.rows[token.Token]; ok {
		return repository.ErrDuplicate
	}
	f.nextID++
	token.ID = f.nextID
	token.CreatedAt = time.Now().UTC()
	clone := *token
	f.rows[token.Token] = &clone
	return nil
}

func (f *fakeTokenRepo) GetByToken(_ context.Context, token string) (*model.VerificationToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[token]
	if !ok {
		return nil, apperror.NotFound("verification token", token)
	}
	clone := *row
	return &clone, nil
}

func (f *fakeTokenRepo) DeleteByToken(_ context.Context, token string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.remove(token), nil
}

func (f *fakeTokenRepo) remove(token string) bool {
	if _, ok := f.rows[token]; !ok {
		return false
	}
	delete(f.rows, token)
	return true
}

type fakeMailer struct {
	mu          sync.Mutex
	activations []string // recipient emails
	resets      []string
	failWith    error
}

func (f *fakeMailer) SendActivation(to, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.activations = append(f.activations, to)
	return nil
}

func (f *fakeMailer) SendPasswordReset(to, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.resets = append(f.resets, to)
	return nil
}

type fakeGoogle struct {
	claims *auth.GoogleClaims
	err    error
}

func (f *fakeGoogle) ExchangeCode(context.Context, string) (*auth.GoogleClaims, error) {
	return f.claims, f.err
}

func (f *fakeGoogle) VerifyIDToken(context.Context, string) (*auth.GoogleClaims, error) {
	return f.claims, f.err
}

// testEnv bundles an AuthService with its fakes for inspection.
type testEnv struct {
	svc    *AuthService
	users  *fakeUserRepo
	tokens *fakeTokenRepo
	store  *VerificationStore
	mailer *fakeMailer
	google *fakeGoogle
	jwt    *auth.TokenService
	pw     *auth.PasswordService
}

const testSecret = "test-secret-test-secret-test-secret"

func newTestEnv() *testEnv {
	tokenRepo := newFakeTokenRepo()
	userRepo := newFakeUserRepo(tokenRepo)
	store := NewVerificationStore(tokenRepo)
	pw := auth.NewPasswordServiceForTest(4)
	jwt, err := auth.NewTokenService(testSecret, 30*time.Minute)
	if err != nil {
		panic(err)
	}
	mailer := &fakeMailer{}
	google := &fakeGoogle{}
	logger := slog.New(slog.DiscardHandler)

	svc := NewAuthService(userRepo, store, pw, jwt, google, mailer, logger, time.Hour)
	return &testEnv{
		svc:    svc,
		users:  userRepo,
		tokens: tokenRepo,
		store:  store,
		mailer: mailer,
		google: google,
		jwt:    jwt,
		pw:     pw,
	}
}
