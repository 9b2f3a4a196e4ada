package service

import (
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/budgetwise/backend/internal/domain"
	"github.com/budgetwise/backend/internal/mail"
	"github.com/budgetwise/backend/internal/repository"
)

// In-memory stand-ins for the gorm repositories. They reproduce the exact
// matching semantics the SQL implementations have, including the guarded
// one-way verified flip.

type fakeUserRepo struct {
	mu     sync.Mutex
	nextID uint
	users  map[string]*domain.User
	roles  map[uint][]uint
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*domain.User{}, roles: map[uint][]uint{}}
}

func (r *fakeUserRepo) FindByEmail(email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[email]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *fakeUserRepo) ExistsByEmail(email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.users[email]
	return ok, nil
}

func (r *fakeUserRepo) Create(user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	user.ID = r.nextID
	copied := *user
	r.users[user.Email] = &copied
	return nil
}

func (r *fakeUserRepo) Update(user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *user
	r.users[user.Email] = &copied
	return nil
}

func (r *fakeUserRepo) UpdatePassword(email, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[email]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func (r *fakeUserRepo) AddRole(userID, roleID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roles[userID] = append(r.roles[userID], roleID)
	return nil
}

func (r *fakeUserRepo) rolesOf(userID uint) []uint {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint(nil), r.roles[userID]...)
}

type fakeRoleRepo struct {
	byName map[string]*domain.Role
}

func newFakeRoleRepo() *fakeRoleRepo {
	return &fakeRoleRepo{byName: map[string]*domain.Role{
		domain.RoleUser:  {ID: 1, Name: domain.RoleUser},
		domain.RoleAdmin: {ID: 2, Name: domain.RoleAdmin},
	}}
}

func (r *fakeRoleRepo) FindByName(name string) (*domain.Role, error) {
	role, ok := r.byName[name]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return role, nil
}

func (r *fakeRoleRepo) List() ([]domain.Role, error) {
	out := make([]domain.Role, 0, len(r.byName))
	for _, role := range r.byName {
		out = append(out, *role)
	}
	return out, nil
}

type fakeOTPRepo struct {
	mu     sync.Mutex
	nextID uint
	tokens []*domain.OTPToken
}

func newFakeOTPRepo() *fakeOTPRepo { return &fakeOTPRepo{} }

func (r *fakeOTPRepo) Create(token *domain.OTPToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	token.ID = r.nextID
	copied := *token
	r.tokens = append(r.tokens, &copied)
	return nil
}

func (r *fakeOTPRepo) FindValid(email, code string, purpose domain.OTPPurpose, now time.Time) (*domain.OTPToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.Email == email && t.Code == code && t.Purpose == purpose && !t.Verified && t.ExpiresAt.After(now) {
			copied := *t
			return &copied, nil
		}
	}
	return nil, repository.ErrOTPTokenNotFound
}

func (r *fakeOTPRepo) Consume(tokenID uint, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.ID == tokenID && !t.Verified {
			t.Verified = true
			t.UpdatedAt = now
			return nil
		}
	}
	return repository.ErrOTPTokenNotFound
}

func (r *fakeOTPRepo) FindVerified(email string, purpose domain.OTPPurpose) (*domain.OTPToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.Email == email && t.Purpose == purpose && t.Verified {
			copied := *t
			return &copied, nil
		}
	}
	return nil, repository.ErrOTPTokenNotFound
}

func (r *fakeOTPRepo) DeleteByEmailAndPurpose(email string, purpose domain.OTPPurpose) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.tokens[:0]
	for _, t := range r.tokens {
		if !(t.Email == email && t.Purpose == purpose) {
			kept = append(kept, t)
		}
	}
	r.tokens = kept
	return nil
}

func (r *fakeOTPRepo) count(email string, purpose domain.OTPPurpose) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.tokens {
		if t.Email == email && t.Purpose == purpose {
			n++
		}
	}
	return n
}

func (r *fakeOTPRepo) expire(email string, purpose domain.OTPPurpose) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.Email == email && t.Purpose == purpose {
			t.ExpiresAt = time.Now().Add(-time.Minute)
		}
	}
}

// captureDispatcher records queued mail synchronously.
type captureDispatcher struct {
	mu   sync.Mutex
	sent []mail.OTPMessage
}

func (d *captureDispatcher) Enqueue(msg mail.OTPMessage) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, msg)
}

func (d *captureDispatcher) last() (mail.OTPMessage, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.sent) == 0 {
		return mail.OTPMessage{}, false
	}
	return d.sent[len(d.sent)-1], true
}

func (d *captureDispatcher) len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}
