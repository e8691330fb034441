package service

import (
	"context"
	"sync"
	"time"

	"dealboard/internal/captcha"
	"dealboard/internal/model"
)

// In-memory stand-ins for the repository layer. They implement only the
// interfaces the services consume and keep everything behind one mutex so
// tests can assert on state directly.

type fakeTokenStore struct {
	mu   sync.Mutex
	rows map[string]model.RefreshTokenRecord // keyed by record ID
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{rows: map[string]model.RefreshTokenRecord{}}
}

func (f *fakeTokenStore) Store(_ context.Context, rec model.RefreshTokenRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[rec.ID] = rec
	return nil
}

func (f *fakeTokenStore) FindByHash(_ context.Context, tokenHash string) (model.RefreshTokenRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.rows {
		if rec.TokenHash == tokenHash {
			return rec, nil
		}
	}
	return model.RefreshTokenRecord{}, model.ErrTokenNotFound
}

func (f *fakeTokenStore) Rotate(_ context.Context, oldID string, replacement model.RefreshTokenRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	old, ok := f.rows[oldID]
	if !ok || old.Revoked {
		return model.ErrTokenRevoked
	}
	old.Revoked = true
	now := time.Now().UTC()
	old.LastUsedAt = &now
	f.rows[oldID] = old
	f.rows[replacement.ID] = replacement
	return nil
}

func (f *fakeTokenStore) Revoke(_ context.Context, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, rec := range f.rows {
		if rec.TokenHash == tokenHash {
			rec.Revoked = true
			f.rows[id] = rec
		}
	}
	return nil
}

func (f *fakeTokenStore) RevokeAllForUser(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, rec := range f.rows {
		if rec.UserID == userID {
			rec.Revoked = true
			f.rows[id] = rec
		}
	}
	return nil
}

func (f *fakeTokenStore) CleanExpired(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var removed int64
	now := time.Now().UTC()
	for id, rec := range f.rows {
		if rec.Revoked || now.After(rec.ExpiresAt) {
			delete(f.rows, id)
			removed++
		}
	}
	return removed, nil
}

func (f *fakeTokenStore) activeCountFor(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, rec := range f.rows {
		if rec.UserID == userID && !rec.Revoked {
			n++
		}
	}
	return n
}

type fakeUserStore struct {
	mu      sync.Mutex
	users   map[string]model.User // keyed by ID
	history map[string][]string   // newest first
	failErr error
}

func newFakeUserStore(users ...model.User) *fakeUserStore {
	f := &fakeUserStore{users: map[string]model.User{}, history: map[string][]string{}}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUserStore) FindByID(_ context.Context, id string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUserStore) FindByEmail(_ context.Context, email string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

func (f *fakeUserStore) Create(_ context.Context, u model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.ID] = u
	return nil
}

func (f *fakeUserStore) RecordLoginFailure(_ context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return 0, f.failErr
	}
	u := f.users[userID]
	u.FailedLoginAttempts++
	f.users[userID] = u
	return u.FailedLoginAttempts, nil
}

func (f *fakeUserStore) LockAccount(_ context.Context, userID string, until time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.users[userID]
	u.LockedUntil = &until
	f.users[userID] = u
	return nil
}

func (f *fakeUserStore) ResetLockout(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.users[userID]
	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
	f.users[userID] = u
	return nil
}

func (f *fakeUserStore) UpdatePassword(_ context.Context, userID string, newHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.users[userID]
	f.history[userID] = append([]string{u.PasswordHash}, f.history[userID]...)
	u.PasswordHash = newHash
	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
	f.users[userID] = u
	return nil
}

func (f *fakeUserStore) PasswordHistory(_ context.Context, userID string, limit int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	hashes := f.history[userID]
	if len(hashes) > limit {
		hashes = hashes[:limit]
	}
	out := make([]string, len(hashes))
	copy(out, hashes)
	return out, nil
}

func (f *fakeUserStore) SetActive(_ context.Context, userID string, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.users[userID]
	u.IsActive = active
	f.users[userID] = u
	return nil
}

func (f *fakeUserStore) List(_ context.Context) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeUserStore) get(id string) model.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[id]
}

type fakeRoleStore struct {
	mu          sync.Mutex
	roles       map[string]model.Role
	assignments map[string][]model.RoleAssignment // keyed by user ID, newest first
}

func newFakeRoleStore(roles ...model.Role) *fakeRoleStore {
	f := &fakeRoleStore{roles: map[string]model.Role{}, assignments: map[string][]model.RoleAssignment{}}
	for _, r := range roles {
		f.roles[r.ID] = r
	}
	return f
}

func (f *fakeRoleStore) FindByID(_ context.Context, id string) (model.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.roles[id]
	if !ok {
		return model.Role{}, model.ErrRoleNotFound
	}
	return r, nil
}

func (f *fakeRoleStore) FindByName(_ context.Context, name string) (model.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.roles {
		if r.Name == name {
			return r, nil
		}
	}
	return model.Role{}, model.ErrRoleNotFound
}

func (f *fakeRoleStore) Create(_ context.Context, role model.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roles[role.ID] = role
	return nil
}

func (f *fakeRoleStore) UpdatePermissions(_ context.Context, roleID string, perms model.PermissionSet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.roles[roleID]
	if !ok {
		return model.ErrRoleNotFound
	}
	r.Permissions = perms
	f.roles[roleID] = r
	return nil
}

func (f *fakeRoleStore) Deactivate(_ context.Context, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.roles[roleID]
	if !ok {
		return model.ErrRoleNotFound
	}
	r.IsActive = false
	f.roles[roleID] = r
	return nil
}

func (f *fakeRoleStore) List(_ context.Context) ([]model.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Role, 0, len(f.roles))
	for _, r := range f.roles {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeRoleStore) Assign(_ context.Context, userID, roleID, assignedBy, reason string) (model.RoleAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	role, ok := f.roles[roleID]
	if !ok || !role.IsActive {
		return model.RoleAssignment{}, model.ErrRoleNotFound
	}
	now := time.Now().UTC()
	prev := f.assignments[userID]
	for i := range prev {
		if prev[i].IsActive {
			prev[i].IsActive = false
			until := now
			prev[i].EffectiveUntil = &until
		}
	}
	next := model.RoleAssignment{
		ID:            "assignment-" + roleID,
		UserID:        userID,
		RoleID:        roleID,
		AssignedBy:    assignedBy,
		EffectiveFrom: now,
		IsActive:      true,
	}
	f.assignments[userID] = append([]model.RoleAssignment{next}, prev...)
	return next, nil
}

func (f *fakeRoleStore) AssignmentHistory(_ context.Context, userID string) ([]model.RoleAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.RoleAssignment, len(f.assignments[userID]))
	copy(out, f.assignments[userID])
	return out, nil
}

type fakeAttemptStore struct {
	mu       sync.Mutex
	attempts []model.LoginAttempt
}

func (f *fakeAttemptStore) Record(_ context.Context, attempt model.LoginAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, attempt)
	return nil
}

func (f *fakeAttemptStore) last() (model.LoginAttempt, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.attempts) == 0 {
		return model.LoginAttempt{}, false
	}
	return f.attempts[len(f.attempts)-1], true
}

type fakeEngagementStore struct {
	mu   sync.Mutex
	rows map[string]model.Engagement
}

func newFakeEngagementStore(rows ...model.Engagement) *fakeEngagementStore {
	f := &fakeEngagementStore{rows: map[string]model.Engagement{}}
	for _, e := range rows {
		f.rows[e.ID] = e
	}
	return f
}

func (f *fakeEngagementStore) FindByID(_ context.Context, id string) (model.Engagement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.rows[id]
	if !ok {
		return model.Engagement{}, model.ErrEngagementNotFound
	}
	return e, nil
}

func (f *fakeEngagementStore) Create(_ context.Context, e model.Engagement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[e.ID] = e
	return nil
}

func (f *fakeEngagementStore) Update(_ context.Context, e model.Engagement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[e.ID]; !ok {
		return model.ErrEngagementNotFound
	}
	f.rows[e.ID] = e
	return nil
}

func (f *fakeEngagementStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return model.ErrEngagementNotFound
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeEngagementStore) ListVisible(_ context.Context, principalID string, scope model.AccessScope) ([]model.Engagement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Engagement{}
	for _, e := range f.rows {
		switch scope {
		case model.ScopeAll:
			out = append(out, e)
		case model.ScopeTeam:
			if e.OwnerID == principalID || (e.OwnerManagerID != nil && *e.OwnerManagerID == principalID) {
				out = append(out, e)
			}
		default:
			if e.OwnerID == principalID {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

// plainHasher stores secrets verbatim and counts Verify calls, so tests
// can assert the verifier was never consulted on short-circuit paths.
type plainHasher struct {
	mu          sync.Mutex
	verifyCalls int
}

func (h *plainHasher) Hash(secret string) (string, error) {
	return "hashed:" + secret, nil
}

func (h *plainHasher) Verify(secret, digest string) bool {
	h.mu.Lock()
	h.verifyCalls++
	h.mu.Unlock()
	return digest == "hashed:"+secret
}

func (h *plainHasher) calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.verifyCalls
}

// stubChallenges returns a canned verification result so login tests can
// force the captcha step to pass or fail deterministically.
type stubChallenges struct {
	mu          sync.Mutex
	result      captcha.VerifyResult
	verifyCalls int
}

func (s *stubChallenges) Issue() (captcha.Challenge, error) {
	return captcha.Challenge{ID: "challenge-1", ImagePNG: "cGFrZQ==", ExpiresIn: 300}, nil
}

func (s *stubChallenges) Verify(_, _ string) captcha.VerifyResult {
	s.mu.Lock()
	s.verifyCalls++
	s.mu.Unlock()
	return s.result
}
