package captcha

import (
	"context"
	"crypto/rand"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// VerifyResult classifies the outcome of a challenge verification.
type VerifyResult int

const (
	Verified VerifyResult = iota
	Invalid
	Expired
	TooManyAttempts
	NotFound
)

func (r VerifyResult) String() string {
	switch r {
	case Verified:
		return "verified"
	case Invalid:
		return "invalid"
	case Expired:
		return "expired"
	case TooManyAttempts:
		return "too_many_attempts"
	case NotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Challenge is what a caller gets back from Issue. The solution is never
// included; it stays inside the store until verification.
type Challenge struct {
	ID        string
	ImagePNG  string // base64-encoded PNG of the rendered code
	ExpiresIn time.Duration
}

// Store issues and verifies single-use visual challenges. This is a bot
// filter in front of the lockout policy, not a security boundary: entries
// live in process memory and can always be reissued.
type Store interface {
	Issue() (Challenge, error)
	Verify(challengeID string, solution string) VerifyResult
}

const (
	// Ambiguous glyphs (0/O, 1/I/l) are left out of the alphabet.
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength   = 6
)

type entry struct {
	solution  string
	expiresAt time.Time
	attempts  int
}

// MemoryStore is the in-process Store. All map access, including the
// read-check-delete in Verify, happens under one mutex so two concurrent
// verifications of the same challenge can never both succeed.
type MemoryStore struct {
	mu          sync.Mutex
	entries     map[string]*entry
	ttl         time.Duration
	maxAttempts int
	now         func() time.Time
}

// Option configures a MemoryStore.
type Option func(*MemoryStore)

// WithClock overrides the time source. Tests use this to drive expiry
// deterministically.
func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewMemoryStore(ttl time.Duration, maxAttempts int, opts ...Option) *MemoryStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	store := &MemoryStore{
		entries:     map[string]*entry{},
		ttl:         ttl,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *MemoryStore) Issue() (Challenge, error) {
	code, err := randomCode(codeLength)
	if err != nil {
		return Challenge{}, err
	}

	image, err := renderPNG(code)
	if err != nil {
		return Challenge{}, err
	}

	id := uuid.NewString()

	s.mu.Lock()
	s.entries[id] = &entry{
		solution:  code,
		expiresAt: s.now().Add(s.ttl),
	}
	s.mu.Unlock()

	return Challenge{ID: id, ImagePNG: image, ExpiresIn: s.ttl}, nil
}

func (s *MemoryStore) Verify(challengeID string, solution string) VerifyResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	ent, exists := s.entries[challengeID]
	if !exists {
		return NotFound
	}

	if s.now().After(ent.expiresAt) {
		delete(s.entries, challengeID)
		return Expired
	}

	if strings.EqualFold(strings.TrimSpace(solution), ent.solution) {
		// Single use: a solved challenge must not verify twice.
		delete(s.entries, challengeID)
		return Verified
	}

	ent.attempts++
	if ent.attempts >= s.maxAttempts {
		delete(s.entries, challengeID)
		return TooManyAttempts
	}

	return Invalid
}

// StartSweep removes expired-but-unused entries on a fixed interval to
// bound memory. Runs until ctx is cancelled.
func (s *MemoryStore) StartSweep(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.sweep(); removed > 0 {
				slog.Debug("captcha sweep", "removed", removed)
			}
		}
	}
}

func (s *MemoryStore) sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, ent := range s.entries {
		if now.After(ent.expiresAt) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

func randomCode(length int) (string, error) {
	var sb strings.Builder
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		sb.WriteByte(codeAlphabet[n.Int64()])
	}
	return sb.String(), nil
}
