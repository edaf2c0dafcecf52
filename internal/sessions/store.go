package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/glucoview/glucoview/pkg/logger"
	"github.com/glucoview/glucoview/pkg/metrics"
)

// DefaultKey is the record name the session is stored under.
const DefaultKey = "authData"

var log = logger.For("sessions")

// Store loads on read and persists on write. It never sweeps expired records on its own.
type Store struct {
	repo Repository
	key  string
	now  func() time.Time
}

type Option func(*Store)

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(repo Repository, key string, opts ...Option) *Store {
	if key == "" {
		key = DefaultKey
	}
	s := &Store{repo: repo, key: key, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Now is the store clock.
func (s *Store) Now() time.Time { return s.now() }

// Get returns the stored session or nil. An unparsable record is purged and
// reported as absent; only backend failures surface as errors.
func (s *Store) Get(ctx context.Context) (*Session, error) {
	b, err := s.repo.Load(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if b == nil {
		return nil, nil
	}
	var sess Session
	if err := json.Unmarshal(b, &sess); err != nil || !sess.wellFormed() {
		log.Warnf("purging malformed session record %q (%d bytes)", s.key, len(b))
		if derr := s.repo.Delete(ctx, s.key); derr != nil {
			log.Errorf("purge malformed session: %v", derr)
		}
		return nil, nil
	}
	return &sess, nil
}

// Put backfills ExpiresAtMs when unset and overwrites the stored record.
func (s *Store) Put(ctx context.Context, sess *Session) error {
	if sess == nil {
		return fmt.Errorf("put session: nil session")
	}
	sess.Backfill()
	b, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	ttl := sess.ExpiresAt().Sub(s.now())
	if ttl <= 0 {
		// keep expired records long enough for the gate to see and purge them
		ttl = time.Second
	}
	if err := s.repo.Save(ctx, s.key, b, ttl); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Clear removes the stored session unconditionally.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.repo.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// ClearToken removes the stored session only if it still carries token, so a
// rejection of an older token never wipes a newer login. It reports whether a
// record was removed.
func (s *Store) ClearToken(ctx context.Context, token string) (bool, error) {
	cur, err := s.Get(ctx)
	if err != nil {
		return false, err
	}
	if cur == nil || cur.Token != token {
		return false, nil
	}
	return true, s.Clear(ctx)
}

// IsValid reports whether sess is valid at the store clock.
func (s *Store) IsValid(sess *Session) bool {
	return IsValid(sess, s.now())
}

// Gate is the single check every entry point runs before touching the remote service.
// It backfills a missing expiry and purges an expired session before answering.
func (s *Store) Gate(ctx context.Context) (Verdict, *Session, error) {
	v, sess, err := s.gate(ctx)
	metrics.SessionVerdicts.WithLabelValues(string(v)).Inc()
	return v, sess, err
}

func (s *Store) gate(ctx context.Context) (Verdict, *Session, error) {
	sess, err := s.Get(ctx)
	if err != nil {
		return Unauthenticated, nil, err
	}
	if sess == nil {
		return Unauthenticated, nil, nil
	}
	if sess.ExpiresAtMs == 0 {
		if err := s.Put(ctx, sess); err != nil {
			return Unauthenticated, nil, err
		}
	}
	if !s.IsValid(sess) {
		log.Infof("session for user %s expired at %s", sess.UserID, sess.ExpiresAt().Format(time.RFC3339))
		if err := s.Clear(ctx); err != nil {
			return Expired, nil, err
		}
		return Expired, nil, nil
	}
	return Authenticated, sess, nil
}
