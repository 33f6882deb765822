package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clinic-scheduler/internal/auth"
	"clinic-scheduler/internal/kv"
	"clinic-scheduler/internal/model"
)

// CreateSession stores a session for token id lasting ttl from now. Only the
// token hash is used as the key.
func (s *Store) CreateSession(ctx context.Context, id, email string, ttl time.Duration) (*model.Session, error) {
	if id == "" {
		return nil, invalid("sessionId", "required")
	}
	if ttl <= 0 {
		return nil, invalid("ttl", "must be positive")
	}
	email = NormalizeEmail(email)
	if err := validate.Var(email, "required,email"); err != nil {
		return nil, invalid("userEmail", "email")
	}
	now := s.now()
	sess := &model.Session{ID: id, UserEmail: email, CreatedAt: now, ExpiresAt: now.Add(ttl)}

	key := sessionKey(auth.HashToken(id))
	op := kv.NewAtomic().
		Check(key, "").
		Set(key, mustJSON(sess))
	if err := s.commit(ctx, op, "create session"); err != nil {
		return nil, err
	}
	return sess, nil
}

// Session returns the live session for token id. An expired session is
// deleted on the spot and reported as absent.
func (s *Store) Session(ctx context.Context, id string) (*model.Session, error) {
	key := sessionKey(auth.HashToken(id))
	sess, version, err := getJSON[model.Session](ctx, s.db, key)
	if err != nil || sess == nil {
		return nil, err
	}
	sess.ID = id
	if !sess.Expired(s.now()) {
		return sess, nil
	}

	// a concurrent reader may have removed it already
	err = s.commit(ctx, kv.NewAtomic().Check(key, version).Delete(key), "expire session")
	if err != nil && !errors.Is(err, ErrConflict) {
		return nil, err
	}
	s.log.Debug("session expired", "email", sess.UserEmail)
	return nil, nil
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	return s.db.Delete(ctx, sessionKey(auth.HashToken(id)))
}

// DeleteUserSessions revokes every session of email and reports how many
// were removed.
func (s *Store) DeleteUserSessions(ctx context.Context, email string) (int, error) {
	email = NormalizeEmail(email)
	op := kv.NewAtomic()
	for e, err := range s.db.Scan(ctx, kv.Key{sessionsRoot}) {
		if err != nil {
			return 0, fmt.Errorf("scan sessions: %w", err)
		}
		sess, err := decode[model.Session](e)
		if err != nil {
			s.log.Warn("skipping malformed session", "key", e.Key.String())
			continue
		}
		if sess.UserEmail == email {
			op.Check(e.Key, e.Version).Delete(e.Key)
		}
	}
	if len(op.Mutations) == 0 {
		return 0, nil
	}
	if err := s.commit(ctx, op, "revoke sessions"); err != nil {
		return 0, err
	}
	return len(op.Mutations), nil
}
