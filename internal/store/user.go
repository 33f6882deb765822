package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"clinic-scheduler/internal/kv"
	"clinic-scheduler/internal/model"
)

// NormalizeEmail is the form emails take in keys and records.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUser writes the primary record and both pointer indices in one
// commit. A taken id or email fails with ErrConflict.
func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	u.Email = NormalizeEmail(u.Email)
	if err := check(u); err != nil {
		return err
	}
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	now := s.now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	op := kv.NewAtomic().
		Check(userKey(u.ID), "").
		Check(userEmailKey(u.Email), "").
		Set(userKey(u.ID), mustJSON(u)).
		Set(userEmailKey(u.Email), mustJSON(u.ID)).
		Set(userRoleKey(string(u.Role), u.Email), mustJSON(u.Email))
	return s.commit(ctx, op, "create user")
}

func (s *Store) UserByID(ctx context.Context, id string) (*model.User, error) {
	if !validID(id) {
		return nil, nil
	}
	u, _, err := getJSON[model.User](ctx, s.db, userKey(id))
	return u, err
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	u, _, err := s.userByEmail(ctx, email)
	return u, err
}

// userByEmail follows the email pointer and returns the primary record with
// its version. A dangling or mismatched pointer reads as absent.
func (s *Store) userByEmail(ctx context.Context, email string) (*model.User, string, error) {
	email = NormalizeEmail(email)
	id, _, err := getJSON[string](ctx, s.db, userEmailKey(email))
	if err != nil || id == nil {
		return nil, "", err
	}
	u, version, err := getJSON[model.User](ctx, s.db, userKey(*id))
	if err != nil {
		return nil, "", err
	}
	if u == nil || u.Email != email {
		s.log.Warn("user email index points nowhere", "email", email, "id", *id)
		return nil, "", nil
	}
	return u, version, nil
}

// ListUsersByRole resolves every role index entry through UserByEmail.
// Entries that are malformed, dangling or stale are skipped and logged; they
// never fail the listing.
func (s *Store) ListUsersByRole(ctx context.Context, role model.Role) ([]model.User, error) {
	if !role.Valid() {
		return nil, invalid("role", "oneof=superadmin psychologist")
	}

	var emails []string
	skipped := 0
	for e, err := range s.db.Scan(ctx, userRolePrefix(string(role))) {
		if err != nil {
			return nil, fmt.Errorf("scan role index: %w", err)
		}
		var email string
		if err := json.Unmarshal(e.Value, &email); err != nil || validate.Var(email, "required,email") != nil {
			s.log.Warn("skipping malformed role index entry", "key", e.Key.String())
			skipped++
			continue
		}
		emails = append(emails, email)
	}

	out := make([]model.User, 0, len(emails))
	for _, email := range emails {
		u, err := s.UserByEmail(ctx, email)
		if err != nil {
			s.log.Warn("skipping unresolvable role index entry", "email", email, "error", err)
			skipped++
			continue
		}
		if u == nil || u.Role != role {
			s.log.Warn("skipping stale role index entry", "email", email, "role", role)
			skipped++
			continue
		}
		out = append(out, *u)
	}
	if skipped > 0 {
		s.log.Warn("role listing skipped entries", "role", role, "skipped", skipped, "listed", len(out))
	}
	return out, nil
}

// CountUsersByRole counts role index keys without resolving them. The index
// is written in the same commit as the primary, so the count is exact unless
// the keyspace was edited by hand.
func (s *Store) CountUsersByRole(ctx context.Context, role model.Role) (int, error) {
	if !role.Valid() {
		return 0, invalid("role", "oneof=superadmin psychologist")
	}
	n := 0
	for _, err := range s.db.Scan(ctx, userRolePrefix(string(role))) {
		if err != nil {
			return 0, fmt.Errorf("scan role index: %w", err)
		}
		n++
	}
	return n, nil
}

// UpdateUser rewrites the primary record only; none of the patchable fields
// are indexed. Returns nil when the user does not exist.
func (s *Store) UpdateUser(ctx context.Context, email string, p model.UserPatch) (*model.User, error) {
	if err := check(&p); err != nil {
		return nil, err
	}
	u, version, err := s.userByEmail(ctx, email)
	if err != nil || u == nil {
		return nil, err
	}

	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.PasswordHash != nil {
		u.PasswordHash = *p.PasswordHash
	}
	if p.IsActive != nil {
		u.IsActive = *p.IsActive
	}
	u.UpdatedAt = s.now()

	op := kv.NewAtomic().
		Check(userKey(u.ID), version).
		Set(userKey(u.ID), mustJSON(u))
	if err := s.commit(ctx, op, "update user"); err != nil {
		return nil, err
	}
	return u, nil
}

// ChangeUserRole moves the role index entry in the same commit as the
// primary update, so exactly one role entry exists at any time.
func (s *Store) ChangeUserRole(ctx context.Context, email string, role model.Role) (*model.User, error) {
	if !role.Valid() {
		return nil, invalid("role", "oneof=superadmin psychologist")
	}
	u, version, err := s.userByEmail(ctx, email)
	if err != nil || u == nil {
		return nil, err
	}
	if u.Role == role {
		return u, nil
	}

	old := u.Role
	u.Role = role
	u.UpdatedAt = s.now()

	op := kv.NewAtomic().
		Check(userKey(u.ID), version).
		Set(userKey(u.ID), mustJSON(u)).
		Delete(userRoleKey(string(old), u.Email)).
		Set(userRoleKey(string(role), u.Email), mustJSON(u.Email))
	if err := s.commit(ctx, op, "change role"); err != nil {
		return nil, err
	}
	s.log.Info("user role changed", "email", u.Email, "from", old, "to", role)
	return u, nil
}

// DeleteUser removes all three representations. Deleting a missing user is
// a no-op that reports false.
func (s *Store) DeleteUser(ctx context.Context, email string) (bool, error) {
	u, version, err := s.userByEmail(ctx, email)
	if err != nil || u == nil {
		return false, err
	}
	op := kv.NewAtomic().
		Check(userKey(u.ID), version).
		Delete(userKey(u.ID)).
		Delete(userEmailKey(u.Email)).
		Delete(userRoleKey(string(u.Role), u.Email))
	if err := s.commit(ctx, op, "delete user"); err != nil {
		return false, err
	}
	return true, nil
}
