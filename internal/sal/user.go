package sal

import (
	"context"
	"fmt"
	"time"

	"github.com/shoalstore/shoalstore/internal/catalog"
	"github.com/shoalstore/shoalstore/internal/errors"
	"github.com/shoalstore/shoalstore/internal/index"
)

// GetUser reads the user record for userID, preferring the Metadata
// Cache's user partition over a round trip to the Index Gateway (spec
// §4.3). This covers both the "get" and "load" operations of spec §6.2's
// User row: the capability set is handle-free (spec §9), so there is no
// separate unpopulated-handle step to model in Go.
func (s *Store) GetUser(ctx context.Context, userID string) (*catalog.UserRecord, error) {
	key := userID
	if s.caches != nil {
		if raw, _, ok := s.caches.Users.Get(key); ok {
			return catalog.DecodeUserRecord(raw)
		}
	}
	raw, err := s.idx.Get(ctx, catalog.IndexUsers, []byte(userID))
	if err != nil {
		return nil, fmt.Errorf("sal: loading user %s: %w", userID, err)
	}
	rec, err := catalog.DecodeUserRecord(raw)
	if err != nil {
		return nil, err
	}
	if s.caches != nil {
		s.caches.Users.Put(ctx, key, raw, time.Now())
	}
	return rec, nil
}

// LookupUserByAccessKey resolves an access key to its owning user record
// via the access-keys global index (spec §3.2, §6.2's "lookup by
// access-key/email").
func (s *Store) LookupUserByAccessKey(ctx context.Context, accessKey string) (*catalog.UserRecord, error) {
	raw, err := s.idx.Get(ctx, catalog.IndexAccessKeys, []byte(accessKey))
	if err != nil {
		return nil, fmt.Errorf("sal: looking up access key: %w", err)
	}
	rec, err := catalog.DecodeAccessKeyRecord(raw)
	if err != nil {
		return nil, err
	}
	return s.GetUser(ctx, rec.UserID)
}

// LookupUserByEmail resolves an email to its owning user record via the
// emails global index.
func (s *Store) LookupUserByEmail(ctx context.Context, email string) (*catalog.UserRecord, error) {
	raw, err := s.idx.Get(ctx, catalog.IndexEmails, []byte(email))
	if err != nil {
		return nil, fmt.Errorf("sal: looking up email: %w", err)
	}
	return s.GetUser(ctx, string(raw))
}

// CreateUser writes a brand-new user record, rejecting if one already
// exists for this user ID (spec §3.7: "created by store_user").
func (s *Store) CreateUser(ctx context.Context, rec *catalog.UserRecord) error {
	encoded, err := catalog.EncodeUserRecord(rec)
	if err != nil {
		return fmt.Errorf("sal: encoding new user record: %w", err)
	}
	if err := s.idx.Put(ctx, catalog.IndexUsers, []byte(rec.UserID), encoded, false); err != nil {
		return fmt.Errorf("sal: creating user %s: %w", rec.UserID, err)
	}
	return nil
}

// RegisterAccessKey inserts an access-key -> user-id/secret mapping into
// the access-keys global index (spec §3.2). Distinct from CreateUser
// because a user may hold more than one access key.
func (s *Store) RegisterAccessKey(ctx context.Context, accessKey string, rec *catalog.AccessKeyRecord) error {
	encoded, err := catalog.EncodeAccessKeyRecord(rec)
	if err != nil {
		return fmt.Errorf("sal: encoding access key record: %w", err)
	}
	if err := s.idx.Put(ctx, catalog.IndexAccessKeys, []byte(accessKey), encoded, true); err != nil {
		return fmt.Errorf("sal: registering access key: %w", err)
	}
	return nil
}

// RegisterEmail inserts an email -> user-id mapping into the emails
// global index. The value is the bare user-id string, matching spec
// §3.2's "value: user-id" (not a compound record like AccessKeyRecord).
func (s *Store) RegisterEmail(ctx context.Context, email, userID string) error {
	if err := s.idx.Put(ctx, catalog.IndexEmails, []byte(email), []byte(userID), true); err != nil {
		return fmt.Errorf("sal: registering email: %w", err)
	}
	return nil
}

// StoreUser persists rec, enforcing the optimistic version check of spec
// §5's known race #3: rec.Version must match the version currently on
// record, or this returns errors.VersionConflict (ECANCELED in the
// source's terms) and the caller must reload and retry. On success rec's
// own Version field is bumped to the value now in the store.
func (s *Store) StoreUser(ctx context.Context, rec *catalog.UserRecord) error {
	raw, err := s.idx.Get(ctx, catalog.IndexUsers, []byte(rec.UserID))
	if err != nil {
		return fmt.Errorf("sal: reading user %s before store: %w", rec.UserID, err)
	}
	current, err := catalog.DecodeUserRecord(raw)
	if err != nil {
		return err
	}
	if current.Version != rec.Version {
		return errors.Wrap(errors.VersionConflict, "user %s: expected version %d, store has %d", rec.UserID, rec.Version, current.Version)
	}
	rec.Version++
	encoded, err := catalog.EncodeUserRecord(rec)
	if err != nil {
		return fmt.Errorf("sal: encoding user %s: %w", rec.UserID, err)
	}
	if err := s.idx.Put(ctx, catalog.IndexUsers, []byte(rec.UserID), encoded, true); err != nil {
		return fmt.Errorf("sal: storing user %s: %w", rec.UserID, err)
	}
	if s.caches != nil {
		s.caches.Users.Put(ctx, rec.UserID, encoded, time.Now())
	}
	return nil
}

// RemoveUser deletes a user record and every index spec §3.7 says it owns:
// user-info.<id>, user-stats.<id>, and the access-key/email mappings that
// resolve to this user. Access-keys and emails carry no reverse index, so
// those two are found by a bounded full scan of their respective global
// indices; RemoveUser is expected to be an infrequent administrative
// operation, not a hot path, so this cost is accepted rather than adding a
// reverse-lookup index only this operation would use.
func (s *Store) RemoveUser(ctx context.Context, userID string) error {
	if err := s.removeMatchingAccessKeys(ctx, userID); err != nil {
		return err
	}
	if err := s.removeMatchingEmails(ctx, userID); err != nil {
		return err
	}
	if err := s.dropUserInfoIndex(ctx, userID); err != nil {
		return err
	}
	if err := s.dropUserStatsIndex(ctx, userID); err != nil {
		return err
	}
	if err := s.idx.Del(ctx, catalog.IndexUsers, []byte(userID)); err != nil && !index.IsNotFound(err) {
		return fmt.Errorf("sal: removing user %s: %w", userID, err)
	}
	if s.caches != nil {
		s.caches.Users.InvalidateRemove(ctx, userID)
	}
	return nil
}

const removeScanBatch = 500

func (s *Store) removeMatchingAccessKeys(ctx context.Context, userID string) error {
	cursor := []byte{}
	for {
		entries, err := s.idx.Next(ctx, catalog.IndexAccessKeys, cursor, removeScanBatch, nil, nil)
		if err != nil {
			return fmt.Errorf("sal: scanning access keys: %w", err)
		}
		if len(entries) == 0 {
			return nil
		}
		for _, e := range entries {
			rec, err := catalog.DecodeAccessKeyRecord(e.Value)
			if err != nil {
				continue
			}
			if rec.UserID == userID {
				if err := s.idx.Del(ctx, catalog.IndexAccessKeys, e.Key); err != nil && !index.IsNotFound(err) {
					return fmt.Errorf("sal: removing access key %s: %w", e.Key, err)
				}
			}
		}
		if len(entries) < removeScanBatch {
			return nil
		}
		cursor = append(append([]byte{}, entries[len(entries)-1].Key...), 0)
	}
}

func (s *Store) removeMatchingEmails(ctx context.Context, userID string) error {
	cursor := []byte{}
	for {
		entries, err := s.idx.Next(ctx, catalog.IndexEmails, cursor, removeScanBatch, nil, nil)
		if err != nil {
			return fmt.Errorf("sal: scanning emails: %w", err)
		}
		if len(entries) == 0 {
			return nil
		}
		for _, e := range entries {
			if string(e.Value) == userID {
				if err := s.idx.Del(ctx, catalog.IndexEmails, e.Key); err != nil && !index.IsNotFound(err) {
					return fmt.Errorf("sal: removing email %s: %w", e.Key, err)
				}
			}
		}
		if len(entries) < removeScanBatch {
			return nil
		}
		cursor = append(append([]byte{}, entries[len(entries)-1].Key...), 0)
	}
}

func (s *Store) dropUserInfoIndex(ctx context.Context, userID string) error {
	return dropIndex(ctx, s.idx, catalog.UserInfoIndex(userID))
}

func (s *Store) dropUserStatsIndex(ctx context.Context, userID string) error {
	return dropIndex(ctx, s.idx, catalog.UserStatsIndex(userID))
}

// dropIndex deletes every key currently in the named index. Per-entity
// indices have no separate existence from their keys (spec §3.3: "created
// on demand"), so dropping one is just emptying it.
func dropIndex(ctx context.Context, idx *index.Gateway, name string) error {
	cursor := []byte{}
	for {
		entries, err := idx.Next(ctx, name, cursor, removeScanBatch, nil, nil)
		if err != nil {
			return fmt.Errorf("sal: scanning %s: %w", name, err)
		}
		if len(entries) == 0 {
			return nil
		}
		for _, e := range entries {
			if err := idx.Del(ctx, name, e.Key); err != nil && !index.IsNotFound(err) {
				return fmt.Errorf("sal: emptying %s: %w", name, err)
			}
		}
		if len(entries) < removeScanBatch {
			return nil
		}
		cursor = append(append([]byte{}, entries[len(entries)-1].Key...), 0)
	}
}
