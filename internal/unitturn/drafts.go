package unitturn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	draftKeyPrefix = "unitturn:draft:"
	// Every failed attempt means another edit committed.
	maxDraftUpdateAttempts = 64
)

type draftReader interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// DraftStore keeps in-progress unit turns in Redis until they are saved.
type DraftStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDraftStore instantiates the store. A zero ttl keeps drafts until deleted.
func NewDraftStore(client *redis.Client, ttl time.Duration) *DraftStore {
	return &DraftStore{client: client, ttl: ttl}
}

func draftKey(id string) string {
	return draftKeyPrefix + id
}

// Put writes the draft and refreshes its expiry.
func (s *DraftStore) Put(ctx context.Context, d Draft) error {
	if s == nil || s.client == nil {
		return errors.New("unitturn: draft store not configured")
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	if err := s.client.Set(ctx, draftKey(d.ID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("store draft: %w", err)
	}
	return nil
}

// Get loads a draft by id.
func (s *DraftStore) Get(ctx context.Context, id string) (Draft, error) {
	if s == nil || s.client == nil {
		return Draft{}, errors.New("unitturn: draft store not configured")
	}
	return loadDraft(ctx, s.client, id)
}

// Update applies fn to the stored draft under WATCH so concurrent edits are never
// overwritten. fn may run more than once and must not keep side effects between runs.
// ErrConflict is returned when the draft kept changing for every attempt.
func (s *DraftStore) Update(ctx context.Context, id string, fn func(*Draft) error) (Draft, error) {
	if s == nil || s.client == nil {
		return Draft{}, errors.New("unitturn: draft store not configured")
	}
	key := draftKey(id)
	var updated Draft
	txf := func(tx *redis.Tx) error {
		d, err := loadDraft(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(&d); err != nil {
			return err
		}
		raw, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("encode draft: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, s.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		updated = d
		return nil
	}

	for attempt := 0; attempt < maxDraftUpdateAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return Draft{}, err
		}
		return updated, nil
	}
	return Draft{}, fmt.Errorf("%w: draft %s", ErrConflict, id)
}

// Delete drops a draft. Missing drafts are ignored.
func (s *DraftStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Del(ctx, draftKey(id)).Err()
}

func loadDraft(ctx context.Context, c draftReader, id string) (Draft, error) {
	raw, err := c.Get(ctx, draftKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Draft{}, ErrNotFound
	}
	if err != nil {
		return Draft{}, fmt.Errorf("load draft: %w", err)
	}
	var d Draft
	if err := json.Unmarshal(raw, &d); err != nil {
		return Draft{}, fmt.Errorf("decode draft: %w", err)
	}
	return d, nil
}
