package idempotency

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pfirestore "github.com/crumbhouse/bakery-api/internal/platform/firestore"
)

type FirestoreOption func(*FirestoreStore)

// WithCollection overrides the "idempotency_keys" collection.
func WithCollection(name string) FirestoreOption {
	return func(store *FirestoreStore) {
		if name != "" {
			store.collection = name
		}
	}
}

// FirestoreStore keeps one document per key. Reads ignore expired documents; deleting them is
// left to a TTL policy on expires_at.
type FirestoreStore struct {
	provider   *pfirestore.Provider
	collection string
}

func NewFirestoreStore(provider *pfirestore.Provider, opts ...FirestoreOption) (*FirestoreStore, error) {
	if provider == nil {
		return nil, errors.New("idempotency: firestore provider is required")
	}
	store := &FirestoreStore{provider: provider, collection: "idempotency_keys"}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

func (s *FirestoreStore) Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error) {
	now = now.UTC()
	var out Reservation
	err := s.update(ctx, key, func(tx *firestore.Transaction, ref *firestore.DocumentRef, stored Record, found bool) error {
		if found && stored.live(now) {
			var err error
			out, err = stored.claim(fingerprint)
			return err
		}
		record := pendingRecord(key, fingerprint, now, ttlOrDefault(ttl))
		out = Reservation{State: ReservationStateNew, Record: record}
		return tx.Set(ref, record)
	})
	return out, err
}

func (s *FirestoreStore) SaveResponse(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	return s.update(ctx, key, func(tx *firestore.Transaction, ref *firestore.DocumentRef, stored Record, found bool) error {
		record, err := completion(stored, found, key, fingerprint)
		if err != nil {
			return err
		}
		return tx.Set(ref, record.completed(resp, now.UTC(), ttlOrDefault(ttl)))
	})
}

func (s *FirestoreStore) Release(ctx context.Context, key string) error {
	ref, err := s.doc(ctx, key)
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx); err != nil && status.Code(err) != codes.NotFound {
		return pfirestore.WrapError("idempotency.release", err)
	}
	return nil
}

// update reads the key's document and runs fn in the same transaction.
func (s *FirestoreStore) update(ctx context.Context, key string, fn func(*firestore.Transaction, *firestore.DocumentRef, Record, bool) error) error {
	ref, err := s.doc(ctx, key)
	if err != nil {
		return err
	}
	return s.provider.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		switch status.Code(err) {
		case codes.OK:
			var stored Record
			if err := snap.DataTo(&stored); err != nil {
				return err
			}
			return fn(tx, ref, stored, true)
		case codes.NotFound:
			return fn(tx, ref, Record{}, false)
		default:
			return err
		}
	})
}

func (s *FirestoreStore) doc(ctx context.Context, key string) (*firestore.DocumentRef, error) {
	client, err := s.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(s.collection).Doc(documentID(key)), nil
}
