package index

import (
	"context"
	"encoding/base64"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/shoalstore/shoalstore/internal/errors"
	"github.com/shoalstore/shoalstore/internal/idgen"
)

// FirestoreBackend implements Backend over a single Firestore collection,
// with one document per (index ID, key) pair. Document IDs encode the raw
// key so Next can page through documents in ID order.
type FirestoreBackend struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreBackend connects to the named Firestore project/collection.
func NewFirestoreBackend(ctx context.Context, projectID, collection string) (*FirestoreBackend, error) {
	if projectID == "" {
		return nil, fmt.Errorf("firestore project id is required")
	}
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}
	return &FirestoreBackend{client: client, collection: collection}, nil
}

func (b *FirestoreBackend) collectionRef() *firestore.CollectionRef {
	return b.client.Collection(b.collection)
}

func firestoreDocID(id idgen.ID, key []byte) string {
	return id.String() + "_" + base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(key)
}

func (b *FirestoreBackend) Put(ctx context.Context, id idgen.ID, key, value []byte, overwrite bool) error {
	docRef := b.collectionRef().Doc(firestoreDocID(id, key))

	if !overwrite {
		_, err := docRef.Get(ctx)
		if err == nil {
			return errors.Wrap(errors.AlreadyExists, "key %x", key)
		}
		if status.Code(err) != codes.NotFound {
			return errors.Wrap(errors.Transport, "firestore get-before-put: %v", err)
		}
	}

	_, err := docRef.Set(ctx, map[string]any{
		"index_id": id.String(),
		"key":      key,
		"value":    value,
	})
	if err != nil {
		return errors.Wrap(errors.Transport, "firestore put: %v", err)
	}
	return nil
}

func (b *FirestoreBackend) Get(ctx context.Context, id idgen.ID, key []byte) ([]byte, error) {
	doc, err := b.collectionRef().Doc(firestoreDocID(id, key)).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, errors.Wrap(errors.NotFound, "key %x", key)
	}
	if err != nil {
		return nil, errors.Wrap(errors.Transport, "firestore get: %v", err)
	}
	value, ok := doc.Data()["value"].([]byte)
	if !ok {
		return nil, errors.Wrap(errors.Transport, "firestore get: malformed value field")
	}
	return value, nil
}

func (b *FirestoreBackend) Del(ctx context.Context, id idgen.ID, key []byte) error {
	docRef := b.collectionRef().Doc(firestoreDocID(id, key))
	if _, err := docRef.Get(ctx); status.Code(err) == codes.NotFound {
		return errors.Wrap(errors.NotFound, "key %x", key)
	}
	if _, err := docRef.Delete(ctx); err != nil {
		return errors.Wrap(errors.Transport, "firestore del: %v", err)
	}
	return nil
}

func (b *FirestoreBackend) Next(ctx context.Context, id idgen.ID, cursor []byte, max int) ([]Entry, error) {
	query := b.collectionRef().
		Where("index_id", "==", id.String()).
		Where("key", ">=", cursor).
		OrderBy("key", firestore.Asc).
		Limit(max)

	iter := query.Documents(ctx)
	defer iter.Stop()

	out := make([]Entry, 0, max)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Wrap(errors.Transport, "firestore next: %v", err)
		}
		data := doc.Data()
		key, _ := data["key"].([]byte)
		value, _ := data["value"].([]byte)
		out = append(out, Entry{Key: key, Value: value})
	}
	return out, nil
}

func (b *FirestoreBackend) HealthCheck(ctx context.Context) error {
	_, err := b.collectionRef().Limit(1).Documents(ctx).Next()
	if err != nil && err != iterator.Done {
		return errors.Wrap(errors.Transport, "firestore health check: %v", err)
	}
	return nil
}

// Close releases the underlying Firestore client.
func (b *FirestoreBackend) Close() error {
	return b.client.Close()
}
