package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/api/iterator"
)

const countAlias = "total"

// Document represents a strongly typed Firestore document with metadata timestamps.
type Document[T any] struct {
	ID         string
	Data       T
	CreateTime time.Time
	UpdateTime time.Time
}

// QueryBuilder customises Firestore queries before execution.
type QueryBuilder func(query firestore.Query) firestore.Query

// BaseRepository provides typed helpers for one collection. Every helper joins the
// transaction stored on the context when there is one.
type BaseRepository[T any] struct {
	provider   *Provider
	collection string
}

// NewBaseRepository constructs a BaseRepository bound to a collection.
func NewBaseRepository[T any](provider *Provider, collection string) *BaseRepository[T] {
	return &BaseRepository[T]{
		provider:   provider,
		collection: strings.TrimSpace(collection),
	}
}

// Get fetches the document by ID and decodes it.
func (r *BaseRepository[T]) Get(ctx context.Context, id string) (Document[T], error) {
	ref, err := r.DocumentRef(ctx, id)
	if err != nil {
		return Document[T]{}, err
	}

	var snapshot *firestore.DocumentSnapshot
	if tx, ok := TxFromContext(ctx); ok {
		snapshot, err = tx.Get(ref)
	} else {
		snapshot, err = ref.Get(ctx)
	}
	if err != nil {
		return Document[T]{}, WrapError(r.op("get"), err)
	}
	return decodeSnapshot[T](snapshot)
}

// Create writes a new document and fails with a conflict when the ID already exists.
func (r *BaseRepository[T]) Create(ctx context.Context, id string, value T) error {
	ref, err := r.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if tx, ok := TxFromContext(ctx); ok {
		err = tx.Create(ref, value)
	} else {
		_, err = ref.Create(ctx, value)
	}
	return WrapError(r.op("create"), err)
}

// Set overwrites the document.
func (r *BaseRepository[T]) Set(ctx context.Context, id string, value T) error {
	ref, err := r.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if tx, ok := TxFromContext(ctx); ok {
		err = tx.Set(ref, value)
	} else {
		_, err = ref.Set(ctx, value)
	}
	return WrapError(r.op("set"), err)
}

// Delete removes the document. Deleting a missing document reports not found.
func (r *BaseRepository[T]) Delete(ctx context.Context, id string) error {
	ref, err := r.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if tx, ok := TxFromContext(ctx); ok {
		err = tx.Delete(ref, firestore.Exists)
	} else {
		_, err = ref.Delete(ctx, firestore.Exists)
	}
	return WrapError(r.op("delete"), err)
}

// Query executes a collection query and returns the decoded documents.
func (r *BaseRepository[T]) Query(ctx context.Context, build QueryBuilder) ([]Document[T], error) {
	query, err := r.query(ctx, build)
	if err != nil {
		return nil, err
	}

	var iter *firestore.DocumentIterator
	if tx, ok := TxFromContext(ctx); ok {
		iter = tx.Documents(query)
	} else {
		iter = query.Documents(ctx)
	}
	defer iter.Stop()

	var docs []Document[T]
	for {
		snapshot, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, WrapError(r.op("query"), err)
		}
		decoded, err := decodeSnapshot[T](snapshot)
		if err != nil {
			return nil, err
		}
		docs = append(docs, decoded)
	}
	return docs, nil
}

// Count returns the number of documents matched by the query using a server-side aggregation.
func (r *BaseRepository[T]) Count(ctx context.Context, build QueryBuilder) (int, error) {
	query, err := r.query(ctx, build)
	if err != nil {
		return 0, err
	}
	result, err := query.NewAggregationQuery().WithCount(countAlias).Get(ctx)
	if err != nil {
		return 0, WrapError(r.op("count"), err)
	}
	value, ok := result[countAlias].(*firestorepb.Value)
	if !ok {
		return 0, fmt.Errorf("firestore: unexpected count result %T", result[countAlias])
	}
	return int(value.GetIntegerValue()), nil
}

// Page returns the documents of a 1-based page together with the total match count.
func (r *BaseRepository[T]) Page(ctx context.Context, build QueryBuilder, pageNumber, pageSize int) ([]Document[T], int, error) {
	if pageNumber < 1 || pageSize < 1 {
		return nil, 0, fmt.Errorf("firestore: invalid page %d/%d", pageNumber, pageSize)
	}
	total, err := r.Count(ctx, build)
	if err != nil {
		return nil, 0, err
	}
	pages := total / pageSize
	if total%pageSize != 0 {
		pages++
	}
	if pageNumber > pages {
		return nil, total, nil
	}
	offset := (pageNumber - 1) * pageSize
	docs, err := r.Query(ctx, func(q firestore.Query) firestore.Query {
		if build != nil {
			q = build(q)
		}
		return q.Offset(offset).Limit(pageSize)
	})
	if err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

// DocumentRef exposes the underlying document reference for advanced scenarios such as transactions.
func (r *BaseRepository[T]) DocumentRef(ctx context.Context, id string) (*firestore.DocumentRef, error) {
	if strings.TrimSpace(id) == "" {
		return nil, WrapError(r.op("document"), errors.New("firestore: document id is required"))
	}
	coll, err := r.collectionRef(ctx)
	if err != nil {
		return nil, err
	}
	return coll.Doc(id), nil
}

func (r *BaseRepository[T]) query(ctx context.Context, build QueryBuilder) (firestore.Query, error) {
	coll, err := r.collectionRef(ctx)
	if err != nil {
		return firestore.Query{}, err
	}
	query := coll.Query
	if build != nil {
		query = build(query)
	}
	return query, nil
}

func (r *BaseRepository[T]) collectionRef(ctx context.Context) (*firestore.CollectionRef, error) {
	if r == nil || r.provider == nil {
		return nil, WrapError(r.op("collection"), errors.New("firestore: provider is nil"))
	}
	if r.collection == "" {
		return nil, WrapError(r.op("collection"), errors.New("firestore: collection name is required"))
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(r.collection), nil
}

func (r *BaseRepository[T]) op(action string) string {
	name := "firestore"
	if r != nil && r.collection != "" {
		name = r.collection
	}
	return fmt.Sprintf("%s.%s", name, strings.ToLower(action))
}

func decodeSnapshot[T any](snapshot *firestore.DocumentSnapshot) (Document[T], error) {
	var data T
	if err := snapshot.DataTo(&data); err != nil {
		return Document[T]{}, fmt.Errorf("firestore: decode document %s: %w", snapshot.Ref.ID, err)
	}
	return Document[T]{
		ID:         snapshot.Ref.ID,
		Data:       data,
		CreateTime: snapshot.CreateTime,
		UpdateTime: snapshot.UpdateTime,
	}, nil
}
