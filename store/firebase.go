package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"staff-portal/config"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"google.golang.org/api/option"
)

// firebaseRef is the slice of *db.Ref the store relies on.
type firebaseRef interface {
	Get(ctx context.Context, v interface{}) error
	Push(ctx context.Context, v interface{}) (string, error)
	Set(ctx context.Context, v interface{}) error
	Update(ctx context.Context, v map[string]interface{}) error
	Delete(ctx context.Context) error
	EqualTo(ctx context.Context, field string, value interface{}) ([]db.QueryNode, error)
}

type dbRef struct {
	ref *db.Ref
}

func (r dbRef) Get(ctx context.Context, v interface{}) error {
	return r.ref.Get(ctx, v)
}

func (r dbRef) Push(ctx context.Context, v interface{}) (string, error) {
	child, err := r.ref.Push(ctx, v)
	if err != nil {
		return "", err
	}
	return child.Key, nil
}

func (r dbRef) Set(ctx context.Context, v interface{}) error {
	return r.ref.Set(ctx, v)
}

func (r dbRef) Update(ctx context.Context, v map[string]interface{}) error {
	return r.ref.Update(ctx, v)
}

func (r dbRef) Delete(ctx context.Context) error {
	return r.ref.Delete(ctx)
}

func (r dbRef) EqualTo(ctx context.Context, field string, value interface{}) ([]db.QueryNode, error) {
	return r.ref.OrderByChild(field).EqualTo(value).GetOrdered(ctx)
}

var (
	newFirebaseApp = firebase.NewApp
	openDatabase   = func(ctx context.Context, app *firebase.App) (*db.Client, error) {
		return app.Database(ctx)
	}
)

// FirebaseStore talks to a Firebase Realtime Database. Equality reads need an
// ".indexOn" rule for the filtered field.
type FirebaseStore struct {
	newRef func(path string) firebaseRef
}

func NewFirebaseStore(client *db.Client) *FirebaseStore {
	return &FirebaseStore{newRef: func(path string) firebaseRef {
		return dbRef{ref: client.NewRef(path)}
	}}
}

// OpenFirebase initialises the Firebase app from cfg and returns a store bound
// to its database.
func OpenFirebase(ctx context.Context, cfg config.FirebaseConfig) (*FirebaseStore, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("firebase database URL is empty")
	}
	var opts []option.ClientOption
	switch {
	case cfg.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := newFirebaseApp(ctx, &firebase.Config{
		DatabaseURL: cfg.DatabaseURL,
		ProjectID:   cfg.ProjectID,
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialise firebase app: %w", err)
	}
	client, err := openDatabase(ctx, app)
	if err != nil {
		return nil, fmt.Errorf("open firebase database: %w", err)
	}
	return NewFirebaseStore(client), nil
}

func (f *FirebaseStore) ref(path string) (firebaseRef, error) {
	segments, err := SplitPath(path)
	if err != nil {
		return nil, err
	}
	return f.newRef(Join(segments...)), nil
}

func (f *FirebaseStore) ReadAll(ctx context.Context, path string) (Snapshot, error) {
	ref, err := f.ref(path)
	if err != nil {
		return Snapshot{}, err
	}
	var raw json.RawMessage
	if err := ref.Get(ctx, &raw); err != nil {
		return Snapshot{}, fmt.Errorf("read %s: %w", path, err)
	}
	return decodeSnapshot(raw)
}

func (f *FirebaseStore) ReadFiltered(ctx context.Context, path, field string, value any) ([]Child, error) {
	ref, err := f.ref(path)
	if err != nil {
		return nil, err
	}
	if _, err := SplitPath(field); err != nil {
		return nil, err
	}
	nodes, err := ref.EqualTo(ctx, field, value)
	if err != nil {
		return nil, fmt.Errorf("query %s by %s: %w", path, field, err)
	}
	children := make([]Child, 0, len(nodes))
	for _, node := range nodes {
		var raw json.RawMessage
		if err := node.Unmarshal(&raw); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", path, node.Key(), err)
		}
		children = append(children, Child{Key: node.Key(), Value: raw})
	}
	return children, nil
}

func (f *FirebaseStore) PushNew(ctx context.Context, path string, value any) (string, error) {
	ref, err := f.ref(path)
	if err != nil {
		return "", err
	}
	key, err := ref.Push(ctx, value)
	if err != nil {
		return "", fmt.Errorf("push %s: %w", path, err)
	}
	return key, nil
}

func (f *FirebaseStore) SetAt(ctx context.Context, path string, value any) error {
	ref, err := f.ref(path)
	if err != nil {
		return err
	}
	if value == nil {
		return f.delete(ctx, ref, path)
	}
	if err := ref.Set(ctx, value); err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	return nil
}

func (f *FirebaseStore) UpdateAt(ctx context.Context, path string, fields map[string]any) error {
	ref, err := f.ref(path)
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}
	for field := range fields {
		if _, err := SplitPath(field); err != nil {
			return err
		}
	}
	if err := ref.Update(ctx, fields); err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}
	return nil
}

func (f *FirebaseStore) DeleteAt(ctx context.Context, path string) error {
	ref, err := f.ref(path)
	if err != nil {
		return err
	}
	return f.delete(ctx, ref, path)
}

func (f *FirebaseStore) delete(ctx context.Context, ref firebaseRef, path string) error {
	if err := ref.Delete(ctx); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}
