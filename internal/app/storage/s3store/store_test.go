package s3store

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/itemgrid/itemgrid/internal/app/domain/item"
	"github.com/itemgrid/itemgrid/internal/app/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	endpoint := os.Getenv("TEST_S3_ENDPOINT")
	bucket := os.Getenv("TEST_S3_BUCKET")
	if endpoint == "" || bucket == "" {
		t.Skip("TEST_S3_ENDPOINT or TEST_S3_BUCKET not set; skipping s3 integration test")
	}

	store, err := New(Config{
		Endpoint:  endpoint,
		Region:    envOr("TEST_S3_REGION", "auto"),
		AccessKey: os.Getenv("TEST_S3_ACCESS_KEY"),
		SecretKey: os.Getenv("TEST_S3_SECRET_KEY"),
		Bucket:    bucket,
	})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestStoreLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.CreateItem(ctx, item.Item{Attributes: map[string]any{"name": "a"}})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	if created.ID == "" {
		t.Fatal("create item: empty ID")
	}
	defer store.DeleteItem(ctx, created.ID)

	if _, err := store.CreateItem(ctx, item.Item{ID: created.ID}); !errors.Is(err, storage.ErrExists) {
		t.Errorf("duplicate create error = %v, want ErrExists", err)
	}

	updated, err := store.UpdateItem(ctx, item.Item{ID: created.ID, Attributes: map[string]any{"name": "z"}})
	if err != nil {
		t.Fatalf("update item: %v", err)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("CreatedAt changed on update: %v != %v", updated.CreatedAt, created.CreatedAt)
	}

	got, err := store.GetItem(ctx, created.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if got.Attributes["name"] != "z" {
		t.Errorf("Attributes[name] = %v, want z", got.Attributes["name"])
	}

	items, err := store.ListItems(ctx)
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	found := false
	for _, it := range items {
		if it.ID == created.ID {
			found = true
		}
	}
	if !found {
		t.Errorf("list items: %s missing from listing", created.ID)
	}

	if err := store.DeleteItem(ctx, created.ID); err != nil {
		t.Fatalf("delete item: %v", err)
	}
	if err := store.DeleteItem(ctx, created.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second delete error = %v, want ErrNotFound", err)
	}
}

func TestNew_RequiresBucket(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for missing bucket")
	}
}
