package postgres

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/itemgrid/itemgrid/internal/app/domain/item"
	"github.com/itemgrid/itemgrid/internal/app/storage"
	"github.com/itemgrid/itemgrid/internal/platform/migrations"
)

func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := migrations.Apply(ctx, db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	store := New(db)

	created, err := store.CreateItem(ctx, item.Item{Attributes: map[string]any{"name": "a"}})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	if created.ID == "" {
		t.Fatal("create item: empty ID")
	}
	defer store.DeleteItem(ctx, created.ID)

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
	if len(items) == 0 {
		t.Error("list items: expected at least one")
	}
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func TestGetItem_NotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, attributes").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetItem(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetItem() error = %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCreateItem_UniqueViolation(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO app_items").
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := store.CreateItem(context.Background(), item.Item{ID: "dup"})
	if !errors.Is(err, storage.ErrExists) {
		t.Errorf("CreateItem() error = %v, want ErrExists", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestUpdateItem_RowVanished(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT id, attributes").
		WithArgs("item-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "attributes", "created_at", "updated_at"}).
			AddRow("item-1", []byte(`{"name":"a"}`), now, now))
	mock.ExpectExec("UPDATE app_items").
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := store.UpdateItem(context.Background(), item.Item{ID: "item-1", Attributes: map[string]any{"name": "z"}})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("UpdateItem() error = %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestDeleteItem_NotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM app_items").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.DeleteItem(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("DeleteItem() error = %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
