package secretstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/zalando/go-keyring"
)

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "password")

	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	if _, err := store.Read(ctx); err == nil {
		t.Fatal("Read() on missing file should fail")
	}

	if err := store.Write(ctx, " s3cret pass "); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("permissions = %04o, want 0600", perm)
	}

	got, err := store.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got != " s3cret pass " {
		t.Errorf("Read() = %q, want %q", got, " s3cret pass ")
	}
}

func TestFileStoreRejectsInsecurePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "password")
	if err := os.WriteFile(path, []byte("secret\n"), 0644); err != nil {
		t.Fatal(err)
	}

	store, err := NewFileStore(path)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := store.Read(context.Background()); err == nil {
		t.Fatal("Read() should refuse a world-readable file")
	}
}

func TestFileStoreEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "password")
	if err := os.WriteFile(path, []byte("\n"), 0600); err != nil {
		t.Fatal(err)
	}

	store, err := NewFileStore(path)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := store.Read(context.Background()); err == nil {
		t.Fatal("Read() should fail on empty file")
	}
	if err := store.Write(context.Background(), ""); err == nil {
		t.Fatal("Write() should refuse empty secret")
	}
}

func TestEnvStore(t *testing.T) {
	ctx := context.Background()

	if _, err := NewEnvStore(""); err == nil {
		t.Fatal("NewEnvStore(\"\") should fail")
	}

	store, err := NewEnvStore("TASKLET_TEST_PASSWORD")
	if err != nil {
		t.Fatalf("NewEnvStore() error = %v", err)
	}

	t.Setenv("TASKLET_TEST_PASSWORD", "")
	if _, err := store.Read(ctx); err == nil {
		t.Error("Read() of empty variable should fail")
	}

	t.Setenv("TASKLET_TEST_PASSWORD", "hunter2")
	got, err := store.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got != "hunter2" {
		t.Errorf("Read() = %q, want %q", got, "hunter2")
	}

	if err := store.Write(ctx, "other"); !errors.Is(err, ErrReadOnly) {
		t.Errorf("Write() error = %v, want ErrReadOnly", err)
	}
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()
	ctx := context.Background()

	store, err := NewKeyringStore("tasklet-test", "alice")
	if err != nil {
		t.Fatalf("NewKeyringStore() error = %v", err)
	}

	if _, err := store.Read(ctx); err == nil {
		t.Fatal("Read() before Write() should fail")
	}

	if err := store.Write(ctx, "hunter2"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := store.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got != "hunter2" {
		t.Errorf("Read() = %q, want %q", got, "hunter2")
	}
}

func TestStoresHonorCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fileStore, _ := NewFileStore(filepath.Join(t.TempDir(), "password"))
	envStore, _ := NewEnvStore("TASKLET_TEST_PASSWORD")
	keyringStore, _ := NewKeyringStore("tasklet-test", "bob")

	for name, store := range map[string]Store{
		"file":    fileStore,
		"env":     envStore,
		"keyring": keyringStore,
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := store.Read(ctx); !errors.Is(err, context.Canceled) {
				t.Errorf("Read() error = %v, want context.Canceled", err)
			}
			if err := store.Write(ctx, "x"); !errors.Is(err, context.Canceled) {
				t.Errorf("Write() error = %v, want context.Canceled", err)
			}
		})
	}
}
