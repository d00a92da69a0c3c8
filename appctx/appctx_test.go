package appctx

import (
	"errors"
	"sync"
	"testing"
)

func TestSetGet(t *testing.T) {
	s := New()

	if err := s.Set(KeyHostingEnabled, true); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if !s.Bool(KeyHostingEnabled) {
		t.Error("expected hosting enabled")
	}

	s.Set(KeyHostedFileName, map[string]any{"filename": "part.jt"})
	v, ok := s.Get(KeyHostedFileName)
	if !ok {
		t.Fatal("missing key")
	}
	if v.(map[string]any)["filename"] != "part.jt" {
		t.Errorf("got %v", v)
	}

	if s.String(KeyHostedFileName) != "" {
		t.Error("String should be empty for non-string value")
	}
}

func TestDelete(t *testing.T) {
	s := New()
	s.Set("foo", "bar")
	s.Delete("foo")

	if s.Has("foo") {
		t.Error("expected key deleted")
	}
}

func TestEmptyKey(t *testing.T) {
	s := New()
	if err := s.Set("", 1); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("err = %v, want ErrEmptyKey", err)
	}
}

func TestMaxEntries(t *testing.T) {
	s := New(WithMaxEntries(2))
	s.Set("a", 1)
	s.Set("b", 2)

	if err := s.Set("c", 3); !errors.Is(err, ErrFull) {
		t.Errorf("err = %v, want ErrFull", err)
	}
	if err := s.Set("a", 10); err != nil {
		t.Errorf("overwrite failed: %v", err)
	}

	keys := s.Keys()
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Errorf("keys = %v", keys)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	s := New()
	s.Set("a", 1)
	snap := s.Snapshot()
	snap["b"] = 2

	if s.Has("b") {
		t.Error("snapshot mutation leaked into store")
	}
}

func TestConcurrentAccess(t *testing.T) {
	s := New()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Set("key", "value")
		}()
		go func() {
			defer wg.Done()
			s.Get("key")
		}()
	}

	wg.Wait()
}
