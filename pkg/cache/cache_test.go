package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	if err := c.Set(ctx, "key", []byte("value"), time.Hour); err != nil {
		t.Errorf("Set() error = %v", err)
	}
	data, ok, err := c.Get(ctx, "key")
	if err != nil {
		t.Errorf("Get() error = %v", err)
	}
	if ok || data != nil {
		t.Errorf("Get() = %q, %v; want miss", data, ok)
	}
	if err := c.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete() error = %v", err)
	}
}

func TestFileCache(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c, err := NewFileCache(dir)
	if err != nil {
		t.Fatalf("NewFileCache() error = %v", err)
	}
	defer c.Close()

	if _, ok, _ := c.Get(ctx, "missing"); ok {
		t.Error("Get(missing) hit")
	}

	if err := c.Set(ctx, "k", []byte("hello"), 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	data, ok, err := c.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v", ok, err)
	}
	if string(data) != "hello" {
		t.Errorf("Get() = %q, want %q", data, "hello")
	}

	if err := c.Delete(ctx, "k"); err != nil {
		t.Errorf("Delete() error = %v", err)
	}
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("Get() after Delete hit")
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Errorf("Delete(missing) error = %v", err)
	}

	if got := c.(*FileCache).Dir(); got != dir {
		t.Errorf("Dir() = %q, want %q", got, dir)
	}
}

func TestFileCacheClear(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "cache")
	c, err := NewFileCache(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"a", "b", "c"} {
		if err := c.Set(ctx, k, []byte(k), 0); err != nil {
			t.Fatal(err)
		}
	}

	n, err := c.(Clearer).Clear(ctx)
	if err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if n != 3 {
		t.Errorf("Clear() = %d, want 3", n)
	}
	if _, ok, _ := c.Get(ctx, "a"); ok {
		t.Error("entry survived Clear")
	}
	left, _ := os.ReadDir(dir)
	if len(left) != 0 {
		t.Errorf("%d shard dirs left after Clear", len(left))
	}

	missing := &FileCache{dir: filepath.Join(dir, "nope")}
	if n, err := missing.Clear(ctx); n != 0 || err != nil {
		t.Errorf("Clear(missing dir) = %d, %v", n, err)
	}
}

func TestFileCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Set(ctx, "k", []byte("v"), time.Nanosecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("expired entry returned")
	}
	if _, err := os.Stat(c.(*FileCache).path("k")); !os.IsNotExist(err) {
		t.Errorf("expired entry not removed: %v", err)
	}
}

func TestFileCacheCorruptEntry(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	path := c.(*FileCache).path("k")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := c.Get(ctx, "k"); ok || err != nil {
		t.Errorf("Get(corrupt) = %v, %v; want miss", ok, err)
	}
}

func TestHash(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{"abc", "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
	}
	for _, tt := range tests {
		if got := Hash([]byte(tt.input)); got != tt.want {
			t.Errorf("Hash(%q) = %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestDefaultKeyer(t *testing.T) {
	k := NewDefaultKeyer()
	opts := OffsetKeyOpts{Metric: "rgb"}

	key := k.OffsetKey("aa", "bb", opts)
	if !strings.HasPrefix(key, "offset:") {
		t.Errorf("OffsetKey() = %q, want offset: prefix", key)
	}
	if again := k.OffsetKey("aa", "bb", opts); again != key {
		t.Errorf("OffsetKey() not deterministic: %q vs %q", key, again)
	}

	tests := []struct {
		name string
		a, b string
		opts OffsetKeyOpts
	}{
		{"swapped", "bb", "aa", opts},
		{"other metric", "aa", "bb", OffsetKeyOpts{Metric: "lab"}},
		{"other image", "aa", "cc", opts},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := k.OffsetKey(tt.a, tt.b, tt.opts); got == key {
				t.Errorf("OffsetKey() collided with base key %q", key)
			}
		})
	}
}

func TestScopedKeyer(t *testing.T) {
	inner := NewDefaultKeyer()
	k := NewScopedKeyer(inner, "api:")
	opts := OffsetKeyOpts{Metric: "rgb"}

	want := "api:" + inner.OffsetKey("a", "b", opts)
	if got := k.OffsetKey("a", "b", opts); got != want {
		t.Errorf("OffsetKey() = %q, want %q", got, want)
	}
}

func TestScopedKeyerNilInner(t *testing.T) {
	k := NewScopedKeyer(nil, "x:")
	if got := k.OffsetKey("a", "b", OffsetKeyOpts{}); !strings.HasPrefix(got, "x:offset:") {
		t.Errorf("OffsetKey() = %q, want x:offset: prefix", got)
	}
}

func TestRetryableError(t *testing.T) {
	base := errors.New("boom")

	if Retryable(nil) != nil {
		t.Error("Retryable(nil) != nil")
	}
	err := Retryable(base)
	if !IsRetryable(err) {
		t.Error("IsRetryable(Retryable(err)) = false")
	}
	if !errors.Is(err, base) {
		t.Error("Retryable error does not unwrap to base")
	}
	if err.Error() != "boom" {
		t.Errorf("Error() = %q", err.Error())
	}
	if IsRetryable(base) {
		t.Error("IsRetryable(plain) = true")
	}
}

func TestRetryWithBackoff(t *testing.T) {
	b := Backoff{Attempts: 3, Delay: time.Millisecond}

	tests := []struct {
		name      string
		failures  int
		retryable bool
		wantCalls int
		wantErr   bool
	}{
		{"success", 0, true, 1, false},
		{"recovers", 2, true, 3, false},
		{"exhausted", 5, true, 3, true},
		{"permanent", 5, false, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := b.Do(context.Background(), func() error {
				calls++
				if calls <= tt.failures {
					if tt.retryable {
						return Retryable(errors.New("transient"))
					}
					return errors.New("permanent")
				}
				return nil
			})
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestRetryWithBackoffContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := RetryWithBackoff(ctx, func() error {
		calls++
		return Retryable(errors.New("transient"))
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

// TestRedisCache runs against a live server when STITCH_TEST_REDIS_URL is set.
func TestRedisCache(t *testing.T) {
	url := os.Getenv("STITCH_TEST_REDIS_URL")
	if url == "" {
		t.Skip("STITCH_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	c, err := NewRedisCache(ctx, url, "stitch-test:")
	if err != nil {
		t.Fatalf("NewRedisCache() error = %v", err)
	}
	defer c.Close()

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	data, ok, err := c.Get(ctx, "k")
	if err != nil || !ok || string(data) != "v" {
		t.Errorf("Get() = %q, %v, %v", data, ok, err)
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Errorf("Delete() error = %v", err)
	}
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("Get() after Delete hit")
	}

	c.Set(ctx, "x", []byte("1"), time.Minute)
	if n, err := c.Clear(ctx); err != nil || n < 1 {
		t.Errorf("Clear() = %d, %v", n, err)
	}
}

func TestNewRedisCacheBadURL(t *testing.T) {
	if _, err := NewRedisCache(context.Background(), "not-a-url", ""); err == nil {
		t.Error("NewRedisCache(bad url) error = nil")
	}
}
