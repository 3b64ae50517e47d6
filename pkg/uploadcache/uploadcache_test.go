package uploadcache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/faas"
)

type countingUploader struct {
	calls   int32
	delay   time.Duration
	nextID  int32
	failing bool
}

func (u *countingUploader) UploadFunction(ctx context.Context, c faas.Callable, fingerprint string) (int, error) {
	atomic.AddInt32(&u.calls, 1)
	if u.delay > 0 {
		time.Sleep(u.delay)
	}
	if u.failing {
		return 0, errUpload
	}
	return int(atomic.AddInt32(&u.nextID, 1)), nil
}

var errUpload = &uploadErr{}

type uploadErr struct{}

func (*uploadErr) Error() string { return "upload failed" }

func TestLookupOrUpload_CacheHit(t *testing.T) {
	c := New()
	u := &countingUploader{}
	fn := faas.Callable{FunctionID: "fn-echo", Payload: []byte("echo")}

	id1, err := c.LookupOrUpload(context.Background(), u, fn)
	if err != nil {
		t.Fatalf("first upload failed: %v", err)
	}
	id2, err := c.LookupOrUpload(context.Background(), u, fn)
	if err != nil {
		t.Fatalf("second upload failed: %v", err)
	}

	if id1 != id2 {
		t.Errorf("second call should observe cached id: got %d, want %d", id2, id1)
	}
	if atomic.LoadInt32(&u.calls) != 1 {
		t.Errorf("uploader called %d times, want 1", u.calls)
	}
}

func TestLookupOrUpload_DistinctFingerprints(t *testing.T) {
	c := New()
	u := &countingUploader{}

	fn1 := faas.Callable{Payload: []byte("a")}
	fn2 := faas.Callable{Payload: []byte("b")}

	c.LookupOrUpload(context.Background(), u, fn1)
	c.LookupOrUpload(context.Background(), u, fn2)

	if atomic.LoadInt32(&u.calls) != 2 {
		t.Errorf("uploader called %d times, want 2", u.calls)
	}
}

// TestLookupOrUpload_ConcurrentCoalesced reproduces P1: concurrent
// submissions of the same function body result in exactly one
// upload.
func TestLookupOrUpload_ConcurrentCoalesced(t *testing.T) {
	c := New()
	u := &countingUploader{delay: 20 * time.Millisecond}
	fn := faas.Callable{Payload: []byte("shared body")}

	var wg sync.WaitGroup
	ids := make([]int, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := c.LookupOrUpload(context.Background(), u, fn)
			if err != nil {
				t.Errorf("LookupOrUpload() failed: %v", err)
			}
			ids[i] = id
		}(i)
	}
	wg.Wait()

	if atomic.LoadInt32(&u.calls) != 1 {
		t.Errorf("uploader called %d times, want 1", u.calls)
	}
	for _, id := range ids {
		if id != ids[0] {
			t.Errorf("all callers should observe the same id, got %v", ids)
			break
		}
	}
}

func TestLookupOrUpload_FailureNotCached(t *testing.T) {
	c := New()
	u := &countingUploader{failing: true}
	fn := faas.Callable{Payload: []byte("broken")}

	_, err := c.LookupOrUpload(context.Background(), u, fn)
	if err == nil {
		t.Fatal("expected upload error")
	}
	if _, ok := c.Lookup(Fingerprint(fn.Payload)); ok {
		t.Error("failed upload should not be cached")
	}

	u.failing = false
	id, err := c.LookupOrUpload(context.Background(), u, fn)
	if err != nil {
		t.Fatalf("retry should succeed: %v", err)
	}
	if id == 0 {
		t.Error("expected non-zero id on retry")
	}
}

func TestFingerprint_Deterministic(t *testing.T) {
	a := Fingerprint([]byte("same content"))
	b := Fingerprint([]byte("same content"))
	c := Fingerprint([]byte("different content"))

	if a != b {
		t.Error("fingerprint should be deterministic for identical payloads")
	}
	if a == c {
		t.Error("fingerprint should differ for different payloads")
	}
}
