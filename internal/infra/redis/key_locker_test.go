package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

func TestKeyLockerSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	locker := NewKeyLocker(newClient(mr), time.Minute)
	unlock, err := locker.Lock(context.Background(), "7:u1")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if !mr.Exists("qa:lock:7:u1") {
		t.Fatalf("expected redis key to be set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := locker.Lock(ctx, "7:u1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected second lock to time out, got %v", err)
	}

	unlock()
	if mr.Exists("qa:lock:7:u1") {
		t.Fatalf("expected redis key to be removed")
	}

	again, err := locker.Lock(context.Background(), "7:u1")
	if err != nil {
		t.Fatalf("relock: %v", err)
	}
	again()
}

func TestKeyLockerDoesNotReleaseForeignLock(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	locker := NewKeyLocker(newClient(mr), time.Second)
	stale, err := locker.Lock(context.Background(), "k")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	mr.FastForward(2 * time.Second)
	fresh, err := locker.Lock(context.Background(), "k")
	if err != nil {
		t.Fatalf("lock after expiry: %v", err)
	}
	defer fresh()

	stale()
	if !mr.Exists("qa:lock:k") {
		t.Fatalf("expired holder released someone else's lock")
	}
}
