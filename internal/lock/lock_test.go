package lock

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func TestKeys(t *testing.T) {
	if got := PlaylistKey("pl1"); got != "playlist:pl1" {
		t.Fatalf("unexpected playlist key %q", got)
	}
	if got := StudioKey("st1"); got != "studio:st1" {
		t.Fatalf("unexpected studio key %q", got)
	}
	if scope(PlaylistKey("x")) != "playlist" || scope("nokey") != "other" {
		t.Fatal("unexpected scope")
	}
}

func TestMemoryLockerMutualExclusion(t *testing.T) {
	locker := NewMemoryLocker(zerolog.Nop())
	ctx := context.Background()

	var mu sync.Mutex
	inside := 0
	maxInside := 0

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lease, err := locker.Acquire(ctx, PlaylistKey("a"))
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			mu.Lock()
			inside++
			if inside > maxInside {
				maxInside = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			if err := lease.Release(ctx); err != nil {
				t.Errorf("release: %v", err)
			}
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Fatalf("expected exclusive access, saw %d concurrent holders", maxInside)
	}
	if locker.held() != 0 {
		t.Fatalf("expected all keys released, %d remain", locker.held())
	}
}

func TestMemoryLockerIndependentKeys(t *testing.T) {
	locker := NewMemoryLocker(zerolog.Nop())
	ctx := context.Background()

	a, err := locker.Acquire(ctx, PlaylistKey("a"))
	if err != nil {
		t.Fatalf("acquire a: %v", err)
	}
	defer a.Release(ctx)

	timeoutCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	b, err := locker.Acquire(timeoutCtx, PlaylistKey("b"))
	if err != nil {
		t.Fatalf("acquire b while a held: %v", err)
	}
	_ = b.Release(ctx)
}

func TestMemoryLockerTimeout(t *testing.T) {
	locker := NewMemoryLocker(zerolog.Nop())
	ctx := context.Background()

	held, err := locker.Acquire(ctx, StudioKey("s"))
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if _, err := locker.Acquire(timeoutCtx, StudioKey("s")); !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}

	if err := held.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := held.Release(ctx); !errors.Is(err, ErrNotHeld) {
		t.Fatalf("expected ErrNotHeld on double release, got %v", err)
	}
	if locker.held() != 0 {
		t.Fatalf("expected no keys after timeout and release, got %d", locker.held())
	}
}

func TestMemoryLockerFIFO(t *testing.T) {
	locker := NewMemoryLocker(zerolog.Nop())
	ctx := context.Background()

	first, err := locker.Acquire(ctx, PlaylistKey("fifo"))
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	order := make(chan int, 3)
	for i := 0; i < 3; i++ {
		i := i
		go func() {
			lease, err := locker.Acquire(ctx, PlaylistKey("fifo"))
			if err != nil {
				t.Errorf("acquire %d: %v", i, err)
				return
			}
			order <- i
			_ = lease.Release(ctx)
		}()
		// let each waiter block before starting the next
		time.Sleep(20 * time.Millisecond)
	}

	_ = first.Release(ctx)
	for want := 0; want < 3; want++ {
		if got := <-order; got != want {
			t.Fatalf("expected waiter %d, got %d", want, got)
		}
	}
}

func TestRedisLocker(t *testing.T) {
	addr := os.Getenv("GRIMNIR_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("GRIMNIR_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx := context.Background()
	cfg := RedisConfig{KeyPrefix: "grimnir:test:lock:", LeaseDuration: 300 * time.Millisecond, RetryInterval: 10 * time.Millisecond}
	a := NewRedisLocker(client, cfg, zerolog.Nop())
	b := NewRedisLocker(client, cfg, zerolog.Nop())

	lease, err := a.Acquire(ctx, PlaylistKey("redis"))
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	// held across several renewals
	time.Sleep(time.Second)
	timeoutCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	if _, err := b.Acquire(timeoutCtx, PlaylistKey("redis")); !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected second instance to time out, got %v", err)
	}

	if err := lease.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	other, err := b.Acquire(ctx, PlaylistKey("redis"))
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	_ = other.Release(ctx)
}
