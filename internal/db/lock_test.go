//go:build unix

package db

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestImportLockAcquireRelease(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "pollexa.db")
	lock := newImportLock(dbPath)

	if err := lock.acquire(500 * time.Millisecond); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	data, err := os.ReadFile(dbPath + ".lock")
	if err != nil {
		t.Fatalf("read lock file: %v", err)
	}
	if !strings.HasPrefix(string(data), "pid:") {
		t.Errorf("lock file should name the holder, got %q", data)
	}

	lock.release()
	lock.release() // second release is a no-op
}

func TestImportLockSerializes(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "pollexa.db")

	var counter int64
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				lock := newImportLock(dbPath)
				if err := lock.acquire(5 * time.Second); err != nil {
					t.Errorf("acquire failed: %v", err)
					return
				}
				val := atomic.LoadInt64(&counter)
				time.Sleep(time.Millisecond)
				atomic.StoreInt64(&counter, val+1)
				lock.release()
			}
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("counter = %d, want 50", counter)
	}
}

func TestImportLockTimeout(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "pollexa.db")

	first := newImportLock(dbPath)
	if err := first.acquire(500 * time.Millisecond); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	defer first.release()

	second := newImportLock(dbPath)
	start := time.Now()
	err := second.acquire(100 * time.Millisecond)
	elapsed := time.Since(start)
	if err == nil {
		second.release()
		t.Fatal("expected timeout error")
	}
	if elapsed < 80*time.Millisecond {
		t.Errorf("gave up after %v, want ~100ms", elapsed)
	}
	if !strings.Contains(err.Error(), "pid ") {
		t.Errorf("error should name the holder: %v", err)
	}
}

func TestImportLockReleaseLetsOthersIn(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "pollexa.db")

	first := newImportLock(dbPath)
	if err := first.acquire(500 * time.Millisecond); err != nil {
		t.Fatal(err)
	}
	first.release()

	second := newImportLock(dbPath)
	start := time.Now()
	if err := second.acquire(500 * time.Millisecond); err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
	defer second.release()
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("acquire after release took %v", elapsed)
	}
}

func TestImportWaitsForLock(t *testing.T) {
	path := seed(t, testPolls())

	held := newImportLock(path)
	if err := held.acquire(time.Second); err != nil {
		t.Fatal(err)
	}

	database, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer database.Close()

	done := make(chan error, 1)
	go func() { done <- database.ImportPolls(context.Background(), testPolls()[:1]) }()

	select {
	case err := <-done:
		t.Fatalf("import finished while the lock was held: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	held.release()
	if err := <-done; err != nil {
		t.Fatalf("import failed after release: %v", err)
	}
	n, err := database.CountPolls(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("CountPolls = %d, want 1", n)
	}
}
