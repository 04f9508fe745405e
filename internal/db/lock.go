package db

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// importLockTimeout bounds how long an import waits for another one
	importLockTimeout = 2 * time.Second
	initialBackoff    = 5 * time.Millisecond
	maxBackoff        = 50 * time.Millisecond
)

// importLock serializes imports into one database file across processes.
// It is an OS file lock next to the database, so a crashed holder never
// leaves it stuck.
type importLock struct {
	path string
	file *os.File
}

func newImportLock(dbPath string) *importLock {
	return &importLock{path: dbPath + ".lock"}
}

// acquire waits up to timeout for the lock. On timeout the error names the
// current holder.
func (l *importLock) acquire(timeout time.Duration) error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	l.file = f

	deadline := time.Now().Add(timeout)
	for backoff := initialBackoff; ; backoff = min(backoff*2, maxBackoff) {
		if l.tryLock() == nil {
			l.recordHolder()
			return nil
		}
		if time.Now().After(deadline) {
			holder := l.holder()
			l.file.Close()
			l.file = nil
			return fmt.Errorf("database is being imported by another process (%s), waited %v", holder, timeout)
		}
		time.Sleep(backoff)
	}
}

func (l *importLock) release() {
	if l.file == nil {
		return
	}
	l.file.Truncate(0)
	l.unlock()
	l.file.Close()
	l.file = nil
}

// recordHolder writes "pid:<pid>\ntime:<rfc3339>" for whoever waits next
func (l *importLock) recordHolder() {
	l.file.Truncate(0)
	l.file.Seek(0, 0)
	fmt.Fprintf(l.file, "pid:%d\ntime:%s\n", os.Getpid(), time.Now().Format(time.RFC3339))
	l.file.Sync()
}

// holder describes the process named in the lock file
func (l *importLock) holder() string {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return "holder unknown"
	}

	var pid, since string
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if v, ok := strings.CutPrefix(line, "pid:"); ok {
			pid = v
		} else if v, ok := strings.CutPrefix(line, "time:"); ok {
			since = v
		}
	}
	if pid == "" {
		return "holder unknown"
	}

	if n, err := strconv.Atoi(pid); err == nil && !isProcessAlive(n) {
		return fmt.Sprintf("pid %s since %s, stale", pid, since)
	}
	return fmt.Sprintf("pid %s since %s", pid, since)
}
