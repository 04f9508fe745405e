//go:build unix

package db

import (
	"os"
	"syscall"
)

func (l *importLock) tryLock() error {
	return syscall.Flock(int(l.file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
}

func (l *importLock) unlock() {
	syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
}

// isProcessAlive probes pid with signal 0
func isProcessAlive(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return p.Signal(syscall.Signal(0)) == nil
}
