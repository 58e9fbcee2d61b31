//go:build !windows

package main

import (
	"fmt"
	"os"
)

// acquireInstanceLock enforces single-instance operation with an
// O_EXCL-created lock file, grounded on the teacher's main.go
// acquireInstanceLock: multiple instances would race on the same CAS
// storage root and relational store.
func acquireInstanceLock() (*os.File, error) {
	lockFilePath := "locusd.lock"

	lockFile, err := os.OpenFile(lockFilePath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("lock file exists - another instance may be running")
		}
		return nil, fmt.Errorf("failed to create lock file: %w", err)
	}

	if _, err := fmt.Fprintf(lockFile, "%d\n", os.Getpid()); err != nil {
		lockFile.Close()
		os.Remove(lockFilePath)
		return nil, fmt.Errorf("failed to write to lock file: %w", err)
	}

	return lockFile, nil
}

// releaseInstanceLock removes the lock file created by acquireInstanceLock.
// Safe to call with nil.
func releaseInstanceLock(lockFile *os.File) {
	if lockFile != nil {
		lockFile.Close()
		os.Remove(lockFile.Name())
	}
}
