// Package logrotate implements size-triggered archival of log files with a
// bounded number of generations, plus age-based cleanup of the archives.
package logrotate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const logFilePerm = 0o644

var rotatedName = regexp.MustCompile(`\.\d+\.log$`)

// Rotate archives path once it exceeds maxSize bytes. Existing generations
// shift from name.1.log up to name.keep.log, the oldest falling off the end;
// the live file becomes name.1.log and a fresh file with a rotation notice
// takes its place. A file at or under the threshold is left alone.
func Rotate(path string, maxSize int64, keep int) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.Size() <= maxSize {
		return nil
	}
	if keep < 1 {
		keep = 1
	}

	stem := strings.TrimSuffix(path, filepath.Ext(path))
	generation := func(i int) string {
		return fmt.Sprintf("%s.%d.log", stem, i)
	}

	for i := keep - 1; i >= 1; i-- {
		old := generation(i)
		if _, err := os.Stat(old); err == nil {
			if err := os.Rename(old, generation(i+1)); err != nil {
				return err
			}
		}
	}
	if err := os.Rename(path, generation(1)); err != nil {
		return err
	}

	notice := fmt.Sprintf("%s [INFO] log rotated (previous log exceeded %d bytes)\n",
		time.Now().Format("2006-01-02 15:04:05"), maxSize)
	return os.WriteFile(path, []byte(notice), logFilePerm)
}

// PurgeOlderThan removes rotated generations (name.N.log files) in dir whose
// modification time is older than age. Reports how many were deleted.
func PurgeOlderThan(dir string, age time.Duration) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	cutoff := time.Now().Add(-age)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !rotatedName.MatchString(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(dir, entry.Name())); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}
