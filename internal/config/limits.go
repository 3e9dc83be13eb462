package config

import (
	"fmt"
	"sync/atomic"
)

const bytesInMB = 1024 * 1024

// Limits holds settings an administrator may change while the process runs.
// Values are not persisted and reset to the configured defaults on restart.
type Limits struct {
	maxFileSize atomic.Int64
}

func NewLimits(maxFileSizeMB int64) *Limits {
	l := &Limits{}
	l.maxFileSize.Store(maxFileSizeMB * bytesInMB)
	return l
}

// MaxFileSize returns the delivery size ceiling in bytes.
func (l *Limits) MaxFileSize() int64 {
	return l.maxFileSize.Load()
}

func (l *Limits) MaxFileSizeMB() int64 {
	return l.maxFileSize.Load() / bytesInMB
}

func (l *Limits) SetMaxFileSizeMB(mb int64) error {
	if mb <= 0 {
		return fmt.Errorf("size limit must be positive, got %d", mb)
	}
	l.maxFileSize.Store(mb * bytesInMB)
	return nil
}
