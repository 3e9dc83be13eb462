package config

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimits(t *testing.T) {
	l := NewLimits(50)
	require.EqualValues(t, 50*1024*1024, l.MaxFileSize())
	require.EqualValues(t, 50, l.MaxFileSizeMB())

	require.NoError(t, l.SetMaxFileSizeMB(20))
	require.EqualValues(t, 20*1024*1024, l.MaxFileSize())

	require.Error(t, l.SetMaxFileSizeMB(0))
	require.Error(t, l.SetMaxFileSizeMB(-5))
	require.EqualValues(t, 20, l.MaxFileSizeMB())
}

func TestLimitsConcurrentAccess(t *testing.T) {
	l := NewLimits(50)

	var wg sync.WaitGroup
	for i := int64(1); i <= 16; i++ {
		wg.Add(2)
		go func(mb int64) {
			defer wg.Done()
			_ = l.SetMaxFileSizeMB(mb)
		}(i)
		go func() {
			defer wg.Done()
			assert.Positive(t, l.MaxFileSize())
		}()
	}
	wg.Wait()
}
