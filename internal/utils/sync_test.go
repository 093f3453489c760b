package utils

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOptionalRWMutex_Disabled(t *testing.T) {
	var m OptionalRWMutex

	// Without the mutex, nested locking must not deadlock
	m.Lock()
	m.RLock()
	m.RUnlock()
	m.Unlock()
}

func TestOptionalRWMutex_Enabled(t *testing.T) {
	m := OptionalRWMutex{UseMutex: true}
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Lock()
				counter++
				m.Unlock()
			}
		}()
	}
	wg.Wait()

	m.RLock()
	defer m.RUnlock()
	require.Equal(t, 1600, counter)
}
