package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTicketLocksSerializeSameKey(t *testing.T) {
	locks := newTicketLocks()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := locks.Lock(7)
			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()

			mu.Lock()
			active--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
	assert.Zero(t, locks.size())
}

func TestTicketLocksIndependentKeys(t *testing.T) {
	locks := newTicketLocks()
	releaseA := locks.Lock(1)
	done := make(chan struct{})
	go func() {
		release := locks.Lock(2)
		release()
		close(done)
	}()
	<-done
	assert.Equal(t, 1, locks.size())
	releaseA()
	assert.Zero(t, locks.size())
}
