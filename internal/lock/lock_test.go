package lock

import (
	"sync"
	"testing"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	m := NewKeyedMutex()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Lock("build")
			defer m.Unlock("build")
			counter++
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("got %d, want 50", counter)
	}
}

func TestKeyedMutex_IndependentKeys(t *testing.T) {
	m := NewKeyedMutex()
	m.Lock("build")

	done := make(chan struct{})
	go func() {
		m.Lock("test")
		m.Unlock("test")
		close(done)
	}()
	<-done // must not deadlock while "build" is held

	m.Unlock("build")
}
