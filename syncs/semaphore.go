package syncs

import "sync"

// Semaphore bounds the number of concurrently running workers.
type Semaphore chan struct{}

func NewSemaphore(n int) Semaphore {
	return make(chan struct{}, max(n, 1))
}

func (s Semaphore) Acquire() {
	s <- struct{}{}
}

func (s Semaphore) Release() {
	<-s
}

// Go runs fn in a goroutine once a slot is available, tracked by wg.
func (s Semaphore) Go(wg *sync.WaitGroup, fn func()) {
	s.Acquire()
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer s.Release()
		fn()
	}()
}
