package scanify

import (
	"runtime"
	"sync"
)

var (
	workerSemOnce sync.Once
	workerSem     chan struct{}
)

// parallelFor runs fn over contiguous chunks of [0, n). Every caller in the
// process shares one semaphore of GOMAXPROCS slots, so concurrent page
// renders do not multiply goroutines.
func parallelFor(n int, fn func(start, end int)) {
	workerSemOnce.Do(func() {
		workerSem = make(chan struct{}, max(runtime.GOMAXPROCS(0), 1))
	})
	chunks := min(cap(workerSem), n)
	if chunks <= 1 {
		if n > 0 {
			fn(0, n)
		}
		return
	}

	size := (n + chunks - 1) / chunks
	var wg sync.WaitGroup
	for start := 0; start < n; start += size {
		end := min(start+size, n)
		workerSem <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() {
				<-workerSem
				wg.Done()
			}()
			fn(start, end)
		}()
	}
	wg.Wait()
}

var planePool sync.Pool // *[]float32

// getFloat32 returns a scratch plane of length n. Contents are undefined.
func getFloat32(n int) []float32 {
	if p, ok := planePool.Get().(*[]float32); ok && cap(*p) >= n {
		return (*p)[:n]
	}
	return make([]float32, n)
}

func putFloat32(buf []float32) {
	buf = buf[:0]
	planePool.Put(&buf)
}
