package systems

import (
	"runtime"
	"sync"
)

// parallelThreshold is the minimum agent count to use parallel processing.
// Below this, single-threaded is faster due to goroutine overhead.
const parallelThreshold = 64

// workChunk represents a range of agents for a worker to process.
type workChunk struct {
	index      int
	start, end int
}

// BatchRunner steps a slice of agents across a persistent worker pool.
// Each agent is owned by exactly one chunk, and Run returns only after
// every chunk is done.
type BatchRunner struct {
	engine     *Engine
	numWorkers int

	// Valid only while Run is dispatching.
	agents []Agent
	in     *TickInput
	counts []TickCounters

	// Worker pool channels
	workChan chan workChunk // sends work to workers
	doneChan chan struct{}  // workers signal completion
	stopChan chan struct{}  // signals workers to exit
	wg       sync.WaitGroup // tracks active workers
	running  bool           // true if workers are running
}

// NewBatchRunner creates a runner with the given worker count, or
// GOMAXPROCS workers when workers <= 0.
func NewBatchRunner(engine *Engine, workers int) *BatchRunner {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &BatchRunner{
		engine:     engine,
		numWorkers: workers,
		counts:     make([]TickCounters, workers),
	}
}

// Workers returns the pool size.
func (r *BatchRunner) Workers() int {
	return r.numWorkers
}

// startWorkers launches persistent worker goroutines.
func (r *BatchRunner) startWorkers() {
	if r.running {
		return
	}

	r.workChan = make(chan workChunk, r.numWorkers)
	r.doneChan = make(chan struct{}, r.numWorkers)
	r.stopChan = make(chan struct{})
	r.running = true

	for i := 0; i < r.numWorkers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
}

// Stop signals all workers to exit and waits for them.
func (r *BatchRunner) Stop() {
	if !r.running {
		return
	}

	close(r.stopChan)
	r.wg.Wait()
	close(r.workChan)
	close(r.doneChan)
	r.running = false
}

// worker runs in a goroutine, processing chunks until stopped.
func (r *BatchRunner) worker() {
	defer r.wg.Done()

	for {
		select {
		case <-r.stopChan:
			return
		case chunk, ok := <-r.workChan:
			if !ok {
				return
			}
			r.counts[chunk.index] = r.computeChunk(chunk.start, chunk.end)
			r.doneChan <- struct{}{}
		}
	}
}

// computeChunk steps agents [i0, i1).
func (r *BatchRunner) computeChunk(i0, i1 int) TickCounters {
	var c TickCounters
	for i := i0; i < i1; i++ {
		c.Add(r.engine.Step(&r.agents[i], r.in))
	}
	return c
}

// Run steps every agent once against in. Agents are independent, so the
// result does not depend on the worker count.
func (r *BatchRunner) Run(agents []Agent, in *TickInput) TickCounters {
	n := len(agents)
	if n == 0 {
		return TickCounters{}
	}
	r.agents, r.in = agents, in
	defer func() { r.agents, r.in = nil, nil }()

	if n < parallelThreshold || r.numWorkers == 1 {
		return r.computeChunk(0, n)
	}

	if !r.running {
		r.startWorkers()
	}

	numWorkers := r.numWorkers
	chunkSize := (n + numWorkers - 1) / numWorkers

	// Dispatch chunks to workers
	chunksDispatched := 0
	for w := 0; w < numWorkers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > n {
			end = n
		}
		if start >= end {
			continue
		}

		r.workChan <- workChunk{index: chunksDispatched, start: start, end: end}
		chunksDispatched++
	}

	// Wait for all chunks to complete
	for i := 0; i < chunksDispatched; i++ {
		<-r.doneChan
	}

	var total TickCounters
	for i := 0; i < chunksDispatched; i++ {
		total.Add(r.counts[i])
	}
	return total
}
