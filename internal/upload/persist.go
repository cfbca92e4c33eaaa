package upload

// persist.go serializes state-file writes.
//
// Every completed upload asks for the whole state to be persisted. Requests
// are chained through one writer goroutine, so two writes never overlap; a
// request made while a write is in progress is folded into the next write.
// Persisting is best effort: a failed write is logged and the run goes on,
// since the final write after the pool drains covers it.

import (
	"log/slog"
	"sync"
)

type persister struct {
	write func([]Entry) error
	log   *slog.Logger

	mu      sync.Mutex
	pending []Entry
	dirty   bool

	kick chan struct{}
	done chan struct{}
	once sync.Once
}

func newPersister(write func([]Entry) error, log *slog.Logger) *persister {
	if log == nil {
		log = slog.Default()
	}
	p := &persister{
		write: write,
		log:   log,
		kick:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	go p.loop()
	return p
}

// Request queues a snapshot for writing. It never blocks on I/O.
func (p *persister) Request(snapshot []Entry) {
	p.mu.Lock()
	p.pending = snapshot
	p.dirty = true
	p.mu.Unlock()

	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// Close flushes the last pending snapshot and stops the writer.
func (p *persister) Close() {
	p.once.Do(func() { close(p.kick) })
	<-p.done
}

func (p *persister) loop() {
	defer close(p.done)
	for range p.kick {
		p.flush()
	}
	p.flush()
}

func (p *persister) flush() {
	p.mu.Lock()
	if !p.dirty {
		p.mu.Unlock()
		return
	}
	snap := p.pending
	p.dirty = false
	p.mu.Unlock()

	if err := p.write(snap); err != nil {
		p.log.Warn("persist upload state", "error", err)
	}
}
