package logging

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/shrimpsizemoose/trekker/logger"
)

// AsyncSink moves writes off the request path. When the buffer is full new
// records are dropped rather than slowing requests down.
type AsyncSink struct {
	next    Sink
	records chan Record
	dropped atomic.Int64
	wg      sync.WaitGroup
	once    sync.Once
}

// NewAsync starts a worker that forwards records to next
func NewAsync(next Sink, buffer int) *AsyncSink {
	s := &AsyncSink{next: next, records: make(chan Record, buffer)}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for r := range s.records {
			if err := next.Write(context.Background(), r); err != nil {
				logger.Error.Printf("[%s] failed to store request log: %v", r.LogID, err)
			}
		}
	}()
	return s
}

func (s *AsyncSink) Write(_ context.Context, r Record) error {
	select {
	case s.records <- r:
	default:
		s.dropped.Add(1)
	}
	return nil
}

// Dropped returns how many records were discarded because the buffer was full
func (s *AsyncSink) Dropped() int64 {
	return s.dropped.Load()
}

// Close drains pending records and closes the wrapped sink
func (s *AsyncSink) Close() error {
	var err error
	s.once.Do(func() {
		close(s.records)
		s.wg.Wait()
		err = s.next.Close()
	})
	return err
}
