package packager

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"codepack/pkg/token"
)

// contentJob pairs a descriptor with a completion signal so results can be
// collected in walk order regardless of which worker finishes first.
type contentJob struct {
	desc *FileDescriptor
	done chan struct{}
}

// FillContents reads payloads for the descriptors with a bounded worker pool
// and emits them on the returned channel strictly in input order. Jobs flow
// through a FIFO of in-flight work sized to the pool, so at most a bounded
// number of payloads is buffered at any time. When counter is non-nil, text
// payloads are annotated with their token counts. The channel is closed when
// the stream ends or ctx is cancelled.
func FillContents(ctx context.Context, descs []*FileDescriptor, workers int, counter token.Counter, logger *zap.Logger) <-chan *FileDescriptor {
	out := make(chan *FileDescriptor)
	jobs := make(chan *contentJob)
	inflight := make(chan *contentJob, workers*2)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				fillContent(job.desc, logger)
				if counter != nil && job.desc.Kind == KindText {
					job.desc.TokenCount = counter.Count(job.desc.Text)
				}
				close(job.done)
			}
		}()
	}

	// Producer: preserve walk order in the in-flight FIFO while handing the
	// same jobs to the pool.
	go func() {
		defer close(jobs)
		defer close(inflight)
		for _, desc := range descs {
			job := &contentJob{desc: desc, done: make(chan struct{})}
			select {
			case inflight <- job:
			case <-ctx.Done():
				return
			}
			select {
			case jobs <- job:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Collector: wait for each job in FIFO order and forward its descriptor.
	go func() {
		defer close(out)
		defer wg.Wait()
		for job := range inflight {
			select {
			case <-job.done:
			case <-ctx.Done():
				return
			}
			select {
			case out <- job.desc:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
