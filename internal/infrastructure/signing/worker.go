package signing

import (
	"context"
	"sync"

	"github.com/facturacion/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Worker serializes every signature request through one dedicated goroutine.
// PKCS#12 key material and the underlying crypto handle must never be touched
// concurrently, so all signing across all invoices funnels through here.
type Worker struct {
	signer *Signer
	jobs   chan signJob
	logger *zap.Logger

	closeOnce sync.Once
	quit      chan struct{}
	done      chan struct{}
}

type signJob struct {
	document string
	reply    chan signResult
}

type signResult struct {
	signed string
	err    error
}

// NewWorker starts the signing goroutine. queueSize bounds the number of
// pending requests; submitters beyond the bound block until a slot frees or
// their context expires.
func NewWorker(signer *Signer, queueSize int, logger *zap.Logger) *Worker {
	if queueSize <= 0 {
		queueSize = 1
	}
	w := &Worker{
		signer: signer,
		jobs:   make(chan signJob, queueSize),
		logger: logger,
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *Worker) run() {
	defer close(w.done)
	for {
		select {
		case job := <-w.jobs:
			job.reply <- w.process(job)
		case <-w.quit:
			// Drain requests accepted before shutdown.
			for {
				select {
				case job := <-w.jobs:
					job.reply <- w.process(job)
				default:
					return
				}
			}
		}
	}
}

func (w *Worker) process(job signJob) signResult {
	signed, err := w.signer.Sign(job.document)
	if err != nil {
		w.logger.Error("document signing failed", zap.Error(err))
	}
	return signResult{signed: signed, err: err}
}

// Sign submits a document to the worker and waits for the result. The
// context bounds both the enqueue wait and the wait for the outcome.
func (w *Worker) Sign(ctx context.Context, document string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	select {
	case <-w.quit:
		return "", shared.NewCertificateError("signing worker is stopped")
	default:
	}

	job := signJob{document: document, reply: make(chan signResult, 1)}

	select {
	case w.jobs <- job:
	case <-ctx.Done():
		return "", ctx.Err()
	case <-w.quit:
		return "", shared.NewCertificateError("signing worker is stopped")
	}

	select {
	case res := <-job.reply:
		return res.signed, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Close stops accepting new requests and waits for queued work to drain.
func (w *Worker) Close() {
	w.closeOnce.Do(func() {
		close(w.quit)
	})
	<-w.done
}
