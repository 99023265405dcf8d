package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/panjf2000/ants/v2"
	amqp "github.com/rabbitmq/amqp091-go"

	"ragchat/internal/platform/rabbitmq"
)

// DocumentProcessor runs the ingestion pipeline for one document.
type DocumentProcessor interface {
	Process(ctx context.Context, documentID string) error
}

// IngestWorker consumes ingestion tasks from RabbitMQ and runs them on a
// bounded pool, so many documents ingest concurrently while the pool caps
// resource use. Per-document exclusivity is not the worker's job: the
// pipeline's conditional status claim makes a duplicate delivery a no-op.
type IngestWorker struct {
	conn      *amqp.Connection
	processor DocumentProcessor
	queueName string
	pool      *ants.Pool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewIngestWorker(conn *amqp.Connection, processor DocumentProcessor, queueName string, poolSize int) (*IngestWorker, error) {
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, fmt.Errorf("create ingest pool failed: %w", err)
	}
	return &IngestWorker{
		conn:      conn,
		processor: processor,
		queueName: queueName,
		pool:      pool,
	}, nil
}

func (w *IngestWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	_, err = ch.QueueDeclare(
		w.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}

	if err := ch.Qos(w.pool.Cap()*2, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				w.dispatch(workerCtx, d)
			}
		}
	}()

	return nil
}

func (w *IngestWorker) dispatch(ctx context.Context, d amqp.Delivery) {
	var task rabbitmq.IngestTask
	if err := json.Unmarshal(d.Body, &task); err != nil {
		log.Printf("worker decode ingest task failed: %v", err)
		_ = d.Nack(false, false)
		return
	}
	if task.DocumentID == "" {
		log.Printf("worker got ingest task without document id")
		_ = d.Nack(false, false)
		return
	}

	submitErr := w.pool.Submit(func() {
		if err := w.processor.Process(ctx, task.DocumentID); err != nil {
			log.Printf("worker process document %s failed: %v", task.DocumentID, err)
			_ = d.Nack(false, false)
			return
		}
		_ = d.Ack(false)
	})
	if submitErr != nil {
		// Pool is shutting down; requeue so another consumer picks it up.
		log.Printf("worker submit ingest task failed: %v", submitErr)
		_ = d.Nack(false, true)
	}
}

func (w *IngestWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	w.pool.Release()
}
