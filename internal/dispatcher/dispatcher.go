package dispatcher

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Hanishchow/Biocore-agent/config"
	"github.com/Hanishchow/Biocore-agent/internal/analysis"
)

// receiveBackoff is how long the dispatcher waits after a failed receive.
var receiveBackoff = 5 * time.Second

// Processor runs one analysis.
type Processor interface {
	Run(ctx context.Context, req analysis.Request) (*analysis.Response, error)
}

// Dispatcher long-polls the requests queue and hands messages to a pool of
// workers. Each message is attempted once and then deleted.
type Dispatcher struct {
	svc       sqsiface.SQSAPI
	processor Processor
	cfg       config.QueueConfig
	queueURL  string
	log       *zap.Logger
}

func New(svc sqsiface.SQSAPI, processor Processor, cfg config.QueueConfig, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		svc:       svc,
		processor: processor,
		cfg:       cfg,
		queueURL:  cfg.URL(),
		log:       log.Named("dispatcher"),
	}
}

// Run starts the receive loop and WorkerCount workers and blocks until ctx
// is cancelled and every in-flight message has been handled.
//
// A message is only received once a worker is free to take it, so no more
// than WorkerCount messages are ever claimed and waiting on the visibility
// timeout at once.
func (d *Dispatcher) Run(ctx context.Context) error {
	messageQueue := make(chan *sqs.Message)
	slots := make(chan struct{}, d.cfg.WorkerCount)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(messageQueue)
		d.receive(gctx, messageQueue, slots)
		return nil
	})
	for i := 1; i <= d.cfg.WorkerCount; i++ {
		id := i
		g.Go(func() error {
			d.worker(id, messageQueue, slots)
			return nil
		})
	}

	d.log.Info("queue intake started", zap.String("queue", d.queueURL), zap.Int("workers", d.cfg.WorkerCount))
	err := g.Wait()
	d.log.Info("queue intake stopped")
	return err
}

func (d *Dispatcher) receive(ctx context.Context, messageQueue chan<- *sqs.Message, slots chan struct{}) {
	for ctx.Err() == nil {
		reserved := d.reserve(ctx, slots)
		if reserved == 0 {
			return
		}

		result, err := d.svc.ReceiveMessageWithContext(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(d.queueURL),
			MaxNumberOfMessages: aws.Int64(reserved),
			VisibilityTimeout:   aws.Int64(d.cfg.VisibilityTimeout),
			WaitTimeSeconds:     aws.Int64(d.cfg.PollingWaitTime),
		})
		if err != nil {
			release(slots, reserved)
			if ctx.Err() != nil {
				return
			}
			d.log.Warn("error receiving messages", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(receiveBackoff):
			}
			continue
		}

		received := int64(len(result.Messages))
		if received < reserved {
			release(slots, reserved-received)
		}
		for i, message := range result.Messages {
			// claimed messages are always handed over, even during shutdown
			if int64(i) >= reserved {
				slots <- struct{}{}
			}
			messageQueue <- message
		}
	}
}

// reserve blocks until one worker is free, then takes every other free
// worker up to MaxMessages. It returns 0 when ctx is done first.
func (d *Dispatcher) reserve(ctx context.Context, slots chan struct{}) int64 {
	select {
	case slots <- struct{}{}:
	case <-ctx.Done():
		return 0
	}
	if ctx.Err() != nil {
		release(slots, 1)
		return 0
	}

	reserved := int64(1)
	for reserved < d.cfg.MaxMessages {
		select {
		case slots <- struct{}{}:
			reserved++
		default:
			return reserved
		}
	}
	return reserved
}

func release(slots <-chan struct{}, n int64) {
	for ; n > 0; n-- {
		<-slots
	}
}
