package dispatcher

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sqs"
	"go.uber.org/zap"

	"github.com/Hanishchow/Biocore-agent/internal/analysis"
	"github.com/Hanishchow/Biocore-agent/internal/logging"
)

func (d *Dispatcher) worker(id int, messageQueue <-chan *sqs.Message, slots <-chan struct{}) {
	log := d.log.With(zap.Int("worker", id))
	log.Debug("worker started")

	for message := range messageQueue {
		d.processMessage(log, message)
		<-slots
	}
}

// processMessage runs the analysis for one message and deletes it whatever
// the outcome. A message that has been received is never retried.
func (d *Dispatcher) processMessage(log *zap.Logger, message *sqs.Message) {
	log = log.With(zap.String("message_id", aws.StringValue(message.MessageId)))

	// Queued work is not cut short by shutdown; each stage keeps its own timeout.
	ctx := logging.WithContext(context.Background(), log)

	work, err := NewWork(message)
	if err != nil {
		log.Warn("discarding malformed message", zap.Error(err))
	} else {
		resp, err := d.processor.Run(ctx, work.Request)
		var vErr *analysis.ValidationError
		switch {
		case errors.As(err, &vErr):
			log.Warn("discarding invalid request", zap.String("reason", vErr.Message))
		case err != nil:
			log.Error("queued analysis failed", zap.Error(err))
		default:
			log.Info("queued analysis complete",
				zap.String("pdb_id", resp.Meta.PDBIDQueried),
				zap.String("report_id", resp.Meta.ReportID))
		}
	}

	_, err = d.svc.DeleteMessageWithContext(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(d.queueURL),
		ReceiptHandle: message.ReceiptHandle,
	})
	if err != nil {
		log.Error("error deleting message", zap.Error(err))
	}
}
