package dispatcher

import (
	"errors"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sqs"

	"github.com/Hanishchow/Biocore-agent/internal/analysis"
)

// Work is one queued analysis. The message body has the same shape as a
// POST /biocore body.
type Work struct {
	MessageID     string
	ReceiptHandle string
	Request       analysis.Request
}

// NewWork decodes a queue message into Work.
func NewWork(message *sqs.Message) (Work, error) {
	if message == nil || message.Body == nil {
		return Work{}, errors.New("empty message")
	}

	req, err := analysis.ParseRequest([]byte(*message.Body))
	if err != nil {
		return Work{}, err
	}

	return Work{
		MessageID:     aws.StringValue(message.MessageId),
		ReceiptHandle: aws.StringValue(message.ReceiptHandle),
		Request:       req,
	}, nil
}
