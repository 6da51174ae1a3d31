package sqsqueue

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"respondr/internal/domain"
)

type Producer struct {
	SQS      *sqs.Client
	QueueURL string
}

// InboundJob is the queue envelope for one webhook callback. The source
// message id doubles as the idempotency key downstream, so redelivery and
// duplicate webhook fires converge on one stored record.
type InboundJob struct {
	Name            string `json:"name"`
	Text            string `json:"text"`
	CreatedAt       int64  `json:"createdAt"` // epoch seconds from the platform
	GroupID         string `json:"groupId"`
	SourceMessageID string `json:"sourceMessageId"`
}

func (j InboundJob) Message() domain.InboundMessage {
	return domain.InboundMessage{
		Name:            j.Name,
		Text:            j.Text,
		CreatedAt:       j.CreatedAt,
		GroupID:         j.GroupID,
		SourceMessageID: j.SourceMessageID,
	}
}

func (p *Producer) Enqueue(ctx context.Context, job InboundJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}
	_, err = p.SQS.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    &p.QueueURL,
		MessageBody: str(string(body)),
	})
	return err
}

func str(s string) *string { return &s }
