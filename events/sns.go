// Package events fans completed payments out to the rest of the platform.
package events

import (
	"context"
	"encoding/json"
	"time"

	"bitbucket.org/etuitionbd/backend/logging"
	"bitbucket.org/etuitionbd/backend/models"
	"bitbucket.org/etuitionbd/backend/settlement"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sns"
	"github.com/aws/aws-sdk-go/service/sns/snsiface"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const PaymentCompleted = "payment.completed"

const publishTimeout = 5 * time.Second

var _ settlement.CompletionListener = (*SNSPublisher)(nil)

type SNSPublisher struct {
	client   snsiface.SNSAPI
	topicARN string
}

func NewSNSPublisher(client snsiface.SNSAPI, topicARN string) *SNSPublisher {
	return &SNSPublisher{
		client:   client,
		topicARN: topicARN,
	}
}

// PaymentCompleted publishes the event and logs failures. Settlement is
// already committed at this point so errors are not returned.
func (p *SNSPublisher) PaymentCompleted(ctx context.Context, payment *models.Payment) {
	logger := logging.FromContext(ctx).WithFields(log.Fields{
		"payment_id": payment.ID,
		"topic":      p.topicARN,
	})

	messageID, err := p.Publish(ctx, payment)
	if err != nil {
		logger.WithError(err).Error("failed publishing payment event")
		return
	}

	logger.WithField("message_id", messageID).Info("payment event published")
}

func (p *SNSPublisher) Publish(ctx context.Context, payment *models.Payment) (string, error) {
	event := models.PaymentCompletedEvent{
		Type:          PaymentCompleted,
		PaymentID:     payment.ID,
		ApplicationID: payment.ApplicationID,
		TuitionID:     payment.TuitionID,
		StudentID:     payment.StudentID,
		TutorID:       payment.TutorID,
		Amount:        payment.Amount,
		PlatformFee:   payment.PlatformFee,
		TutorEarnings: payment.TutorEarnings,
	}
	if payment.PaidAt != nil {
		event.PaidAt = *payment.PaidAt
	}

	body, err := json.Marshal(event)
	if err != nil {
		return "", errors.Wrap(err, "failed encoding payment event")
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	out, err := p.client.PublishWithContext(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]*sns.MessageAttributeValue{
			"type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(PaymentCompleted),
			},
		},
	})
	if err != nil {
		return "", errors.Wrap(err, "sns publish")
	}

	return aws.StringValue(out.MessageId), nil
}
