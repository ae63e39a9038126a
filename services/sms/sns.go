package smssvc

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	"github.com/kitabu/kitabu/core"
)

const publishTimeout = 10 * time.Second

type snsService struct {
	client   *sns.Client
	senderID string
	logger   core.Logger
}

var _ core.SMSService = (*snsService)(nil)

func NewSNSService(conf *core.Config, logger core.Logger) (*snsService, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(conf.SNS.Region))
	if err != nil {
		return nil, err
	}
	return &snsService{
		client:   sns.NewFromConfig(cfg),
		senderID: conf.SNS.SenderID,
		logger:   logger,
	}, nil
}

func (svc snsService) SendMessages(messages ...*core.TextMessage) {
	for _, msg := range messages {
		msg := msg
		go func() {
			if msg.HasRecipient() && msg.HasContent() {
				svc.send(*msg)
			}
		}()
	}
}

func (svc snsService) send(msg core.TextMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	attrs := map[string]types.MessageAttributeValue{
		"AWS.SNS.SMS.SMSType": {DataType: aws.String("String"), StringValue: aws.String("Transactional")},
	}
	if svc.senderID != "" {
		attrs["AWS.SNS.SMS.SenderID"] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(svc.senderID),
		}
	}

	_, err := svc.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber:       aws.String(msg.E164()),
		Message:           aws.String(msg.Body),
		MessageAttributes: attrs,
	})
	if err != nil {
		svc.logger.Error(fmt.Sprintf("sending SMS to %s: %v", msg.E164(), err), err)
	}
}
