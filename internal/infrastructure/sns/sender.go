package sns

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/go-otp-auth/internal/config"
	"github.com/go-otp-auth/internal/infrastructure/awsconf"
)

// PublishAPI is the subset of *sns.Client the sender needs.
type PublishAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Sender publishes rendered OTP emails to an SNS topic. Email subscriptions on
// the topic filter on the "recipient" message attribute.
type Sender struct {
	client   PublishAPI
	topicARN string
}

func NewSender(ctx context.Context, cfg *config.Config) (*Sender, error) {
	awsCfg, err := awsconf.Load(ctx, cfg, cfg.SNSRegion)
	if err != nil {
		return nil, err
	}
	var opts []func(*sns.Options)
	if cfg.AWSEndpointURL != "" {
		opts = append(opts, func(o *sns.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		})
	}
	return NewSenderWithClient(sns.NewFromConfig(awsCfg, opts...), cfg.SNSTopicARN), nil
}

func NewSenderWithClient(client PublishAPI, topicARN string) *Sender {
	return &Sender{client: client, topicARN: topicARN}
}

func (s *Sender) SendEmail(ctx context.Context, to, subject, htmlBody string) error {
	_, err := s.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(s.topicARN),
		Subject:  aws.String(subject),
		Message:  aws.String(htmlBody),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"recipient": {DataType: aws.String("String"), StringValue: aws.String(to)},
		},
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}
