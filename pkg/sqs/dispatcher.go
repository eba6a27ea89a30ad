package sqs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/ca-risken/common/pkg/logging"

	"github.com/fixit-ai/fixit/pkg/message"
)

// Dispatcher enqueues analysis and verification requests.
type Dispatcher interface {
	SendAnalyzeRequest(ctx context.Context, msg *message.AnalyzeQueueMessage) error
	SendVerifyRequest(ctx context.Context, msg *message.VerifyQueueMessage) error
}

type DispatcherConfig struct {
	AWSRegion       string `envconfig:"aws_region"   default:"ap-northeast-1"`
	SQSEndpoint     string `envconfig:"sqs_endpoint" default:"http://queue.middleware.svc.cluster.local:9324"`
	AnalyzeQueueURL string `split_words:"true" default:"http://queue.middleware.svc.cluster.local:9324/queue/fixit-analyze"`
	VerifyQueueURL  string `split_words:"true" default:"http://queue.middleware.svc.cluster.local:9324/queue/fixit-verify"`
}

type sqsAPI interface {
	SendMessage(ctx context.Context, params *awssqs.SendMessageInput, optFns ...func(*awssqs.Options)) (*awssqs.SendMessageOutput, error)
}

type dispatcher struct {
	client          sqsAPI
	analyzeQueueURL string
	verifyQueueURL  string
	logger          logging.Logger
}

func NewDispatcher(ctx context.Context, conf *DispatcherConfig, l logging.Logger) (Dispatcher, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(conf.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config, %w", err)
	}
	client := awssqs.NewFromConfig(cfg, func(o *awssqs.Options) {
		if conf.SQSEndpoint != "" {
			o.BaseEndpoint = aws.String(conf.SQSEndpoint)
		}
	})
	return &dispatcher{
		client:          client,
		analyzeQueueURL: conf.AnalyzeQueueURL,
		verifyQueueURL:  conf.VerifyQueueURL,
		logger:          l,
	}, nil
}

func (d *dispatcher) SendAnalyzeRequest(ctx context.Context, msg *message.AnalyzeQueueMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	return d.send(ctx, d.analyzeQueueURL, msg)
}

func (d *dispatcher) SendVerifyRequest(ctx context.Context, msg *message.VerifyQueueMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	return d.send(ctx, d.verifyQueueURL, msg)
}

func (d *dispatcher) send(ctx context.Context, queueURL string, msg any) error {
	buf, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal queue message, %w", err)
	}
	resp, err := d.client.SendMessage(ctx, &awssqs.SendMessageInput{
		MessageBody: aws.String(string(buf)),
		QueueUrl:    aws.String(queueURL),
	})
	if err != nil {
		return fmt.Errorf("failed to send message to %s, %w", queueURL, err)
	}
	d.logger.Infof(ctx, "Sent queue message: queue=%s, message_id=%s", queueURL, aws.ToString(resp.MessageId))
	return nil
}
