package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// SESBackend delivers mail through Amazon SES. Credentials come from the
// default AWS credential chain.
type SESBackend struct {
	client *sesv2.Client
}

// NewSESBackend builds the SES backend for the given region. An empty
// region defers to the AWS SDK's own resolution.
func NewSESBackend(ctx context.Context, region string) (*SESBackend, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &SESBackend{client: sesv2.NewFromConfig(cfg)}, nil
}

func (b *SESBackend) Name() string { return "ses" }

func (b *SESBackend) Send(ctx context.Context, msg *Message) error {
	body := &sestypes.Body{
		Text: &sestypes.Content{Data: aws.String(msg.BodyText)},
	}
	if msg.BodyHTML != "" {
		body.Html = &sestypes.Content{Data: aws.String(msg.BodyHTML)}
	}
	_, err := b.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(msg.From),
		Destination: &sestypes.Destination{
			ToAddresses: []string{msg.To},
		},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: &sestypes.Content{Data: aws.String(msg.Subject)},
				Body:    body,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("ses send to %s: %w", msg.To, err)
	}
	return nil
}
