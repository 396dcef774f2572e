package ses

import (
	"context"
	"fmt"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"firmdocs/internal/port"
)

// sendEmailAPI is the subset of the SES v2 client the alerter calls.
type sendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

type sesAlerter struct {
	client      sendEmailAPI
	fromAddress string
	recipients  []string
}

// NewSESAlerter creates an Alerter that emails operators through SES.
func NewSESAlerter(ctx context.Context, region, fromAddress string, recipients []string) (port.Alerter, error) {
	if len(recipients) == 0 {
		return nil, fmt.Errorf("ses alerter: at least one recipient is required")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for SES: %w", err)
	}
	return NewWithClient(sesv2.NewFromConfig(cfg), fromAddress, recipients), nil
}

// NewWithClient wraps an existing SES client.
func NewWithClient(client sendEmailAPI, fromAddress string, recipients []string) port.Alerter {
	return &sesAlerter{client: client, fromAddress: fromAddress, recipients: recipients}
}

func (s *sesAlerter) Send(ctx context.Context, alert port.Alert) error {
	subject := fmt.Sprintf("[firmdocs] %s during %s", alert.Kind, alert.Operation)
	body := buildAlertText(alert)

	_, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: &s.fromAddress,
		Destination:      &types.Destination{ToAddresses: s.recipients},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: &subject},
				Body:    &types.Body{Text: &types.Content{Data: &body}},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("SES SendEmail: %w", err)
	}
	return nil
}

func buildAlertText(a port.Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Kind:       %s\n", a.Kind)
	fmt.Fprintf(&b, "Operation:  %s\n", a.Operation)
	fmt.Fprintf(&b, "Firm:       %s\n", a.TenantID)
	if a.EntityID != "" {
		fmt.Fprintf(&b, "Entity:     %s\n", a.EntityID)
	}
	if a.RequestID != "" {
		fmt.Fprintf(&b, "Request:    %s\n", a.RequestID)
	}
	fmt.Fprintf(&b, "Occurred:   %s\n", a.OccurredAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "\n%s\n", a.Detail)
	return b.String()
}
