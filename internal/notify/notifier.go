// Package notify delivers push notifications through SNS platform endpoints
// and e-mail through SES.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"

	awsclients "crm-functions/internal/common/aws"
	"crm-functions/internal/common/config"
	errs "crm-functions/internal/common/errors"
	"crm-functions/internal/common/logger"
	"crm-functions/internal/common/metrics"
	"crm-functions/internal/models"
)

// SNSService is the subset of the SNS client used for push.
type SNSService interface {
	CreatePlatformEndpoint(ctx context.Context, params *sns.CreatePlatformEndpointInput, optFns ...func(*sns.Options)) (*sns.CreatePlatformEndpointOutput, error)
	DeleteEndpoint(ctx context.Context, params *sns.DeleteEndpointInput, optFns ...func(*sns.Options)) (*sns.DeleteEndpointOutput, error)
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SESService is the subset of the SES client used for e-mail.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type Options struct {
	SNS                  SNSService
	SES                  SESService
	PushEnabled          bool
	EmailEnabled         bool
	PlatformApplications map[string]string
	FromEmail            string
	Concurrency          int
	Logger               logger.Logger
}

type Notifier struct {
	sns          SNSService
	ses          SESService
	pushEnabled  bool
	emailEnabled bool
	platformApps map[string]string
	fromEmail    string
	concurrency  int
	logger       logger.Logger
}

func New(opts Options) *Notifier {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOpLogger()
	}
	return &Notifier{
		sns:          opts.SNS,
		ses:          opts.SES,
		pushEnabled:  opts.PushEnabled && opts.SNS != nil,
		emailEnabled: opts.EmailEnabled && opts.SES != nil,
		platformApps: opts.PlatformApplications,
		fromEmail:    opts.FromEmail,
		concurrency:  opts.Concurrency,
		logger:       opts.Logger,
	}
}

// NewFromConfig wires real SNS and SES clients for the configured region.
func NewFromConfig(ctx context.Context, cfg config.NotificationConfig, log logger.Logger) (*Notifier, error) {
	awsCfg, err := awsclients.LoadConfig(ctx, awsclients.Options{Region: cfg.AWS.Region})
	if err != nil {
		return nil, err
	}
	return New(Options{
		SNS:                  awsclients.NewSNSClient(awsCfg),
		SES:                  awsclients.NewSESClient(awsCfg),
		PushEnabled:          cfg.Push.Enabled,
		EmailEnabled:         cfg.Email.Enabled,
		PlatformApplications: cfg.Push.PlatformApplications,
		FromEmail:            cfg.Email.FromEmail,
		Concurrency:          cfg.Push.Concurrency,
		Logger:               log,
	}), nil
}

func (n *Notifier) PushEnabled() bool  { return n.pushEnabled }
func (n *Notifier) EmailEnabled() bool { return n.emailEnabled }

// ==========================
// Endpoints
// ==========================

// RegisterEndpoint creates (or returns the existing) SNS endpoint for a device token.
func (n *Notifier) RegisterEndpoint(ctx context.Context, platform, token, uid string) (string, error) {
	if !n.pushEnabled {
		return "", nil
	}
	appArn, ok := n.platformApps[platform]
	if !ok || appArn == "" {
		return "", errs.NewValidationError(fmt.Sprintf("push is not configured for platform %q", platform))
	}

	out, err := n.sns.CreatePlatformEndpoint(ctx, &sns.CreatePlatformEndpointInput{
		PlatformApplicationArn: aws.String(appArn),
		Token:                  aws.String(token),
		CustomUserData:         aws.String(uid),
	})
	if err != nil {
		return "", errs.NewNotificationSendFailedError("push", fmt.Errorf("create endpoint: %w", err))
	}
	return aws.ToString(out.EndpointArn), nil
}

// DeleteEndpoint removes an endpoint. Unknown endpoints are ignored.
func (n *Notifier) DeleteEndpoint(ctx context.Context, endpointArn string) error {
	if endpointArn == "" || n.sns == nil {
		return nil
	}
	_, err := n.sns.DeleteEndpoint(ctx, &sns.DeleteEndpointInput{EndpointArn: aws.String(endpointArn)})
	var notFound *snstypes.NotFoundException
	if err != nil && !errors.As(err, &notFound) {
		return errs.NewNotificationSendFailedError("push", fmt.Errorf("delete endpoint: %w", err))
	}
	return nil
}

// ==========================
// Fan-out
// ==========================

// Recipient is a uid with its registered devices.
type Recipient struct {
	UID    string
	Tokens []models.NotificationToken
}

// Push sends msg to every device of every recipient and waits for all
// deliveries. Results keep recipient and token order.
func (n *Notifier) Push(ctx context.Context, recipients []Recipient, msg models.PushMessage) []models.Delivery {
	type job struct {
		uid   string
		token models.NotificationToken
	}
	var jobs []job
	for _, r := range recipients {
		for _, t := range r.Tokens {
			jobs = append(jobs, job{uid: r.UID, token: t})
		}
	}

	results := make([]models.Delivery, len(jobs))
	sem := make(chan struct{}, n.concurrency)
	var wg sync.WaitGroup

	for i, j := range jobs {
		results[i] = models.Delivery{UID: j.uid, Token: j.token.Token, EndpointArn: j.token.EndpointArn}
		if !n.pushEnabled || j.token.EndpointArn == "" {
			results[i].Status = models.DeliverySkipped
			continue
		}

		wg.Add(1)
		go func(i int, j job) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[i].Status = models.DeliveryFailed
				results[i].Error = ctx.Err().Error()
				return
			}
			n.deliver(ctx, &results[i], j.token.Platform, msg)
		}(i, j)
	}
	wg.Wait()

	for _, d := range results {
		metrics.PushDeliveries.WithLabelValues(d.Status).Inc()
	}
	return results
}

func (n *Notifier) deliver(ctx context.Context, d *models.Delivery, platform string, msg models.PushMessage) {
	payload, err := buildPayload(platform, msg)
	if err != nil {
		d.Status = models.DeliveryFailed
		d.Error = err.Error()
		return
	}

	out, err := n.sns.Publish(ctx, &sns.PublishInput{
		TargetArn:        aws.String(d.EndpointArn),
		Message:          aws.String(payload),
		MessageStructure: aws.String("json"),
	})
	if err != nil {
		var disabled *snstypes.EndpointDisabledException
		var notFound *snstypes.NotFoundException
		switch {
		case errors.As(err, &disabled), errors.As(err, &notFound):
			d.Status = models.DeliveryDisabled
		default:
			d.Status = models.DeliveryFailed
		}
		d.Error = err.Error()
		n.logger.Warn("push delivery failed", map[string]interface{}{
			"uid":         d.UID,
			"endpointArn": d.EndpointArn,
			"status":      d.Status,
			"error":       err,
		})
		return
	}
	d.Status = models.DeliverySent
	d.MessageID = aws.ToString(out.MessageId)
}

// buildPayload renders the per-platform SNS message structure.
func buildPayload(platform string, msg models.PushMessage) (string, error) {
	gcm, err := json.Marshal(map[string]interface{}{
		"notification": map[string]string{"title": msg.Title, "body": msg.Body},
		"data":         msg.Data,
	})
	if err != nil {
		return "", err
	}

	apnsBody := map[string]interface{}{
		"aps": map[string]interface{}{
			"alert": map[string]string{"title": msg.Title, "body": msg.Body},
			"sound": "default",
		},
	}
	for k, v := range msg.Data {
		if k != "aps" {
			apnsBody[k] = v
		}
	}
	apns, err := json.Marshal(apnsBody)
	if err != nil {
		return "", err
	}

	structure := map[string]string{"default": msg.Body}
	switch platform {
	case models.PlatformIOS:
		structure["APNS"] = string(apns)
		structure["APNS_SANDBOX"] = string(apns)
	default:
		structure["GCM"] = string(gcm)
	}
	out, err := json.Marshal(structure)
	return string(out), err
}

// ==========================
// E-mail
// ==========================

// Email sends one plain-text message to every address in to.
func (n *Notifier) Email(ctx context.Context, to []string, subject, body string) (string, error) {
	if !n.emailEnabled {
		return "", errs.NewNotificationSendFailedError("email", errors.New("e-mail channel is disabled"))
	}
	if len(to) == 0 {
		return "", nil
	}
	out, err := n.ses.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(n.fromEmail),
		Destination: &sestypes.Destination{ToAddresses: to},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(body), Charset: aws.String("UTF-8")},
			},
		},
	})
	if err != nil {
		return "", errs.NewNotificationSendFailedError("email", err)
	}
	return aws.ToString(out.MessageId), nil
}
