package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/wolfman30/intake-engine/internal/booking"
	"github.com/wolfman30/intake-engine/internal/business"
	appconfig "github.com/wolfman30/intake-engine/internal/config"
	"github.com/wolfman30/intake-engine/internal/events"
	"github.com/wolfman30/intake-engine/internal/notify"
	"github.com/wolfman30/intake-engine/internal/replies"
	"github.com/wolfman30/intake-engine/pkg/logging"
)

// BuildReplyService wires the automated-reply backend in the order Gemini,
// Bedrock, remote reply URL. With none configured it returns nil and widgets
// answer from the local fallback.
func BuildReplyService(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, profile business.Profile, logger *logging.Logger) (replies.Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	if strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		svc, err := replies.NewGeminiService(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID, profile.Name, profile.Services)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: %w", err)
		}
		logger.Info("reply service enabled", "backend", "gemini", "model", cfg.GeminiModelID)
		return svc, nil
	}
	if model := strings.TrimSpace(cfg.BedrockModelID); model != "" && awsCfg != nil {
		svc, err := replies.NewBedrockService(bedrockruntime.NewFromConfig(*awsCfg), model, profile.Name, profile.Services)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: %w", err)
		}
		logger.Info("reply service enabled", "backend", "bedrock", "model", model)
		return svc, nil
	}
	if url := strings.TrimSpace(cfg.ReplyServiceURL); url != "" {
		logger.Info("reply service enabled", "backend", "http", "url", url)
		return replies.NewHTTPService(url, nil, logger), nil
	}

	logger.Warn("no reply service configured; using canned replies")
	return nil, nil
}

// BuildPublisher returns an SQS publisher when a queue is configured and a
// log-only publisher otherwise.
func BuildPublisher(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) events.Publisher {
	if cfg != nil && awsCfg != nil && strings.TrimSpace(cfg.BookingEventsQueueURL) != "" {
		return events.NewSQSPublisher(sqs.NewFromConfig(*awsCfg), cfg.BookingEventsQueueURL, logger)
	}
	return events.NewLogPublisher(logger)
}

// BuildEmailSender selects the provider named by EMAIL_PROVIDER. Unknown or
// unconfigured providers fall back to the logging stub.
func BuildEmailSender(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) notify.EmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil {
		return notify.NewStubEmailSender(logger)
	}
	switch cfg.EmailProvider {
	case "sendgrid":
		if strings.TrimSpace(cfg.SendGridAPIKey) == "" {
			logger.Warn("sendgrid selected without api key; emails are logged only")
			break
		}
		return notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
	case "ses":
		if awsCfg == nil {
			logger.Warn("ses selected without aws config; emails are logged only")
			break
		}
		return notify.NewSESSender(sesv2.NewFromConfig(*awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SESFromName,
		}, logger)
	case "":
	default:
		logger.Warn("unknown email provider; emails are logged only", "provider", cfg.EmailProvider)
	}
	return notify.NewStubEmailSender(logger)
}

// BuildBookingEndpoint returns the endpoint widgets submit to. A configured
// BOOKING_ENDPOINT_URL sends requests to a remote booking service instead of
// the in-process one.
func BuildBookingEndpoint(cfg *appconfig.Config, local *booking.Service, logger *logging.Logger) booking.Endpoint {
	if cfg != nil && strings.TrimSpace(cfg.BookingEndpointURL) != "" {
		if logger != nil {
			logger.Info("booking requests go to remote endpoint", "url", cfg.BookingEndpointURL)
		}
		return booking.NewHTTPEndpoint(cfg.BookingEndpointURL, &http.Client{Timeout: 15 * time.Second})
	}
	return local
}
