package channel

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	twilio "github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"vn.io.arda/marketplace-notification/internal/config"
	"vn.io.arda/marketplace-notification/internal/domain"
)

// WhatsApp sends one outbound WhatsApp message and returns the provider message id.
type WhatsApp interface {
	Send(ctx context.Context, to, body, mediaURL string) (string, error)
	// Configured is false for the local stand-in; its ids are not real deliveries.
	Configured() bool
}

// NewWhatsApp returns the Twilio channel when credentials are complete, otherwise the mock one.
func NewWhatsApp(cfg config.TwilioConfig, timeout time.Duration) WhatsApp {
	if !cfg.Complete() {
		log.Warn().Msg("twilio not configured, whatsapp channel running in mock mode")
		return MockWhatsApp{}
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &TwilioWhatsApp{
		api:     client.Api,
		from:    domain.NormalizePhone(cfg.WhatsAppNumber),
		timeout: timeout,
	}
}

type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// TwilioWhatsApp sends through the Twilio Messages API.
type TwilioWhatsApp struct {
	api     messageCreator
	from    string
	timeout time.Duration
}

func (t *TwilioWhatsApp) Configured() bool { return true }

func (t *TwilioWhatsApp) Send(ctx context.Context, to, body, mediaURL string) (string, error) {
	params := &openapi.CreateMessageParams{}
	params.SetFrom(domain.WhatsAppPrefix + t.from)
	params.SetTo(domain.WhatsAppPrefix + domain.NormalizePhone(to))
	params.SetBody(body)
	if mediaURL != "" {
		params.SetMediaUrl([]string{mediaURL})
	}

	var sid string
	err := withTimeout(ctx, "whatsapp", t.timeout, func() error {
		resp, err := t.api.CreateMessage(params)
		if err != nil {
			return err
		}
		if resp == nil || resp.Sid == nil {
			return errors.New("twilio returned no message sid")
		}
		sid = *resp.Sid
		return nil
	})
	if err != nil {
		sends.WithLabelValues("whatsapp", "failed").Inc()
		return "", err
	}
	sends.WithLabelValues("whatsapp", "sent").Inc()
	return sid, nil
}

// MockWhatsApp accepts every message locally. The returned id is prefixed with
// "mock_" so it can never be mistaken for a provider id.
type MockWhatsApp struct{}

func (MockWhatsApp) Configured() bool { return false }

func (MockWhatsApp) Send(_ context.Context, to, body, _ string) (string, error) {
	sends.WithLabelValues("whatsapp", "mock").Inc()
	log.Debug().Str("channel", "whatsapp").Str("phone", to).Int("length", len(body)).Msg("whatsapp mock send")
	return "mock_" + uuid.NewString(), nil
}
