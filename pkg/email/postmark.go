package email

import (
	"context"
	"fmt"

	"github.com/mrz1836/postmark"
)

// postmarkAPI is the slice of the Postmark client the sender uses.
type postmarkAPI interface {
	SendEmail(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error)
}

// Postmark delivers notification emails through the Postmark API. Replies
// go to the support address; opens and HTML link clicks are tracked so they
// can be fed back as interactions.
type Postmark struct {
	api           postmarkAPI
	from, replyTo string
}

func (c Config) validatePostmark() error {
	for _, f := range []struct{ name, value string }{
		{"POSTMARK_SERVER_TOKEN", c.PostmarkServerToken},
		{"POSTMARK_ACCOUNT_TOKEN", c.PostmarkAccountToken},
	} {
		if f.value == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidConfig, f.name)
		}
	}
	if !ValidAddress(c.SenderEmail) || !ValidAddress(c.SupportEmail) {
		return fmt.Errorf("%w: sender and support addresses must be valid", ErrInvalidConfig)
	}
	return nil
}

func NewPostmark(cfg Config) (*Postmark, error) {
	if err := cfg.validatePostmark(); err != nil {
		return nil, err
	}
	return &Postmark{
		api:     postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken),
		from:    cfg.SenderEmail,
		replyTo: cfg.SupportEmail,
	}, nil
}

func (p *Postmark) SendEmail(ctx context.Context, params SendEmailParams) error {
	if err := params.Validate(); err != nil {
		return err
	}
	res, err := p.api.SendEmail(ctx, postmark.Email{
		From:       p.from,
		ReplyTo:    p.replyTo,
		To:         params.SendTo,
		Subject:    params.Subject,
		Tag:        params.Tag,
		HTMLBody:   params.BodyHTML,
		TextBody:   params.BodyText,
		Metadata:   params.Metadata,
		TrackOpens: true,
		TrackLinks: "HtmlOnly",
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFailedToSendEmail, err)
	}
	if res.ErrorCode != 0 {
		return fmt.Errorf("%w: postmark code %d: %s", ErrFailedToSendEmail, res.ErrorCode, res.Message)
	}
	return nil
}
