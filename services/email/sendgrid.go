package emailsvc

import (
	"context"
	"fmt"
	"net/http"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sethvargo/go-retry"
	"github.com/sourcegraph/conc/pool"

	"github.com/trezcool/schoolhub/core"
)

var (
	host     = "https://api.sendgrid.com"
	endpoint = "/v3/mail/send"

	maxConcurrentSends = 4
	maxRetries         = uint64(3)
	retryBase          = 500 * time.Millisecond
	sendTimeout        = time.Minute

	// mockable
	sendgridAPIFunc = sendgrid.API
)

type sendgridService struct {
	key        string
	from       *sgmail.Email
	subjPrefix string
	logger     core.Logger
}

var _ core.EmailService = (*sendgridService)(nil)

func NewSendgridService(conf *core.Config, logger core.Logger) core.EmailService {
	return &sendgridService{
		key:        conf.SendgridApiKey,
		from:       sgmail.NewEmail(conf.DefaultFromEmail.Name, conf.DefaultFromEmail.Address),
		subjPrefix: "[" + conf.AppName + "] ",
		logger:     logger,
	}
}

// SendMessages sends messages in the background, a few at a time.
func (svc sendgridService) SendMessages(messages ...*core.EmailMessage) {
	go func() {
		p := pool.New().WithMaxGoroutines(maxConcurrentSends)
		for _, msg := range messages {
			msg := msg
			p.Go(func() {
				if err := msg.Render(); err != nil {
					svc.logger.Error(fmt.Sprintf("rendering email: %v", err), err)
					return
				}
				if msg.HasRecipients() && (msg.HasContent() || msg.HasAttachments()) {
					ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
					defer cancel()
					if err := svc.send(ctx, *msg); err != nil {
						svc.logger.Error(fmt.Sprintf("sending email: %v", err), err)
					}
				}
			})
		}
		p.Wait()
	}()
}

func (svc sendgridService) prepare(msg core.EmailMessage) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = svc.subjPrefix + msg.Subject

	for _, to := range msg.To {
		p.AddTos(svc.getSGEmail(to))
	}
	for _, cc := range msg.Cc {
		p.AddCCs(svc.getSGEmail(cc))
	}
	for _, bcc := range msg.Bcc {
		p.AddBCCs(svc.getSGEmail(bcc))
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(svc.from)
	m.AddPersonalizations(p)

	m.AddContent(sgmail.NewContent("text/plain", msg.TextContent))
	if msg.HTMLContent != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTMLContent))
	}

	for _, a := range msg.Attachments {
		m.AddAttachment(svc.getSGAttachment(a))
	}

	return m
}

func (svc sendgridService) getSGEmail(addr mail.Address) *sgmail.Email {
	return sgmail.NewEmail(addr.Name, addr.Address)
}

func (svc sendgridService) getSGAttachment(at core.Attachment) *sgmail.Attachment {
	return &sgmail.Attachment{
		Content:     at.Content.String(),
		Type:        at.ContentType,
		Filename:    at.Filename,
		Disposition: "attachment",
	}
}

// send posts msg to sendgrid, retrying on network errors and 5xx responses.
func (svc sendgridService) send(ctx context.Context, msg core.EmailMessage) error {
	body := sgmail.GetRequestBody(svc.prepare(msg))
	backoff := retry.WithMaxRetries(maxRetries, retry.NewFibonacci(retryBase))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		req := sendgrid.GetRequest(svc.key, endpoint, host)
		req.Method = http.MethodPost
		req.Body = body

		res, err := sendgridAPIFunc(req)
		if err != nil {
			return retry.RetryableError(errors.Wrap(err, "calling sendgrid"))
		}
		return checkResponse(res)
	})
}

func checkResponse(res *rest.Response) error {
	switch {
	case res.StatusCode >= http.StatusInternalServerError:
		return retry.RetryableError(errors.Errorf("sendgrid status: %d - body: %s", res.StatusCode, res.Body))
	case res.StatusCode >= http.StatusBadRequest:
		return errors.Errorf("sendgrid status: %d - body: %s", res.StatusCode, res.Body)
	}
	return nil
}
