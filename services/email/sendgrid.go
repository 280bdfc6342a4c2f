package emailsvc

import (
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/youpass/youpass/core"
)

const (
	sendAttempts   = 3
	retryBaseDelay = 2 * time.Second
)

// sendFunc posts one message to the SendGrid v3 mail/send endpoint.
type sendFunc func(m *sgmail.SGMailV3) (*rest.Response, error)

// deliveryError is a response SendGrid did not accept.
type deliveryError struct {
	status int
	body   string
}

func (e *deliveryError) Error() string {
	return fmt.Sprintf("sendgrid: status %d: %s", e.status, e.body)
}

// temporary reports whether the same request may succeed later.
func (e *deliveryError) temporary() bool {
	return e.status == http.StatusTooManyRequests || e.status >= http.StatusInternalServerError
}

type sendgridService struct {
	from       *sgmail.Email
	subject    subjectFormat
	deliver    sendFunc
	retryDelay time.Duration
	logger     core.Logger
}

var _ core.EmailService = (*sendgridService)(nil)

func NewSendgridService(conf *core.Config, logger core.Logger) core.EmailService {
	return newSendgridService(conf, logger, sendgrid.NewSendClient(conf.SendgridApiKey).Send)
}

func newSendgridService(conf *core.Config, logger core.Logger, deliver sendFunc) *sendgridService {
	from := conf.DefaultFromEmail()
	return &sendgridService{
		from:       sgmail.NewEmail(from.Name, from.Address),
		subject:    newSubjectFormat(conf, logger),
		deliver:    deliver,
		retryDelay: retryBaseDelay,
		logger:     logger,
	}
}

func (svc *sendgridService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		go svc.process(msg)
	}
}

// process renders msg and delivers it if it has both recipients and something to say.
func (svc *sendgridService) process(msg *core.EmailMessage) {
	if err := msg.Render(); err != nil {
		svc.logger.Error("rendering email", err, logFields(*msg))
		return
	}
	if !msg.HasRecipients() || !(msg.HasContent() || msg.HasAttachments()) {
		return
	}
	if err := svc.deliverWithRetry(svc.build(*msg)); err != nil {
		svc.logger.Error("sending email", err, logFields(*msg))
	}
}

func (svc *sendgridService) build(msg core.EmailMessage) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = svc.subject.render(msg.Subject)
	seen := make(map[string]bool)
	p.AddTos(recipients(seen, msg.To)...)
	p.AddCCs(recipients(seen, msg.Cc)...)
	p.AddBCCs(recipients(seen, msg.Bcc)...)

	m := sgmail.NewV3Mail()
	m.SetFrom(svc.from)
	m.AddPersonalizations(p)

	// text/plain must precede text/html
	if msg.TextContent != "" || msg.HTMLContent == "" {
		m.AddContent(sgmail.NewContent("text/plain", msg.TextContent))
	}
	if msg.HTMLContent != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTMLContent))
	}
	for _, at := range msg.Attachments {
		m.AddAttachment(&sgmail.Attachment{
			Content:     at.Content.String(),
			Type:        at.ContentType,
			Filename:    at.Filename,
			Disposition: "attachment",
		})
	}
	if msg.TemplateName != "" {
		m.AddCategories(msg.TemplateName)
	}
	return m
}

// recipients converts addrs, skipping addresses already in seen: SendGrid rejects a personalization that repeats one.
func recipients(seen map[string]bool, addrs []mail.Address) []*sgmail.Email {
	emails := make([]*sgmail.Email, 0, len(addrs))
	for _, a := range addrs {
		key := strings.ToLower(a.Address)
		if seen[key] {
			continue
		}
		seen[key] = true
		emails = append(emails, sgmail.NewEmail(a.Name, a.Address))
	}
	return emails
}

// deliverWithRetry retries transport failures, rate limiting and server errors with a linear backoff.
func (svc *sendgridService) deliverWithRetry(m *sgmail.SGMailV3) error {
	var err error
	for attempt := 1; attempt <= sendAttempts; attempt++ {
		if attempt > 1 {
			time.Sleep(time.Duration(attempt-1) * svc.retryDelay)
		}

		var res *rest.Response
		if res, err = svc.deliver(m); err == nil {
			if res.StatusCode < http.StatusBadRequest {
				return nil
			}
			err = &deliveryError{status: res.StatusCode, body: res.Body}
		}

		var dErr *deliveryError
		if errors.As(err, &dErr) && !dErr.temporary() {
			return err
		}
	}
	return errors.Wrapf(err, "giving up after %d attempts", sendAttempts)
}

func logFields(msg core.EmailMessage) map[string]interface{} {
	return map[string]interface{}{
		"subject":    msg.Subject,
		"template":   msg.TemplateName,
		"recipients": len(msg.To) + len(msg.Cc) + len(msg.Bcc),
	}
}
