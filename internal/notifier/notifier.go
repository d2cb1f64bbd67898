// Package notifier sends the aggregate batch-completion e-mail. Missing
// credentials make notification a no-op, never an error.
package notifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/wneessen/go-mail"

	"github.com/galencky/whisper-stt-project/internal/logger"
	"github.com/galencky/whisper-stt-project/internal/uploader"
)

// Notifier reports one finished batch.
type Notifier interface {
	Notify(ctx context.Context, links []uploader.Link, runLog string) error
}

// Options holds SMTP credentials and endpoint.
type Options struct {
	User string
	Pass string
	To   string
	Host string
	Port int
}

type implNotifier struct {
	opts   Options
	logger logger.Logger
}

func New(opts Options, log logger.Logger) Notifier {
	return &implNotifier{opts: opts, logger: log}
}

func (n *implNotifier) enabled() bool {
	return n.opts.User != "" && n.opts.Pass != "" && n.opts.To != ""
}

// Notify sends one e-mail for the whole batch listing the published links,
// with the run log appended for context. Only successfully published items
// appear; without credentials the step is skipped.
func (n *implNotifier) Notify(ctx context.Context, links []uploader.Link, runLog string) error {
	if !n.enabled() {
		n.logger.Warn(ctx, "Email credentials not set - skipping notification")
		return nil
	}

	msg := mail.NewMsg()
	if err := msg.From(n.opts.User); err != nil {
		return errors.Wrap(err, "set sender")
	}
	if err := msg.To(n.opts.To); err != nil {
		return errors.Wrap(err, "set recipient")
	}
	msg.Subject("Whisper-STT batch completed")
	msg.SetBodyString(mail.TypeTextPlain, BuildBody(links, runLog))

	client, err := mail.NewClient(n.opts.Host,
		mail.WithPort(n.opts.Port),
		mail.WithSSL(),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(n.opts.User),
		mail.WithPassword(n.opts.Pass),
	)
	if err != nil {
		return errors.Wrap(err, "create mail client")
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return errors.Wrap(err, "send mail")
	}

	n.logger.Info(ctx, "E-mail sent to %s (%d link(s))", n.opts.To, len(links))
	return nil
}

// BuildBody renders the notification text.
func BuildBody(links []uploader.Link, runLog string) string {
	var b strings.Builder
	b.WriteString("Hello,\n\n")
	b.WriteString("Your audio batch has been transcribed and summarised.\n")

	if len(links) > 0 {
		b.WriteString("\nPublished summaries:\n")
		for _, link := range links {
			fmt.Fprintf(&b, "- %s: %s\n", link.Title, link.URL)
		}
		b.WriteString("\nThese notes are public to anyone with the link.\n")
	} else {
		b.WriteString("\nNo summaries were published this run.\n")
	}

	if runLog = strings.TrimSpace(runLog); runLog != "" {
		b.WriteString("\n--- run log ---\n")
		b.WriteString(runLog)
		b.WriteString("\n")
	}

	b.WriteString("\nWhisper-STT-Project Bot\n")
	return b.String()
}
