package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

const queueSize = 128

type job struct {
	to      string
	subject string
	html    string
}

// Dispatcher queues outbound mail and delivers it from a worker goroutine,
// so ledger writes never wait on SMTP. Delivery failures are logged, never
// surfaced to the caller.
type Dispatcher struct {
	mailer     *Mailer
	appBaseURL string
	logger     *zap.Logger
	jobs       chan job
}

// NewDispatcher accepts a nil mailer; dispatch then degrades to a log line,
// which keeps local development working without SMTP credentials.
func NewDispatcher(mailer *Mailer, appBaseURL string, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		mailer:     mailer,
		appBaseURL: appBaseURL,
		logger:     logger,
		jobs:       make(chan job, queueSize),
	}
}

// Run drains the queue until ctx is cancelled. Call in a goroutine.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-d.jobs:
			if d.mailer == nil {
				d.logger.Info("mail dispatch skipped, no SMTP configured",
					zap.String("to", j.to), zap.String("subject", j.subject))
				continue
			}
			if err := d.mailer.Send(j.to, j.subject, j.html); err != nil {
				d.logger.Warn("mail delivery failed",
					zap.String("to", j.to), zap.String("subject", j.subject), zap.Error(err))
			}
		}
	}
}

// enqueue reports whether the message was accepted. A full queue drops
// the message rather than blocking the caller.
func (d *Dispatcher) enqueue(j job) bool {
	select {
	case d.jobs <- j:
		return true
	default:
		d.logger.Warn("mail queue full, dropping message", zap.String("to", j.to))
		return false
	}
}

func (d *Dispatcher) SendConnectionInvite(to, requesterName, inviteToken string) bool {
	acceptURL := fmt.Sprintf("%s/invites/%s", d.appBaseURL, inviteToken)
	subject, html := ConnectionInviteTemplate(requesterName, acceptURL)
	return d.enqueue(job{to: to, subject: subject, html: html})
}

func (d *Dispatcher) SendSurveyLink(to, doctorName, occasion, surveyID string) bool {
	surveyURL := fmt.Sprintf("%s/surveys/%s", d.appBaseURL, surveyID)
	subject, html := SurveyLinkTemplate(doctorName, occasion, surveyURL)
	return d.enqueue(job{to: to, subject: subject, html: html})
}

func (d *Dispatcher) SendSessionReminder(to, otherName, when, joinRef string) bool {
	subject, html := SessionReminderTemplate(otherName, when, joinRef)
	return d.enqueue(job{to: to, subject: subject, html: html})
}
