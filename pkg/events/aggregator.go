// Package events implements the run-scoped event aggregator. Every batch run
// owns one Aggregator that records leveled events to the run log, forwards
// them to the optional mail and chat collaborators, and dispatches the final
// summary when the run ends.
package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/taskherald/herald/pkg/chat"
	"github.com/taskherald/herald/pkg/logsink"
	"github.com/taskherald/herald/pkg/mail"
)

// ChatPolicy controls when the end-of-run chat notification is dispatched.
type ChatPolicy int

const (
	ChatUnset ChatPolicy = iota
	ChatAlways
	ChatOnErrorOnly
	ChatNever
)

// Mailer is the slice of pkg/mail the aggregator needs.
type Mailer interface {
	AddContent(level, text, timestamp string)
	Attach(path string)
	Send() error
}

// ChatNotifier is the slice of pkg/chat the aggregator needs.
type ChatNotifier interface {
	Info(action string)
	Error(action string)
	Send(ctx context.Context) error
}

// RunRecorder persists events for later inspection. Implementations must be
// best-effort: they report their own failures and never panic.
type RunRecorder interface {
	Record(level, action, message string)
	Finish(summary string, errors, warnings int)
}

// Config is the slice of the run configuration the aggregator consumes.
type Config struct {
	// Email enables the mail channel when non-nil. See pkg/mail for the
	// expected keys; the optional "send-emails" key ("yes"/"y"/"no"/"n")
	// gates the actual send.
	Email map[string]string

	// Notification enables the chat channel when non-empty; one of
	// "always", "error", "never".
	Notification string

	// ChatWebhook, ChatChannel and ChatUsername configure the Mattermost
	// collaborator. The channel stays disabled without a webhook URL.
	ChatWebhook  string
	ChatChannel  string
	ChatUsername string
}

// Aggregator owns the run counters, the log sink and the optional
// collaborators. It is not safe for concurrent use; concurrent runs must each
// own an independent Aggregator and log sink.
type Aggregator struct {
	sink *logsink.Sink

	errorCount   int
	warningCount int

	chat       ChatNotifier
	chatPolicy ChatPolicy

	mailer   Mailer
	sendMail bool

	recorder RunRecorder
	now      func() time.Time
}

type options struct {
	chat     ChatNotifier
	mailer   Mailer
	recorder RunRecorder
}

// Option overrides collaborator wiring, for tests and for callers that bring
// their own transports.
type Option func(*options)

// WithChatNotifier replaces the Mattermost collaborator the aggregator would
// otherwise construct. It only takes effect when the chat channel is enabled
// through Config.Notification.
func WithChatNotifier(c ChatNotifier) Option {
	return func(o *options) { o.chat = c }
}

// WithMailer replaces the SMTP mailer the aggregator would otherwise
// construct. It only takes effect when the mail channel is enabled through
// Config.Email.
func WithMailer(m Mailer) Option {
	return func(o *options) { o.mailer = m }
}

// WithRecorder wires a run-history recorder.
func WithRecorder(r RunRecorder) Option {
	return func(o *options) { o.recorder = r }
}

// New builds the aggregator for one run. The sink must be open. Collaborators
// are constructed from cfg, validated, and dropped when their configuration
// is unusable. Policy keywords that fail validation degrade to their most
// talkative default and surface as warning events on the freshly built
// aggregator, so a misconfigured run still notifies someone.
func New(sink *logsink.Sink, cfg Config, opts ...Option) *Aggregator {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &Aggregator{
		sink:     sink,
		sendMail: true,
		recorder: o.recorder,
		now:      time.Now,
	}

	if cfg.Notification != "" {
		policy, ok := ParseChatPolicy(cfg.Notification)
		a.chatPolicy = policy
		if !ok {
			a.Warning("JSON read", "Notifications keyword format not supported. Default value is always.")
		}
		a.chat = o.chat
		if a.chat == nil && cfg.ChatWebhook != "" {
			a.chat = chat.New(cfg.ChatWebhook, cfg.ChatChannel, cfg.ChatUsername)
		}
	}

	if cfg.Email != nil {
		m := o.mailer
		if m == nil {
			// Construction defects surface as CRITICAL log lines via
			// the Reporter callback; a broken mailer is dropped and
			// the run continues without the mail channel.
			if cm := mail.New(cfg.Email, a); cm.CriticalErrors() == 0 {
				m = cm
			}
		}
		if m != nil {
			a.mailer = m
			a.sendMail = a.parseSendMail(cfg.Email)
		}
	}

	return a
}

// ParseChatPolicy maps a notification keyword to a ChatPolicy. Unrecognized
// keywords fall back to ChatAlways; the second return reports whether the
// keyword was recognized.
func ParseChatPolicy(s string) (ChatPolicy, bool) {
	switch s {
	case "always":
		return ChatAlways, true
	case "error":
		return ChatOnErrorOnly, true
	case "never":
		return ChatNever, true
	default:
		return ChatAlways, false
	}
}

func (a *Aggregator) parseSendMail(cfg map[string]string) bool {
	raw, ok := cfg["send-emails"]
	if !ok {
		a.Warning("Getting email config", "Missing keyword 'send-emails' in email configuration. Default value is yes.")
		return true
	}
	switch strings.ToLower(raw) {
	case "yes", "y":
		return true
	case "no", "n":
		return false
	default:
		a.Warning("Getting email config", "Keyword 'send-emails' format not supported. Default value is yes.")
		return true
	}
}

// Info records a successful step. Recording never fails and never touches the
// counters.
func (a *Aggregator) Info(action, message string) {
	a.sink.Info(format(action, message, `Task: %q went smoothly.`))
	if a.chat != nil {
		a.chat.Info(action)
	}
	a.addMailContent("INFO", action, message, `%q occured properly.`)
	a.record("INFO", action, message)
}

// Warning records a recoverable defect. Warnings go to the log and the mail
// report but never to chat.
func (a *Aggregator) Warning(action, message string) {
	a.warningCount++
	a.sink.Warning(format(action, message, `Task: %q raised a warning.`))
	a.addMailContent("WARNING", action, message, `%q raised a warning.`)
	a.record("WARNING", action, message)
}

// Error records a failed step.
func (a *Aggregator) Error(action, message string) {
	a.errorCount++
	a.sink.Error(format(action, message, `Task: %q did not occured properly.`))
	if a.chat != nil {
		a.chat.Error(action)
	}
	a.addMailContent("ERROR", action, message, `%q did not occured properly.`)
	a.record("ERROR", action, message)
}

// Critical records an unrecoverable setup failure. Log-only: no counters, no
// chat, no mail, so it stays safe to call while collaborators are half-built.
func (a *Aggregator) Critical(action, message string) {
	a.sink.Critical(format(action, message, `Task: %q failed.`))
	a.record("CRITICAL", action, message)
}

// ErrorCount reports how many error events were recorded so far.
func (a *Aggregator) ErrorCount() int { return a.errorCount }

// WarningCount reports how many warning events were recorded so far.
func (a *Aggregator) WarningCount() int { return a.warningCount }

// LogFile returns the base name of the run log file.
func (a *Aggregator) LogFile() string { return a.sink.Filename() }

// SendAll finalizes the run: it dispatches the chat notification and the mail
// report according to policy, then writes the summary line. Call it exactly
// once, at the end of the run. Collaborator failures are logged at CRITICAL
// and never block the summary.
func (a *Aggregator) SendAll(ctx context.Context) {
	if a.chat != nil && a.chatPolicy != ChatUnset {
		// Grouping matters: always, or error-policy with at least one
		// error. An error-policy run with zero errors stays silent.
		if a.chatPolicy == ChatAlways || (a.chatPolicy == ChatOnErrorOnly && a.errorCount > 0) {
			if err := a.chat.Send(ctx); err != nil {
				a.Critical("Mattermost notification", err.Error())
			}
		}
	}

	if a.sendMail && a.mailer != nil {
		a.mailer.Attach(a.sink.Path())
		if err := a.mailer.Send(); err != nil {
			a.Critical("Sending email", err.Error())
		}
	}

	summary := a.summary()
	if a.errorCount > 0 {
		a.sink.Error(summary)
	} else {
		a.sink.Info(summary)
	}
	if a.recorder != nil {
		a.recorder.Finish(summary, a.errorCount, a.warningCount)
	}
}

func (a *Aggregator) summary() string {
	switch {
	case a.errorCount > 0 && a.warningCount > 0:
		return fmt.Sprintf("Not done with %d errors and %d warnings.", a.errorCount, a.warningCount)
	case a.errorCount > 0:
		return fmt.Sprintf("Not done with %d errors.", a.errorCount)
	case a.warningCount > 0:
		return fmt.Sprintf("Done with %d warnings.", a.warningCount)
	default:
		return "Done"
	}
}

func (a *Aggregator) addMailContent(level, action, message, fallback string) {
	if a.mailer == nil {
		return
	}
	a.mailer.AddContent(level, format(action, message, fallback), a.now().Format(logsink.TimeFormat))
}

func (a *Aggregator) record(level, action, message string) {
	if a.recorder != nil {
		a.recorder.Record(level, action, message)
	}
}

func format(action, message, fallback string) string {
	if message == "" {
		return fmt.Sprintf(fallback, action)
	}
	return action + ": " + message
}
