// Package mail accumulates a run report line by line and sends it over SMTP
// at the end of the run.
package mail

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/gomail.v2"
)

// Reporter receives construction-time failures. The event aggregator's
// Critical method satisfies it.
type Reporter interface {
	Critical(action, message string)
}

const defaultSubject = "Task run report"

// Mailer builds up the body of a run-report e-mail and sends it once. A
// mailer whose CriticalErrors count is non-zero was built from a broken
// configuration and must not be used.
type Mailer struct {
	sender    string
	recipient string
	host      string
	port      int
	username  string
	password  string
	subject   string

	content     []string
	attachments []string
	critical    int

	send func(msg *gomail.Message) error
}

// New builds a Mailer from a string-keyed configuration map. Required keys
// are "sender", "recipient", "smtp-server" and "smtp-port"; "smtp-user",
// "smtp-password" and "subject" are optional. Missing or malformed keys are
// reported through rep and counted.
func New(cfg map[string]string, rep Reporter) *Mailer {
	m := &Mailer{subject: defaultSubject}

	m.sender = m.require(cfg, "sender", rep)
	m.recipient = m.require(cfg, "recipient", rep)
	m.host = m.require(cfg, "smtp-server", rep)
	m.username = cfg["smtp-user"]
	m.password = cfg["smtp-password"]
	if s := cfg["subject"]; s != "" {
		m.subject = s
	}

	if port := m.require(cfg, "smtp-port", rep); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			rep.Critical("Getting email config", fmt.Sprintf("Keyword 'smtp-port' is not a number: %q.", port))
			m.critical++
		} else {
			m.port = p
		}
	}

	m.send = func(msg *gomail.Message) error {
		d := gomail.NewDialer(m.host, m.port, m.username, m.password)
		return d.DialAndSend(msg)
	}
	return m
}

func (m *Mailer) require(cfg map[string]string, key string, rep Reporter) string {
	v, ok := cfg[key]
	if !ok || v == "" {
		rep.Critical("Getting email config", fmt.Sprintf("Missing keyword %q in email configuration.", key))
		m.critical++
	}
	return v
}

// CriticalErrors reports how many configuration defects were found during
// construction.
func (m *Mailer) CriticalErrors() int { return m.critical }

// AddContent appends one timestamped, leveled line to the report body.
func (m *Mailer) AddContent(level, text, timestamp string) {
	m.content = append(m.content, fmt.Sprintf("%s - %s - %s", timestamp, level, text))
}

// Attach schedules a file, typically the run log, for attachment.
func (m *Mailer) Attach(path string) {
	m.attachments = append(m.attachments, path)
}

// Send delivers the accumulated report.
func (m *Mailer) Send() error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.sender)
	msg.SetHeader("To", m.recipient)
	msg.SetHeader("Subject", m.subject)
	msg.SetBody("text/plain", m.body())
	for _, path := range m.attachments {
		msg.Attach(path)
	}

	if err := m.send(msg); err != nil {
		return fmt.Errorf("send report mail: %w", err)
	}
	return nil
}

func (m *Mailer) body() string {
	if len(m.content) == 0 {
		return "No events were recorded during this run.\n"
	}
	return strings.Join(m.content, "\n") + "\n"
}
