package events_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskherald/herald/pkg/events"
	"github.com/taskherald/herald/pkg/logsink"
)

type fakeChat struct {
	infos   []string
	errors  []string
	sends   int
	sendErr error
}

func (c *fakeChat) Info(action string)  { c.infos = append(c.infos, action) }
func (c *fakeChat) Error(action string) { c.errors = append(c.errors, action) }
func (c *fakeChat) Send(context.Context) error {
	c.sends++
	return c.sendErr
}

type fakeMailer struct {
	lines       []string
	attachments []string
	sends       int
	sendErr     error
}

func (m *fakeMailer) AddContent(level, text, _ string) {
	m.lines = append(m.lines, level+" "+text)
}
func (m *fakeMailer) Attach(path string) { m.attachments = append(m.attachments, path) }
func (m *fakeMailer) Send() error {
	m.sends++
	return m.sendErr
}

type fakeRecorder struct {
	events   []string
	summary  string
	errors   int
	warnings int
	finished bool
}

func (r *fakeRecorder) Record(level, action, message string) {
	r.events = append(r.events, level+" "+action)
}
func (r *fakeRecorder) Finish(summary string, errors, warnings int) {
	r.summary, r.errors, r.warnings, r.finished = summary, errors, warnings, true
}

func newTestSink(t *testing.T) *logsink.Sink {
	t.Helper()
	sink, err := logsink.New(filepath.Join(t.TempDir(), "run.log"))
	require.NoError(t, err)
	t.Cleanup(func() { sink.Close() })
	return sink
}

func readLog(t *testing.T, sink *logsink.Sink) string {
	t.Helper()
	data, err := os.ReadFile(sink.Path())
	require.NoError(t, err)
	return string(data)
}

func TestWarningCount(t *testing.T) {
	sink := newTestSink(t)
	agg := events.New(sink, events.Config{})

	for i := 0; i < 5; i++ {
		agg.Warning("cleanup", fmt.Sprintf("attempt %d", i))
	}

	assert.Equal(t, 5, agg.WarningCount())
	assert.Equal(t, 0, agg.ErrorCount())
}

func TestSendAll_SummaryTable(t *testing.T) {
	tests := []struct {
		name     string
		errors   int
		warnings int
		want     string
		level    string
	}{
		{"clean run", 0, 0, "Done", "INFO"},
		{"warnings only", 0, 3, "Done with 3 warnings.", "INFO"},
		{"errors only", 2, 0, "Not done with 2 errors.", "ERROR"},
		{"both", 1, 1, "Not done with 1 errors and 1 warnings.", "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := newTestSink(t)
			agg := events.New(sink, events.Config{})

			for i := 0; i < tt.errors; i++ {
				agg.Error("step", "")
			}
			for i := 0; i < tt.warnings; i++ {
				agg.Warning("step", "")
			}

			agg.SendAll(context.Background())

			lines := strings.Split(strings.TrimRight(readLog(t, sink), "\n"), "\n")
			last := lines[len(lines)-1]
			assert.Contains(t, last, fmt.Sprintf(" - %s - %s", tt.level, tt.want))
		})
	}
}

func TestNew_InvalidNotificationKeyword(t *testing.T) {
	sink := newTestSink(t)
	chat := &fakeChat{}
	agg := events.New(sink, events.Config{Notification: "banana"}, events.WithChatNotifier(chat))

	assert.Equal(t, 1, agg.WarningCount())
	assert.Contains(t, readLog(t, sink),
		" - WARNING - JSON read: Notifications keyword format not supported. Default value is always.")

	// The degraded policy is "always".
	agg.SendAll(context.Background())
	assert.Equal(t, 1, chat.sends)
}

func TestParseChatPolicy(t *testing.T) {
	tests := []struct {
		in   string
		want events.ChatPolicy
		ok   bool
	}{
		{"always", events.ChatAlways, true},
		{"error", events.ChatOnErrorOnly, true},
		{"never", events.ChatNever, true},
		{"banana", events.ChatAlways, false},
		{"Always", events.ChatAlways, false},
	}

	for _, tt := range tests {
		got, ok := events.ParseChatPolicy(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}
}

func TestSendAll_ChatPolicyAlways(t *testing.T) {
	sink := newTestSink(t)
	chat := &fakeChat{}
	agg := events.New(sink, events.Config{Notification: "always"}, events.WithChatNotifier(chat))

	agg.SendAll(context.Background())
	assert.Equal(t, 1, chat.sends)
}

func TestSendAll_ChatPolicyError_NoErrors(t *testing.T) {
	sink := newTestSink(t)
	chat := &fakeChat{}
	agg := events.New(sink, events.Config{Notification: "error"}, events.WithChatNotifier(chat))

	agg.Warning("cleanup", "")
	agg.SendAll(context.Background())

	assert.Equal(t, 0, chat.sends)
}

func TestSendAll_ChatPolicyError_WithError(t *testing.T) {
	sink := newTestSink(t)
	chat := &fakeChat{}
	agg := events.New(sink, events.Config{Notification: "error"}, events.WithChatNotifier(chat))

	agg.Error("send file", "disk full")
	agg.SendAll(context.Background())

	assert.Equal(t, 1, chat.sends)
	assert.Equal(t, []string{"send file"}, chat.errors)
}

func TestSendAll_ChatPolicyNever(t *testing.T) {
	sink := newTestSink(t)
	chat := &fakeChat{}
	agg := events.New(sink, events.Config{Notification: "never"}, events.WithChatNotifier(chat))

	agg.Error("send file", "")
	agg.SendAll(context.Background())

	assert.Equal(t, 0, chat.sends)
}

func TestNew_NoNotification_ChatAbsent(t *testing.T) {
	sink := newTestSink(t)
	chat := &fakeChat{}
	agg := events.New(sink, events.Config{}, events.WithChatNotifier(chat))

	agg.Info("backup", "")
	agg.SendAll(context.Background())

	assert.Empty(t, chat.infos)
	assert.Equal(t, 0, chat.sends)
}

func TestWarning_NeverForwardsToChat(t *testing.T) {
	sink := newTestSink(t)
	chat := &fakeChat{}
	agg := events.New(sink, events.Config{Notification: "always"}, events.WithChatNotifier(chat))

	agg.Warning("cleanup", "leftover files")

	assert.Empty(t, chat.infos)
	assert.Empty(t, chat.errors)
}

func TestInfo_ForwardsToChatAndMail(t *testing.T) {
	sink := newTestSink(t)
	chat := &fakeChat{}
	mailer := &fakeMailer{}
	agg := events.New(sink,
		events.Config{Notification: "always", Email: map[string]string{"send-emails": "yes"}},
		events.WithChatNotifier(chat), events.WithMailer(mailer))

	agg.Info("backup", "")
	agg.Info("upload", "42 files")

	assert.Equal(t, []string{"backup", "upload"}, chat.infos)
	require.Len(t, mailer.lines, 2)
	assert.Equal(t, `INFO "backup" occured properly.`, mailer.lines[0])
	assert.Equal(t, "INFO upload: 42 files", mailer.lines[1])
	assert.Equal(t, 0, agg.ErrorCount())
	assert.Equal(t, 0, agg.WarningCount())
}

func TestNew_BrokenMailerIsDropped(t *testing.T) {
	sink := newTestSink(t)
	// Only send-emails present: the mailer reports missing required keys.
	agg := events.New(sink, events.Config{Email: map[string]string{"send-emails": "banana"}})

	// The invalid send-emails value is never evaluated once the mailer is
	// dropped, so no warning may be recorded for it.
	assert.Equal(t, 0, agg.WarningCount())

	log := readLog(t, sink)
	assert.Contains(t, log, " - CRITICAL - Getting email config: Missing keyword")
	assert.NotContains(t, log, "send-emails' format not supported")
}

func TestNew_MissingSendEmailsKey(t *testing.T) {
	sink := newTestSink(t)
	mailer := &fakeMailer{}
	agg := events.New(sink, events.Config{Email: map[string]string{}}, events.WithMailer(mailer))

	assert.Equal(t, 1, agg.WarningCount())
	assert.Contains(t, readLog(t, sink), "Missing keyword 'send-emails'")

	agg.SendAll(context.Background())
	assert.Equal(t, 1, mailer.sends)
}

func TestNew_SendEmailsNo(t *testing.T) {
	sink := newTestSink(t)
	mailer := &fakeMailer{}
	agg := events.New(sink, events.Config{Email: map[string]string{"send-emails": "No"}},
		events.WithMailer(mailer))

	agg.Error("send file", "")
	agg.SendAll(context.Background())

	// Content is still accumulated, only the send is suppressed.
	assert.NotEmpty(t, mailer.lines)
	assert.Equal(t, 0, mailer.sends)
}

func TestNew_SendEmailsInvalid(t *testing.T) {
	sink := newTestSink(t)
	mailer := &fakeMailer{}
	agg := events.New(sink, events.Config{Email: map[string]string{"send-emails": "banana"}},
		events.WithMailer(mailer))

	assert.Equal(t, 1, agg.WarningCount())

	agg.SendAll(context.Background())
	assert.Equal(t, 1, mailer.sends)
}

func TestSendAll_AttachesRunLog(t *testing.T) {
	sink := newTestSink(t)
	mailer := &fakeMailer{}
	agg := events.New(sink, events.Config{Email: map[string]string{"send-emails": "y"}},
		events.WithMailer(mailer))

	agg.SendAll(context.Background())

	require.Len(t, mailer.attachments, 1)
	assert.Equal(t, sink.Path(), mailer.attachments[0])
}

func TestCritical_TouchesNothing(t *testing.T) {
	sink := newTestSink(t)
	chat := &fakeChat{}
	mailer := &fakeMailer{}
	agg := events.New(sink,
		events.Config{Notification: "always", Email: map[string]string{"send-emails": "yes"}},
		events.WithChatNotifier(chat), events.WithMailer(mailer))

	agg.Critical("setup", "")

	assert.Equal(t, 0, agg.ErrorCount())
	assert.Equal(t, 0, agg.WarningCount())
	assert.Empty(t, chat.infos)
	assert.Empty(t, chat.errors)
	assert.Empty(t, mailer.lines)
	assert.Contains(t, readLog(t, sink), ` - CRITICAL - Task: "setup" failed.`)
}

func TestSendAll_CollaboratorFailuresDontBlockSummary(t *testing.T) {
	sink := newTestSink(t)
	chat := &fakeChat{sendErr: fmt.Errorf("webhook down")}
	mailer := &fakeMailer{sendErr: fmt.Errorf("smtp down")}
	agg := events.New(sink,
		events.Config{Notification: "always", Email: map[string]string{"send-emails": "yes"}},
		events.WithChatNotifier(chat), events.WithMailer(mailer))

	agg.SendAll(context.Background())

	log := readLog(t, sink)
	assert.Contains(t, log, " - CRITICAL - Mattermost notification: webhook down")
	assert.Contains(t, log, " - CRITICAL - Sending email: smtp down")
	assert.Contains(t, log, " - INFO - Done")
}

func TestScenario_NoConfig(t *testing.T) {
	sink := newTestSink(t)
	agg := events.New(sink, events.Config{})

	agg.Info("JSON read", "")
	agg.Error("send file", "disk full")
	agg.Warning("cleanup", "")
	agg.SendAll(context.Background())

	log := readLog(t, sink)
	assert.Contains(t, log, ` - INFO - Task: "JSON read" went smoothly.`)
	assert.Contains(t, log, " - ERROR - send file: disk full")
	assert.Contains(t, log, ` - WARNING - Task: "cleanup" raised a warning.`)
	assert.Contains(t, log, " - ERROR - Not done with 1 errors and 1 warnings.")
}

func TestLogFile(t *testing.T) {
	sink := newTestSink(t)
	agg := events.New(sink, events.Config{})

	assert.Equal(t, "run.log", agg.LogFile())
}

func TestRecorder_ReceivesEventsAndSummary(t *testing.T) {
	sink := newTestSink(t)
	rec := &fakeRecorder{}
	agg := events.New(sink, events.Config{}, events.WithRecorder(rec))

	agg.Info("backup", "")
	agg.Error("send file", "disk full")
	agg.Critical("setup", "")
	agg.SendAll(context.Background())

	assert.Equal(t, []string{"INFO backup", "ERROR send file", "CRITICAL setup"}, rec.events)
	assert.True(t, rec.finished)
	assert.Equal(t, "Not done with 1 errors.", rec.summary)
	assert.Equal(t, 1, rec.errors)
	assert.Equal(t, 0, rec.warnings)
}
