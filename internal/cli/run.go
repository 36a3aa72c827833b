package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/taskherald/herald/pkg/events"
	"github.com/taskherald/herald/pkg/history"
	"github.com/taskherald/herald/pkg/logsink"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Aggregate events from stdin and dispatch the end-of-run summary",
	Long: `Read one event per line from standard input in the form

    LEVEL|action[|message]

where LEVEL is one of INFO, WARNING, ERROR or CRITICAL. At end of input the
configured notifications are dispatched and the summary line is written to
the run log. Exits with status 1 when any error events were recorded.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("task", "", "task name for the run history (default from config)")
	runCmd.Flags().String("log-file", "", "run log path (default: a fresh file under log.dir)")
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	task, _ := cmd.Flags().GetString("task")
	if task == "" {
		task = cfg.Task
	}

	logPath, _ := cmd.Flags().GetString("log-file")
	if logPath == "" {
		logPath = logsink.DefaultPath(cfg.Log.Dir)
	}

	sink, err := logsink.New(logPath)
	if err != nil {
		return fmt.Errorf("open run log: %w", err)
	}
	defer sink.Close()

	var opts []events.Option
	if cfg.History.Enabled {
		store, err := history.NewSQLite(cfg.History.Path)
		if err != nil {
			return fmt.Errorf("open history store: %w", err)
		}
		defer store.Close()

		run, err := store.StartRun(cmd.Context(), task)
		if err != nil {
			return fmt.Errorf("start run: %w", err)
		}
		opts = append(opts, events.WithRecorder(history.NewRunLog(store, run.ID, newLogger())))
	}

	agg := events.New(sink, events.Config{
		Email:        cfg.Email,
		Notification: cfg.Notification,
		ChatWebhook:  cfg.Chat.WebhookURL,
		ChatChannel:  cfg.Chat.Channel,
		ChatUsername: cfg.Chat.Username,
	}, opts...)

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for scanner.Scan() {
		dispatch(agg, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		agg.Error("Reading events", err.Error())
	}

	agg.SendAll(cmd.Context())

	fmt.Fprintf(cmd.OutOrStdout(), "Run log: %s\n", sink.Path())
	if n := agg.ErrorCount(); n > 0 {
		return fmt.Errorf("run finished with %d errors", n)
	}
	return nil
}

// dispatch parses one input line and records it on the aggregator. Malformed
// lines become warning events so they show up in the run's own report.
func dispatch(agg *events.Aggregator, line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	parts := strings.SplitN(line, "|", 3)
	if len(parts) < 2 {
		agg.Warning("Parsing input", fmt.Sprintf("Malformed event line: %q.", line))
		return
	}

	action := strings.TrimSpace(parts[1])
	var message string
	if len(parts) == 3 {
		message = strings.TrimSpace(parts[2])
	}

	switch strings.ToUpper(strings.TrimSpace(parts[0])) {
	case "INFO":
		agg.Info(action, message)
	case "WARNING", "WARN":
		agg.Warning(action, message)
	case "ERROR":
		agg.Error(action, message)
	case "CRITICAL":
		agg.Critical(action, message)
	default:
		agg.Warning("Parsing input", fmt.Sprintf("Unknown level %q.", parts[0]))
	}
}
