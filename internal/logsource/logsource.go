// Package logsource implements the Log Collector (spec §4.2): it
// drives a predicate-filtered external log stream, parses structured
// records into model.LogEvent, and publishes them on a channel.
package logsource

import (
	"context"
	"encoding/json"
	"os/exec"
	"time"

	"github.com/rs/zerolog"

	"github.com/baikal/sentinel/internal/model"
	"github.com/baikal/sentinel/internal/streamreader"
)

// wireRecord mirrors the log source's per-line JSON object (§6).
// ProcessID is decoded as int64 so an out-of-range or negative value
// can be rejected explicitly rather than silently wrapping.
type wireRecord struct {
	Timestamp   string `json:"timestamp"`
	MessageType string `json:"messageType"`
	Subsystem   string `json:"subsystem"`
	Category    string `json:"category"`
	Process     string `json:"process"`
	ProcessID   int64  `json:"processID"`
	Message     string `json:"message"`
}

// timestampLayouts are tried in order; the log source emits either
// strict ISO-8601 or the platform "YYYY-MM-DD HH:MM:SS.ffffff±ZZZZ" form.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.000000-0700",
	"2006-01-02 15:04:05-0700",
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// Command builds the argv for spawning the external log source with
// the configured filter expression (§6: "the child is spawned with
// the configured filter expression as a parameter").
type Command struct {
	Name string
	Args func(filter string) []string
}

// Collector drives the Subprocess Stream Reader supervisor and emits
// parsed LogEvents on Events.
type Collector struct {
	cmd    Command
	filter string
	Events chan model.LogEvent

	sup     *streamreader.Supervisor
	stopped chan struct{}
	ctx     context.Context
	log     zerolog.Logger
}

// New creates a Log Collector. onDegraded is invoked when the
// supervisor enters degraded mode (§4.2, §7).
func New(cmd Command, filter string, onDegraded func(), log zerolog.Logger) *Collector {
	c := &Collector{
		cmd:     cmd,
		filter:  filter,
		Events:  make(chan model.LogEvent, 256),
		stopped: make(chan struct{}),
		ctx:     context.Background(),
		log:     log.With().Str("component", "logsource").Logger(),
	}

	spawn := func(ctx context.Context) (*exec.Cmd, error) {
		args := cmd.Args(filter)
		command := exec.CommandContext(ctx, cmd.Name, args...)
		command.Env = streamreader.SanitizeEnv()
		return command, nil
	}

	onStatus := func(st streamreader.Status) {
		if st == streamreader.StatusDegraded && onDegraded != nil {
			onDegraded()
		}
	}

	c.sup = streamreader.New(spawn, c.handleRecord, onStatus, c.log)
	return c
}

// Run blocks driving the supervisor until Stop is called.
func (c *Collector) Run(ctx context.Context) {
	c.ctx = ctx
	c.sup.Run(ctx)
	close(c.Events)
}

// Stop requests shutdown (idempotent).
func (c *Collector) Stop() {
	c.sup.Stop()
	select {
	case <-c.stopped:
	default:
		close(c.stopped)
	}
}

// handleRecord parses one JSON record. Malformed records, records
// missing an enumerated messageType, and send-side shutdown (receiver
// dropped, or Stop/ctx cancellation while blocked on Events) are all
// handled per §4.2/§7: the stream continues, a debug diagnostic is
// emitted, and nothing crashes or blocks past shutdown.
func (c *Collector) handleRecord(line string) streamreader.RecordResult {
	var rec wireRecord
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		c.log.Debug().Err(err).Str("line", line).Msg("skipping malformed log record")
		return streamreader.Skipped
	}

	mt, ok := model.ParseMessageType(rec.MessageType)
	if !ok {
		c.log.Debug().Str("messageType", rec.MessageType).Msg("skipping record with unrecognized messageType")
		return streamreader.Skipped
	}

	ts, ok := parseTimestamp(rec.Timestamp)
	if !ok {
		c.log.Debug().Str("timestamp", rec.Timestamp).Msg("skipping record with unparseable timestamp")
		return streamreader.Skipped
	}

	if rec.ProcessID < 0 || rec.ProcessID > 0xFFFFFFFF {
		c.log.Debug().Int64("processID", rec.ProcessID).Msg("skipping record with out-of-range processID")
		return streamreader.Skipped
	}

	event := model.LogEvent{
		Timestamp:   ts,
		MessageType: mt,
		Subsystem:   rec.Subsystem,
		Category:    rec.Category,
		Process:     rec.Process,
		ProcessID:   uint32(rec.ProcessID),
		Message:     rec.Message,
	}

	select {
	case c.Events <- event:
		return streamreader.Accepted
	case <-c.stopped:
		return streamreader.Skipped
	case <-c.ctx.Done():
		return streamreader.Skipped
	}
}

// DefaultFilter is the default log predicate (§6 table).
const DefaultFilter = "messageType == error OR messageType == fault"
