package telemetry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Event names the sink accepts
const (
	EventGenerate = "ai_suggestion_generated"
	EventView     = "ai_suggestion_viewed"
	EventApply    = "ai_suggestion_applied"
	EventDismiss  = "ai_suggestion_dismissed"
	EventUndo     = "ai_suggestion_undone"
)

var allowedEvents = map[string]bool{
	EventGenerate: true,
	EventView:     true,
	EventApply:    true,
	EventDismiss:  true,
	EventUndo:     true,
}

// clientEvents are the names callers may post from the UI
var clientEvents = map[string]bool{
	EventView:    true,
	EventDismiss: true,
	EventUndo:    true,
}

// Event is one structured telemetry record
type Event struct {
	EventName            string    `json:"eventName"`
	Surface              string    `json:"surface,omitempty"`
	SuggestionID         string    `json:"suggestionId"`
	TodoID               string    `json:"todoId,omitempty"`
	SuggestionCount      *int      `json:"suggestionCount,omitempty"`
	SelectedTodoIDsCount *int      `json:"selectedTodoIdsCount,omitempty"`
	TS                   time.Time `json:"ts"`
}

// Sink is a one-way telemetry destination
type Sink interface {
	Emit(ctx context.Context, userID string, e Event) error
}

// ValidateClientEvent checks a client-posted event name
func ValidateClientEvent(name string) error {
	if !clientEvents[name] {
		return fmt.Errorf("unsupported telemetry event %q", name)
	}
	return nil
}

// Count returns a pointer for the optional count fields
func Count(n int) *int { return &n }

type slogSink struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewSlogSink writes events as JSON lines to w
func NewSlogSink(w io.Writer) Sink {
	return &slogSink{
		logger: slog.New(slog.NewJSONHandler(w, nil)).With("component", "telemetry"),
		now:    time.Now,
	}
}

func (s *slogSink) Emit(ctx context.Context, userID string, e Event) error {
	if !allowedEvents[e.EventName] {
		return fmt.Errorf("unknown telemetry event %q", e.EventName)
	}
	if e.TS.IsZero() {
		e.TS = s.now()
	}

	attrs := []slog.Attr{
		slog.String("userId", userID),
		slog.String("surface", e.Surface),
		slog.String("suggestionId", e.SuggestionID),
		slog.Time("ts", e.TS.UTC()),
	}
	if e.TodoID != "" {
		attrs = append(attrs, slog.String("todoId", e.TodoID))
	}
	if e.SuggestionCount != nil {
		attrs = append(attrs, slog.Int("suggestionCount", *e.SuggestionCount))
	}
	if e.SelectedTodoIDsCount != nil {
		attrs = append(attrs, slog.Int("selectedTodoIdsCount", *e.SelectedTodoIDsCount))
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, e.EventName, attrs...)
	return nil
}

type nopSink struct{}

// NewNopSink discards every event
func NewNopSink() Sink { return nopSink{} }

func (nopSink) Emit(context.Context, string, Event) error { return nil }
