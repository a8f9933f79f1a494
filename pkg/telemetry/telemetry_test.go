package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlogSink_WritesStructuredRecord(t *testing.T) {
	var buf bytes.Buffer
	sink := NewSlogSink(&buf)
	ts := time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)

	err := sink.Emit(context.Background(), "user-1", Event{
		EventName:       EventGenerate,
		Surface:         "today_plan",
		SuggestionID:    "rec-1",
		SuggestionCount: Count(3),
		TS:              ts,
	})
	require.NoError(t, err)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, EventGenerate, line["msg"])
	assert.Equal(t, "telemetry", line["component"])
	assert.Equal(t, "user-1", line["userId"])
	assert.Equal(t, "today_plan", line["surface"])
	assert.Equal(t, "rec-1", line["suggestionId"])
	assert.Equal(t, float64(3), line["suggestionCount"])
	assert.Equal(t, "2026-10-17T09:30:00Z", line["ts"])
	assert.NotContains(t, line, "todoId")
	assert.NotContains(t, line, "selectedTodoIdsCount")
}

func TestSlogSink_RejectsUnknownEvent(t *testing.T) {
	var buf bytes.Buffer
	err := NewSlogSink(&buf).Emit(context.Background(), "u", Event{EventName: "clicked"})
	assert.Error(t, err)
	assert.Zero(t, buf.Len())
}

func TestValidateClientEvent(t *testing.T) {
	assert.NoError(t, ValidateClientEvent(EventView))
	assert.NoError(t, ValidateClientEvent(EventDismiss))
	assert.NoError(t, ValidateClientEvent(EventUndo))
	assert.Error(t, ValidateClientEvent(EventApply))
	assert.Error(t, ValidateClientEvent("delete_everything"))
}
