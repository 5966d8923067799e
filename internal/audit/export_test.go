package audit

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCSV_FlattensDetails(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	entries := []Entry{
		{
			ID:         "a-1",
			Timestamp:  at,
			Agent:      "fred",
			Action:     "send_newsletter",
			EntityID:   "campaign-7",
			EntityType: "campaign",
			Outcome:    OutcomeSuccess,
			Details:    map[string]any{"queue": "email", "attempts": 1},
		},
		{ID: "a-2", Timestamp: at, Agent: "velma", Action: "verify_fund", Outcome: OutcomePending},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, entries))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, CSVHeader, records[0])
	assert.Equal(t, []string{
		"a-1", "2026-03-14T09:30:00Z", "fred", "send_newsletter",
		"campaign-7", "campaign", "success", "attempts=1;queue=email",
	}, records[1])
	assert.Equal(t, "", records[2][7], "empty details flatten to empty string")
}

func TestWriteJSON_FullStructure(t *testing.T) {
	entries := []Entry{{
		ID:      "a-1",
		Agent:   "fred",
		Action:  "send_newsletter",
		Outcome: OutcomeSuccess,
		Details: map[string]any{"queue": "email"},
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, entries))

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "a-1", decoded[0]["id"])
	details, ok := decoded[0]["details"].(map[string]any)
	require.True(t, ok, "JSON export keeps the nested details object")
	assert.Equal(t, "email", details["queue"])
}
