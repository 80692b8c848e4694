package watch

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/alert-receiver/internal/domain/alert"
)

// TestPrintAlert renders the display string or a JSON document.
func TestPrintAlert(t *testing.T) {
	t.Parallel()

	now := time.Now()
	a := alert.New(alert.NewIDGenerator().Next(now), "Fire drill", "127.0.0.1:40000", 10, now)

	var buf bytes.Buffer

	require.NoError(t, printAlert(&buf, a, false))
	require.Contains(t, buf.String(), "127.0.0.1:40000")
	require.True(t, strings.HasSuffix(buf.String(), "Alert: Fire drill\n"))

	buf.Reset()

	require.NoError(t, printAlert(&buf, a, true))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	require.Equal(t, a.ID.String(), doc["id"])
	require.Equal(t, "Fire drill", doc["text"])
}

// TestPrintStatus renders counters and relative times.
func TestPrintStatus(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	status := alert.Status{
		State:     alert.StateStopped,
		Reason:    "socket closed unexpectedly",
		LocalAddr: "0.0.0.0:5000",
		Received:  12345,
		StartedAt: now.Add(-2 * time.Hour),
		StoppedAt: now.Add(-5 * time.Minute),
	}

	var buf bytes.Buffer

	require.NoError(t, printStatus(&buf, status, false, now))

	out := buf.String()
	require.Contains(t, out, "stopped")
	require.Contains(t, out, "12,345")
	require.Contains(t, out, "2 hours ago")
	require.Contains(t, out, "5 minutes ago")
	require.Contains(t, out, "socket closed unexpectedly")

	buf.Reset()

	require.NoError(t, printStatus(&buf, status, true, now))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	require.Equal(t, "stopped", doc["state"])
	require.Equal(t, "0.0.0.0:5000", doc["local_addr"])
}
