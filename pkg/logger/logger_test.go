package logger

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLogger_FormatRFC3339Millis(t *testing.T) {
	ts := time.Date(2018, 11, 15, 9, 30, 26, 796_123_456, time.FixedZone("PST", -8*3600))
	require.Equal(t, "2018-11-15T17:30:26.796Z", formatRFC3339Millis(ts))
}

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, false)
	log.Debug("hidden")
	log.Info("shown")
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "shown")

	buf.Reset()
	log = New(&buf, true)
	log.Debug("visible")
	require.Contains(t, buf.String(), "visible")
}

func TestLogger_DropsEmptyStrings(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, false)
	log.Info("wrote table", "table", "songs", "partition", "")
	require.Contains(t, buf.String(), "table=songs")
	require.NotContains(t, buf.String(), "partition")
}
