package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_PushEmptyURLIsNoop(t *testing.T) {
	require.NoError(t, Push(context.Background(), ""))
}

func TestMetrics_Push(t *testing.T) {
	RowsWritten.WithLabelValues("songplays").Set(319)

	var gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, Push(context.Background(), srv.URL))
	require.Equal(t, "/metrics/job/songlake", gotPath)
	require.NotEmpty(t, gotBody)
	require.Equal(t, float64(319), testutil.ToFloat64(RowsWritten.WithLabelValues("songplays")))
}

func TestMetrics_PushError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := Push(context.Background(), srv.URL)
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "failed to push metrics"))
}
