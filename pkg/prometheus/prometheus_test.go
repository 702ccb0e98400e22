package prometheus

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/questx-lab/badgehub/internal/common"
	"github.com/stretchr/testify/require"
)

func TestNewHandler(t *testing.T) {
	common.PromCounters[common.AwardAttemptTotal].WithLabelValues("committed").Inc()

	handler := NewHandler(NewRegistry())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `award_attempts_total{state="committed"}`)
	require.Contains(t, string(body), "go_goroutines")
}
