package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUpstream struct {
	calls int
}

func (u *fakeUpstream) Execute(ctx context.Context, query, variablesJSON string) ([]byte, error) {
	u.calls++
	return []byte(`{"data":{"ok":true}}`), nil
}

func newTestServer(t *testing.T, maxCost int64) (*Server, *fakeUpstream) {
	t.Helper()
	up := &fakeUpstream{}
	s, err := NewServer(Config{
		ModelSource: `query { a(n: $n) } => $n; default => 1;`,
		MaxCost:     maxCost,
		Upstream:    up,
	})
	require.NoError(t, err)
	return s, up
}

func TestServeHTTP_AdmitsCheapQuery(t *testing.T) {
	s, up := newTestServer(t, 100)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"query":"query { a(n: 5) }"}`))
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "5", w.Header().Get("X-Query-Cost"))
	assert.Equal(t, 1, up.calls)
}

func TestServeHTTP_RejectsExpensiveQuery(t *testing.T) {
	s, up := newTestServer(t, 10)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"query":"query { a(n: 50) }"}`))
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, 0, up.calls)
}

func TestServeHTTP_MalformedQueryIsUnprocessable(t *testing.T) {
	s, _ := newTestServer(t, 100)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"query":"query { "}`))
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestServeHTTP_RejectsNonPost(t *testing.T) {
	s, _ := newTestServer(t, 100)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
