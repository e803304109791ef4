package gateway

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeWS_PricesMessagesUntilPolicyViolation(t *testing.T) {
	s, _ := newTestServer(t, 10)

	srv := httptest.NewServer(http.HandlerFunc(s.ServeWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(wsMessage{ID: "1", Query: "query { a(n: 5) }"}))
	var resp wsResponse
	require.NoError(t, conn.ReadJSON(&resp))
	assert.True(t, resp.Admitted)
	assert.Equal(t, "5", resp.Cost)

	require.NoError(t, conn.WriteJSON(wsMessage{ID: "2", Query: "query { a(n: 50) }"}))
	require.NoError(t, conn.ReadJSON(&resp))
	assert.False(t, resp.Admitted)

	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
	closeErr, ok := err.(*websocket.CloseError)
	require.True(t, ok)
	assert.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)
}
