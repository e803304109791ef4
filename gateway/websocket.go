package gateway

import (
	stdjson "encoding/json"
	"math/big"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/google/uuid"
)

const wsCloseDeadline = time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsMessage is one admission-control request sent over the connection: price
// a query and report back whether its cost is within the server's budget.
type wsMessage struct {
	ID        string             `json:"id"`
	Query     string             `json:"query"`
	Variables stdjson.RawMessage `json:"variables"`
}

type wsResponse struct {
	ID       string `json:"id"`
	Cost     string `json:"cost,omitempty"`
	Error    string `json:"error,omitempty"`
	Admitted bool   `json:"admitted"`
}

// ServeWS upgrades r to a WebSocket connection and prices every subsequent
// message against the server's cost model, policing the connection for its
// entire lifetime rather than just its first request. The connection is
// closed with a policy-violation close code if a single message requests
// more cost than the server allows.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	connID := uuid.New().String()
	logger := s.logger.WithField("connection_id", connID)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WithError(err).Warn("gateway: websocket upgrade failed")
		return
	}
	defer conn.Close()

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.WithError(err).Debug("gateway: websocket connection closed unexpectedly")
			}
			return
		}

		resp := s.priceWSMessage(logger, msg)
		if err := conn.WriteJSON(resp); err != nil {
			logger.WithError(err).Debug("gateway: failed writing websocket response")
			return
		}

		if !resp.Admitted && s.maxCost > 0 && resp.Error == "" {
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "query cost exceeds the maximum allowed"),
				time.Now().Add(wsCloseDeadline))
			return
		}
	}
}

func (s *Server) priceWSMessage(logger logrus.FieldLogger, msg wsMessage) wsResponse {
	variablesJSON := "{}"
	if len(msg.Variables) > 0 {
		variablesJSON = string(msg.Variables)
	}

	cost, err := s.model.Cost(msg.Query, variablesJSON)
	if err != nil {
		logger.WithError(err).Warn("gateway: query not costed over websocket")
		return wsResponse{ID: msg.ID, Error: err.Error()}
	}

	admitted := s.maxCost <= 0 || cost.Cmp(big.NewInt(s.maxCost)) <= 0
	return wsResponse{ID: msg.ID, Cost: cost.String(), Admitted: admitted}
}
