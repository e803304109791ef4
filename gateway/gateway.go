// Package gateway fronts a GraphQL endpoint with query-cost admission
// control: it prices every incoming request against a compiled cost model
// before forwarding it upstream, rejecting requests that cost too much.
package gateway

import (
	"context"
	stderrors "errors"
	"io"
	"math/big"
	"net/http"
	"strconv"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/google/uuid"

	"github.com/ccbrown/gqlcost/costmodel"
	"github.com/ccbrown/gqlcost/modelcache"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Upstream executes an already-admitted GraphQL request and returns the raw
// response body to relay to the client.
type Upstream interface {
	Execute(ctx context.Context, query, variablesJSON string) ([]byte, error)
}

// Config configures a Server.
type Config struct {
	// ModelSource and GlobalsJSON define the cost model requests are priced
	// against.
	ModelSource string
	GlobalsJSON string

	// MaxCost rejects any request whose computed cost exceeds it. A zero
	// value means no request is ever too expensive to forward.
	MaxCost int64

	Upstream Upstream
	Logger   logrus.FieldLogger

	// Cache, if non-nil, is used to memoize the compiled cost model instead
	// of compiling ModelSource/GlobalsJSON on every Server construction.
	Cache *modelcache.Cache
}

// Server is an admission-control HTTP front end for a GraphQL upstream.
type Server struct {
	model    *costmodel.CostModel
	maxCost  int64
	upstream Upstream
	logger   logrus.FieldLogger
}

type requestBody struct {
	Query     string          `json:"query"`
	Variables jsoniter.RawMessage `json:"variables"`
}

type errorResponse struct {
	Errors []errorDetail `json:"errors"`
}

type errorDetail struct {
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
	Cost    string `json:"cost,omitempty"`
}

// NewServer compiles (or looks up, if cfg.Cache is set) the configured cost
// model and returns a Server ready to handle requests.
func NewServer(cfg Config) (*Server, error) {
	var model *costmodel.CostModel
	var err error
	if cfg.Cache != nil {
		model, err = cfg.Cache.Get(cfg.ModelSource, cfg.GlobalsJSON)
	} else {
		model, err = costmodel.Compile(cfg.ModelSource, cfg.GlobalsJSON)
	}
	if err != nil {
		return nil, errors.Wrap(err, "gateway: compiling cost model")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Server{
		model:    model,
		maxCost:  cfg.MaxCost,
		upstream: cfg.Upstream,
		logger:   logger,
	}, nil
}

// ServeHTTP implements http.Handler. It reads a POST body shaped like a
// standard GraphQL-over-HTTP request, prices the query, and either rejects
// it with a 402 Payment Required or forwards it to the upstream.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()
	logger := s.logger.WithField("request_id", requestID)

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, errorDetail{Message: "error reading request body"})
		return
	}

	var req requestBody
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, errorDetail{Message: "malformed request body"})
		return
	}

	variablesJSON := "{}"
	if len(req.Variables) > 0 {
		variablesJSON = string(req.Variables)
	}

	cost, err := s.model.Cost(req.Query, variablesJSON)
	if err != nil {
		logger.WithError(err).Warn("gateway: query not costed")
		kind := ""
		var cmErr *costmodel.Error
		if stderrors.As(err, &cmErr) {
			kind = cmErr.Kind.String()
		}
		writeError(w, http.StatusUnprocessableEntity, errorDetail{
			Message: err.Error(),
			Kind:    kind,
		})
		return
	}

	if s.maxCost > 0 && cost.Cmp(big.NewInt(s.maxCost)) > 0 {
		logger.WithField("cost", cost.String()).Info("gateway: rejecting query, too expensive")
		writeError(w, http.StatusPaymentRequired, errorDetail{
			Message: "query cost exceeds the maximum allowed",
			Cost:    cost.String(),
		})
		return
	}

	logger.WithField("cost", cost.String()).Debug("gateway: admitting query")

	resp, err := s.upstream.Execute(r.Context(), req.Query, variablesJSON)
	if err != nil {
		logger.WithError(err).Error("gateway: upstream execution failed")
		writeError(w, http.StatusBadGateway, errorDetail{Message: "upstream execution failed"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(resp)))
	w.Header().Set("X-Query-Cost", cost.String())
	w.Write(resp)
}

func writeError(w http.ResponseWriter, status int, detail errorDetail) {
	body, err := json.Marshal(errorResponse{Errors: []errorDetail{detail}})
	if err != nil {
		http.Error(w, detail.Message, status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}
