package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/assets"
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/batch"
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/chains"
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/constants"
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/metrics"
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/session"
)

const sessionKey = "session"

// Connector opens a new session against the local wallet.
type Connector func(ctx context.Context) (*session.Session, error)

type TokenLister interface {
	List(network string) []assets.Token
}

type NetworkLister interface {
	List(ctx context.Context) ([]chains.NetworkConfig, error)
}

type Deps struct {
	Connect  Connector
	Parser   *batch.Cache
	Tokens   TokenLister
	Networks NetworkLister
	Metrics  *metrics.Metrics
	// Network is the disperse network sessions connect to.
	Network string
	// HeaderAge reports how stale the cached chain head is; optional.
	HeaderAge func() time.Duration
}

type Handler struct {
	sessions  *Registry
	connect   Connector
	parser    session.Parser
	tokens    TokenLister
	networks  NetworkLister
	metrics   *metrics.Metrics
	network   string
	headerAge func() time.Duration
}

func NewHandler(deps Deps) *Handler {
	var parser session.Parser = session.ParserFunc(batch.Parse)
	if deps.Parser != nil {
		parser = deps.Parser
	}
	return &Handler{
		sessions:  NewRegistry(),
		connect:   deps.Connect,
		parser:    parser,
		tokens:    deps.Tokens,
		networks:  deps.Networks,
		metrics:   deps.Metrics,
		network:   deps.Network,
		headerAge: deps.HeaderAge,
	}
}

func (h *Handler) Sessions() *Registry { return h.sessions }

// GET /api/health
func (h *Handler) Health(c *gin.Context) {
	res := healthRes{Status: "ok", Network: h.network, Sessions: h.sessions.Len()}
	if h.headerAge != nil {
		res.HeaderAgeSeconds = h.headerAge().Seconds()
	}
	c.JSON(http.StatusOK, res)
}

// POST /api/parse
func (h *Handler) Parse(c *gin.Context) {
	var req parseReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	decimals := uint8(constants.NativeDecimals)
	if req.Decimals != nil {
		decimals = *req.Decimals
	}
	c.JSON(http.StatusOK, session.NewBatchView(h.parser.Parse(req.Text, decimals)))
}

// GET /api/tokens
func (h *Handler) ListTokens(c *gin.Context) {
	tokens := []assets.Token{}
	if h.tokens != nil {
		tokens = append(tokens, h.tokens.List(h.network)...)
	}
	c.JSON(http.StatusOK, gin.H{"network": h.network, "tokens": tokens})
}

// GET /api/networks
func (h *Handler) ListNetworks(c *gin.Context) {
	if h.networks == nil {
		c.JSON(http.StatusOK, gin.H{"networks": []chains.NetworkConfig{}})
		return
	}
	list, err := h.networks.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"networks": list})
}

// POST /api/sessions
func (h *Handler) OpenSession(c *gin.Context) {
	if h.connect == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "no wallet connector configured"})
		return
	}
	s, err := h.connect(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	id := h.sessions.Add(s)
	v := s.Snapshot()
	log.Info("http: session opened", "id", id, "account", v.Account)

	c.JSON(http.StatusCreated, openSessionRes{
		ID:            id,
		Account:       v.Account,
		Network:       v.Network,
		ChainID:       v.ChainID,
		ChainMismatch: v.ChainMismatch,
	})
}

// withSession resolves :id into the session for the rest of the chain.
func (h *Handler) withSession(c *gin.Context) {
	s, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, errorResponse{Error: "unknown session"})
		return
	}
	c.Set(sessionKey, s)
	c.Next()
}

func currentSession(c *gin.Context) *session.Session {
	return c.MustGet(sessionKey).(*session.Session)
}

// GET /api/sessions/:id
func (h *Handler) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, currentSession(c).Snapshot())
}

// DELETE /api/sessions/:id
func (h *Handler) CloseSession(c *gin.Context) {
	id := c.Param("id")
	h.sessions.Remove(id)
	log.Info("http: session closed", "id", id)
	c.Status(http.StatusNoContent)
}

// PUT /api/sessions/:id/asset
func (h *Handler) SelectAsset(c *gin.Context) {
	var req selectAssetReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	kind, err := assets.ParseKind(req.Kind)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	s := currentSession(c)
	if _, err := s.SelectAsset(c.Request.Context(), kind, req.Address); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

// PUT /api/sessions/:id/recipients
func (h *Handler) SetRecipients(c *gin.Context) {
	var req recipientsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	s := currentSession(c)
	if _, err := s.SetRecipients(req.Text); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

// POST /api/sessions/:id/allowance/refresh
func (h *Handler) RefreshAllowance(c *gin.Context) {
	s := currentSession(c)
	snap, err := s.RefreshAllowance(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, allowanceRes{Allowance: snap, Session: s.Snapshot()})
}

// POST /api/sessions/:id/allowance/approve
func (h *Handler) Approve(c *gin.Context) {
	s := currentSession(c)
	out, err := s.Approve(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, txRes{Outcome: out, Session: s.Snapshot()})
}

// POST /api/sessions/:id/allowance/revoke
func (h *Handler) Revoke(c *gin.Context) {
	s := currentSession(c)
	out, err := s.Revoke(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, txRes{Outcome: out, Session: s.Snapshot()})
}

// POST /api/sessions/:id/send
//
// A transaction that was rejected, reverted or lost still answers 200; the
// outcome carries the failure.
func (h *Handler) Send(c *gin.Context) {
	s := currentSession(c)
	out, err := s.Send(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, txRes{Outcome: out, Session: s.Snapshot()})
}
