package http

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/allowance"
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/assets"
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/chains"
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/disperse"
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/session"
)

func isLoopbackRequest(r *http.Request) bool {
	ra := r.RemoteAddr

	h, _, err := net.SplitHostPort(ra)
	if err != nil {
		ip := net.ParseIP(ra)
		return ip != nil && ip.IsLoopback()
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}

func normalizeOrigin(in string) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return ""
	}
	u, err := url.Parse(in)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return fmt.Sprintf("%s://%s", strings.ToLower(u.Scheme), strings.ToLower(u.Host))
}

// statusFor maps the domain taxonomy onto HTTP. Anything unrecognised came
// from the chain or the wallet and is reported as a bad gateway.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrClosed):
		return http.StatusNotFound
	case errors.Is(err, assets.ErrInvalidAsset):
		return http.StatusUnprocessableEntity
	case errors.Is(err, disperse.ErrEmptyBatch),
		errors.Is(err, allowance.ErrNotApplicable):
		return http.StatusBadRequest
	case errors.Is(err, assets.ErrSuperseded),
		errors.Is(err, session.ErrChainMismatch),
		errors.Is(err, session.ErrNotApproved),
		errors.Is(err, disperse.ErrAssetNotReady),
		errors.Is(err, allowance.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, chains.ErrUnknownChain):
		return http.StatusUnprocessableEntity
	case errors.Is(err, assets.ErrChainRead):
		return http.StatusBadGateway
	default:
		return http.StatusBadGateway
	}
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error()}
	if hints := errors.GetAllHints(err); len(hints) > 0 {
		resp.Hint = hints[0]
	}
	if status >= http.StatusInternalServerError {
		log.Warn("http: request failed", "path", c.FullPath(), "status", status, "error", err)
	}
	c.JSON(status, resp)
}
