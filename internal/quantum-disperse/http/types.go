package http

import (
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/allowance"
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/session"
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/txoutcome"
)

type errorResponse struct {
	Error string `json:"error"`
	Hint  string `json:"hint,omitempty"`
}

type healthRes struct {
	Status           string  `json:"status"`
	Network          string  `json:"network"`
	Sessions         int     `json:"sessions"`
	HeaderAgeSeconds float64 `json:"headerAgeSeconds,omitempty"`
}

type parseReq struct {
	Text     string `json:"text"`
	Decimals *uint8 `json:"decimals"`
}

type openSessionRes struct {
	ID            string `json:"id"`
	Account       string `json:"account"`
	Network       string `json:"network"`
	ChainID       uint64 `json:"chainId"`
	ChainMismatch bool   `json:"chainMismatch"`
}

type selectAssetReq struct {
	Kind    string `json:"kind"    binding:"required"`
	Address string `json:"address"`
}

type recipientsReq struct {
	Text string `json:"text"`
}

type allowanceRes struct {
	Allowance allowance.Snapshot `json:"allowance"`
	Session   session.View       `json:"session"`
}

type txRes struct {
	Outcome txoutcome.Outcome `json:"outcome"`
	Session session.View      `json:"session"`
}
