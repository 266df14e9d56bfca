// Package session is C6: the opaque-token-to-account mapping. Like
// book, ledger and engine it carries no lock of its own — the trading
// session facade (C8) holds the single core mutex while calling it,
// per spec §5.
package session

import (
	"bourse/internal/clock"
	"bourse/internal/common"
)

// Registry maps bearer session tokens to accounts. A session, once
// created, lives for the process lifetime (spec §3 "Session").
type Registry struct {
	accounts map[string]common.AccountID
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{accounts: make(map[string]common.AccountID)}
}

// Resolve looks up sessionID. If it is empty or unknown, a fresh token
// and a fresh account id are minted and registered; isNew reports
// whether that happened so the caller (transport layer) knows to set
// the session cookie.
func (r *Registry) Resolve(sessionID string) (token string, account common.AccountID, isNew bool) {
	if sessionID != "" {
		if acc, ok := r.accounts[sessionID]; ok {
			return sessionID, acc, false
		}
	}
	token = clock.NewSessionID()
	account = common.AccountID(token)
	r.accounts[token] = account
	return token, account, true
}
