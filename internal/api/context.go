package api

import (
	authDomain "github.com/allisson/mediaportal/internal/auth/domain"
)

// Context carries the per-request state the executor needs: the resolved
// caller identity, the authorization configuration and the reference-counted
// transaction handle.
type Context struct {
	Identity   *authDomain.Identity
	AuthConfig authDomain.Config
	Tx         *TxHandle
}
