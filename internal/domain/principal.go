package domain

import "context"

// Principal is the stable identity the session service resolves a
// connection to. The engine trusts this identity and performs no
// authentication of its own.
type Principal struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// PrincipalResolver resolves a bearer token to a principal. Implemented by
// the external authentication/session service; tests use in-memory fakes.
type PrincipalResolver interface {
	Resolve(ctx context.Context, token string) (*Principal, error)
}
