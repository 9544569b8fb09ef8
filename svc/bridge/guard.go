package bridge

import "context"

// Guard answers authentication questions for the current request.
type Guard interface {
	Check(ctx context.Context) bool
	User(ctx context.Context) Authenticatable
}

// UserProvider looks users up by identifier.
type UserProvider interface {
	RetrieveByID(ctx context.Context, id string) (Authenticatable, error)
}

// CredentialProvider is a UserProvider that can also authenticate raw
// credentials. SessionProvider does not implement it.
type CredentialProvider interface {
	UserProvider
	RetrieveByCredentials(ctx context.Context, credentials map[string]string) (Authenticatable, error)
	ValidateCredentials(ctx context.Context, user Authenticatable, credentials map[string]string) bool
}

// SupportsCredentials reports whether p can look users up by credentials.
func SupportsCredentials(p UserProvider) bool {
	_, ok := p.(CredentialProvider)
	return ok
}

// RetrieveByCredentials delegates to p when it supports credential lookup.
func RetrieveByCredentials(ctx context.Context, p UserProvider, credentials map[string]string) (Authenticatable, error) {
	cp, ok := p.(CredentialProvider)
	if !ok {
		return nil, ErrCredentialsUnsupported
	}
	return cp.RetrieveByCredentials(ctx, credentials)
}

type sessionGuard struct {
	authority *Authority
}

// Guard exposes the authority through the Guard interface.
func (a *Authority) Guard() Guard {
	return sessionGuard{authority: a}
}

func (g sessionGuard) Check(ctx context.Context) bool {
	return g.authority.IsAuthenticated(ctx)
}

func (g sessionGuard) User(ctx context.Context) Authenticatable {
	if identity := g.authority.CurrentUser(ctx); identity != nil {
		return identity
	}
	return nil
}

// SessionProvider resolves users only from the current request session.
// Credential lookups are not supported: credentials are checked by the
// external service during login.
type SessionProvider struct {
	authority *Authority
}

func NewSessionProvider(a *Authority) *SessionProvider {
	return &SessionProvider{authority: a}
}

func (p *SessionProvider) RetrieveByID(ctx context.Context, id string) (Authenticatable, error) {
	identity := p.authority.CurrentUser(ctx)
	if identity == nil || id == "" || identity.ID() != id {
		return nil, ErrUserNotFound
	}
	return identity, nil
}
