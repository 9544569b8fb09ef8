package bridge

import "github.com/dmitrymomot/healthkit/pkg/parse"

// Authenticatable is the contract the web layer expects from a signed-in user.
type Authenticatable interface {
	AuthIdentifierName() string
	AuthIdentifier() string
	AuthPassword() string
	RememberToken() string
	SetRememberToken(token string)
	RememberTokenName() string
}

// Identity is a read-through view of an external user record. Passwords
// live only in the external service, so the password and remember-token
// parts of the contract are permanently empty.
type Identity struct {
	record parse.User
}

var _ Authenticatable = (*Identity)(nil)

// NewIdentity adapts record. It returns nil when the record has no object id.
func NewIdentity(record parse.User) *Identity {
	if record.ObjectID == "" {
		return nil
	}
	record.SessionToken = ""
	return &Identity{record: record}
}

func (i *Identity) ID() string       { return i.record.ObjectID }
func (i *Identity) Email() string    { return i.record.Email }
func (i *Identity) Username() string { return i.record.Username }
func (i *Identity) Role() string     { return i.record.Role }

// Record returns a copy of the underlying user record.
func (i *Identity) Record() parse.User { return i.record }

// HasRole reports whether the identity carries role.
func (i *Identity) HasRole(role string) bool {
	return i != nil && i.record.Role == role
}

func (i *Identity) AuthIdentifierName() string { return "id" }
func (i *Identity) AuthIdentifier() string     { return i.record.ObjectID }
func (i *Identity) AuthPassword() string       { return "" }
func (i *Identity) RememberToken() string      { return "" }
func (i *Identity) SetRememberToken(string)    {}
func (i *Identity) RememberTokenName() string  { return "" }
