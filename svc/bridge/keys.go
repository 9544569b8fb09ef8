package bridge

import (
	"github.com/dmitrymomot/healthkit/pkg/parse"
	"github.com/dmitrymomot/healthkit/pkg/session"
)

// Session data keys holding the bridged identity.
const (
	KeySessionToken = "sessionToken"
	KeyUser         = "user"
)

// resolve extracts the external token and identity from sess. Both keys must
// be present and usable, otherwise nothing is returned.
func resolve(sess *session.Session) (string, *Identity) {
	token, ok := sess.GetString(KeySessionToken)
	if !ok {
		return "", nil
	}
	var user parse.User
	if err := sess.Decode(KeyUser, &user); err != nil {
		return "", nil
	}
	identity := NewIdentity(user)
	if identity == nil {
		return "", nil
	}
	return token, identity
}
