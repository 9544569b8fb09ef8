package parse

import "time"

// User is a record of the Parse _User class.
type User struct {
	ObjectID      string    `json:"objectId"`
	Username      string    `json:"username,omitempty"`
	Email         string    `json:"email,omitempty"`
	Role          string    `json:"role,omitempty"`
	SessionToken  string    `json:"sessionToken,omitempty"`
	EmailVerified bool      `json:"emailVerified,omitempty"`
	CreatedAt     time.Time `json:"createdAt,omitzero"`
	UpdatedAt     time.Time `json:"updatedAt,omitzero"`
}

// WithoutToken returns a copy of u with the session token removed.
func (u User) WithoutToken() User {
	u.SessionToken = ""
	return u
}
