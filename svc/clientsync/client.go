package clientsync

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/healthkit/pkg/parse"
)

// Authenticator exchanges credentials for an external session.
type Authenticator interface {
	LogIn(ctx context.Context, email, password string) (*parse.User, error)
}

// Client runs the client-side login and logout flows over the same cache and
// state the Gate reads.
type Client struct {
	auth  Authenticator
	cache TokenCache
	state *State
}

func NewClient(auth Authenticator, cache TokenCache, state *State) *Client {
	if state == nil {
		state = NewState()
	}
	return &Client{auth: auth, cache: cache, state: state}
}

// LogIn stores the issued token in the cache and makes the user current.
func (c *Client) LogIn(ctx context.Context, email, password string) (*parse.User, error) {
	user, err := c.auth.LogIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if user == nil || user.SessionToken == "" {
		return nil, ErrIncompleteLogin
	}
	if err := c.cache.Set(ctx, user.SessionToken); err != nil {
		return nil, fmt.Errorf("cache session token: %w", err)
	}
	c.state.Set(user)
	return user, nil
}

// LogOut forgets the token locally. The external session is not revoked.
func (c *Client) LogOut(ctx context.Context) error {
	c.state.Clear()
	if err := c.cache.Delete(ctx); err != nil {
		return fmt.Errorf("clear session token: %w", err)
	}
	return nil
}
