package clientsync

import (
	"sync"

	"github.com/dmitrymomot/healthkit/pkg/parse"
)

// State is the client's in-memory notion of the current user. It is filled
// by a successful login or session resume and emptied by logout or a failed
// resume of the same token.
type State struct {
	mu   sync.RWMutex
	user *parse.User
}

func NewState() *State {
	return &State{}
}

// Current returns a copy of the current user, or nil.
func (s *State) Current() *parse.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *State) Set(user *parse.User) {
	var stored *parse.User
	if user != nil {
		u := *user
		stored = &u
	}
	s.mu.Lock()
	s.user = stored
	s.mu.Unlock()
}

func (s *State) Clear() {
	s.Set(nil)
}

// ClearIf empties the state only while it belongs to token.
func (s *State) ClearIf(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil || s.user.SessionToken != token {
		return false
	}
	s.user = nil
	return true
}
