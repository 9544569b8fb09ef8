package session

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"time"

	"github.com/google/uuid"
)

// Session is the server-side record behind the session cookie. Data holds
// values written by the application; after a round trip through a
// serializing store those values come back in their JSON shape, so typed
// reads go through Decode.
type Session struct {
	ID             uuid.UUID      `json:"id"`
	Token          string         `json:"token"`
	UserID         string         `json:"user_id,omitempty"`
	Fingerprint    string         `json:"fingerprint,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
	ExpiresAt      time.Time      `json:"expires_at"`
	LastActivityAt time.Time      `json:"last_activity_at"`
	CreatedAt      time.Time      `json:"created_at"`
}

// NewSession creates a session expiring after ttl.
func NewSession(token, userID, fingerprint string, ttl time.Duration) *Session {
	now := time.Now()
	return &Session{
		ID:             uuid.New(),
		Token:          token,
		UserID:         userID,
		Fingerprint:    fingerprint,
		Data:           make(map[string]any),
		ExpiresAt:      now.Add(ttl),
		LastActivityAt: now,
		CreatedAt:      now,
	}
}

// IsAuthenticated reports whether the session is bound to a user.
func (s *Session) IsAuthenticated() bool {
	return s != nil && s.UserID != ""
}

func (s *Session) IsExpired() bool {
	return s != nil && time.Now().After(s.ExpiresAt)
}

func (s *Session) Get(key string) (any, bool) {
	if s == nil || s.Data == nil {
		return nil, false
	}
	val, ok := s.Data[key]
	return val, ok
}

// GetString returns the value for key when it is a non-empty string.
func (s *Session) GetString(key string) (string, bool) {
	val, ok := s.Get(key)
	if !ok {
		return "", false
	}
	str, ok := val.(string)
	return str, ok && str != ""
}

// Decode stores the value under key into dst, which must be a non-nil
// pointer. Values of the destination type (or pointers to it) are assigned
// directly. Anything else is re-encoded as JSON and decoded into dst.
func (s *Session) Decode(key string, dst any) error {
	val, ok := s.Get(key)
	if !ok || val == nil {
		return fmt.Errorf("%w: %s", ErrValueNotFound, key)
	}

	target := reflect.ValueOf(dst)
	if target.Kind() != reflect.Pointer || target.IsNil() {
		return fmt.Errorf("%w: destination must be a non-nil pointer", ErrInvalidValue)
	}
	elem := target.Elem()

	src := reflect.ValueOf(val)
	if src.Kind() == reflect.Pointer {
		if src.IsNil() {
			return fmt.Errorf("%w: %s", ErrValueNotFound, key)
		}
		if src.Elem().Type().AssignableTo(elem.Type()) {
			elem.Set(src.Elem())
			return nil
		}
	}
	if src.Type().AssignableTo(elem.Type()) {
		elem.Set(src)
		return nil
	}

	raw, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidValue, key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidValue, key, err)
	}
	return nil
}

func (s *Session) Set(key string, value any) {
	if s == nil {
		return
	}
	if s.Data == nil {
		s.Data = make(map[string]any)
	}
	s.Data[key] = value
}

// SetAll merges values into the session data.
func (s *Session) SetAll(values map[string]any) {
	if s == nil || len(values) == 0 {
		return
	}
	if s.Data == nil {
		s.Data = make(map[string]any, len(values))
	}
	maps.Copy(s.Data, values)
}

func (s *Session) Delete(keys ...string) {
	if s == nil || s.Data == nil {
		return
	}
	for _, key := range keys {
		delete(s.Data, key)
	}
}

// Clear drops all data.
func (s *Session) Clear() {
	if s == nil {
		return
	}
	s.Data = make(map[string]any)
}

// Touch records activity at now.
func (s *Session) Touch() {
	if s == nil {
		return
	}
	s.LastActivityAt = time.Now()
}

// ValidateFingerprint compares in constant time. Sessions without a stored
// fingerprint accept any value.
func (s *Session) ValidateFingerprint(fingerprint string) bool {
	if s == nil || s.Fingerprint == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(s.Fingerprint), []byte(fingerprint)) == 1
}

// clone copies the session and its top-level data map.
func (s *Session) clone() *Session {
	c := *s
	if s.Data != nil {
		c.Data = maps.Clone(s.Data)
	}
	return &c
}
