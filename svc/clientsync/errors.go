package clientsync

import "errors"

var (
	ErrNoToken         = errors.New("clientsync: no cached session token")
	ErrStaleToken      = errors.New("clientsync: cached session token is no longer valid")
	ErrNavigationFault = errors.New("clientsync: navigation guard failed")
	ErrInvalidManifest = errors.New("clientsync: invalid route manifest")
	ErrIncompleteLogin = errors.New("clientsync: login returned no session token")
)
