// Package bridge connects the cookie session of the web application to the
// bearer session token issued by Parse Server.
//
// After a successful external login, Establish writes the token and the user
// record to the session in one store write. On later requests the Authority
// rebuilds the Identity from session data alone; Parse is not consulted.
//
//	authority := bridge.New(sessions, bridge.WithLogger(log))
//	r.Use(sessions.Middleware, authority.Middleware)
//	r.With(authority.RequireAuth("/login")).Get("/dashboard", dashboard)
//
// A session counts as authenticated only when both the token and a user
// record with an object id are present.
package bridge
