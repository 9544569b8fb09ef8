// Package clientsync keeps a client's cached Parse session token in step with
// the server-side session state and guards client route transitions.
//
// Every navigation goes through Gate.BeforeNavigate. When a token is cached
// the gate resumes it in the background; a failed resume removes the token
// from the cache, but only if it was not replaced in the meantime. The gate
// then decides against the route table:
//
//	routes, _ := clientsync.DefaultRoutes()
//	cache, _ := clientsync.NewFileCache(path)
//	gate := clientsync.NewGate(cache, parseClient, routes)
//
//	d := gate.BeforeNavigate(ctx, "/meal/42")
//	if !d.Proceed() {
//		navigate(d.Redirect)
//	}
//
// Routes requiring auth send anonymous users to the entry route; guest-only
// routes send signed-in users to the landing route. Any failure inside the
// gate redirects to the entry route.
//
// By default the decision waits up to ResumeTimeout for the resume to
// finish. WithAwaitResume(false) decides immediately on the state at hand.
package clientsync
