// Package clientip resolves the address of the client that sent a request,
// looking through the forwarding headers set by reverse proxies.
//
// A Resolver checks its headers in order and falls back to the TCP peer
// address. Only list headers that your proxies overwrite, since clients can
// send any of them:
//
//	ips := clientip.New("X-Forwarded-For")
//	r.Use(ips.Middleware)
//
//	ip := clientip.FromContext(ctx)
//
// GetIP uses the default header list (CF-Connecting-IP, X-Forwarded-For,
// X-Real-IP). An empty string means no valid address was found.
package clientip
