// Package fingerprint derives a short hash describing the browser behind a
// request. Sessions store it at creation and reject requests whose
// fingerprint differs, which makes a stolen session cookie harder to replay
// from another device.
//
//	fp := fingerprint.New(fingerprint.WithClientIP(clientip.FromRequest))
//	sessions := session.New(session.WithFingerprint(fp), ...)
//
// The default components are the User-Agent and Accept-Language headers,
// which stay stable across a browser's page loads and form posts.
package fingerprint
