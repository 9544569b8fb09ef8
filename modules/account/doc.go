// Package account provides the administrator login and logout pages.
//
// A login submission is exchanged with Parse Server for a session token. Only
// users carrying the configured role (admin by default) get a local session;
// everyone else sees an error on the login form and no session is written.
//
//	svc := account.NewService(cfg, parseClient, authority, cookies, protector, account.DefaultViews(),
//		account.WithLogger(log),
//		account.WithMetrics(account.NewMetrics(reg)),
//	)
//	r.Group(svc.Routes)
//
// Failed attempts redirect back to the login page with field errors carried
// in an encrypted flash cookie.
package account
