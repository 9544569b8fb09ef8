// Package handler provides type-safe HTTP request handling for the web surface.
//
// Handlers are generic functions that receive a bound request struct and return
// a Response:
//
//	type LoginRequest struct {
//		Email    string `form:"email"`
//		Password string `form:"password"`
//	}
//
//	func login(ctx handler.Context, req LoginRequest) handler.Response {
//		if req.Email == "" {
//			return handler.Error(handler.ErrBadRequest)
//		}
//		return handler.Redirect("/dashboard")
//	}
//
//	r.Post("/login", handler.Wrap(login, handler.WithBinders(binder.Form())))
//
// # Responses
//
//	handler.Templ(component)            // render a templ component
//	handler.TemplPartial(partial, full) // partial for DataStar, full page otherwise
//	handler.Redirect("/dashboard")      // 303 See Other
//	handler.RedirectBack("/login")      // same-host referer or fallback
//	handler.Error(err)                  // delegate to the configured ErrorHandler
//
// DataStar requests (Accept: text/event-stream) receive Server-Sent Events, so
// redirects and templates work for both full page loads and in-page updates.
//
// # Errors
//
// HTTPError carries a status code and a translation key. ValidationError maps
// field names to messages. NewErrorHandler renders both and logs every failure
// with the request id.
package handler
