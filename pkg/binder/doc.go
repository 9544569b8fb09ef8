// Package binder fills request structs from form bodies and query strings.
//
// Each binder only reads its own struct tag, so several binders can be applied
// to the same struct in sequence:
//
//	type LoginRequest struct {
//		Email       string `form:"email"`
//		Password    string `form:"password"`
//		RedirectURL string `form:"redirect_url" query:"redirect"`
//	}
//
// Fields without the binder's tag are left untouched. A binder that has
// nothing to read for the request returns ErrBinderNotApplicable, which
// handler.Wrap skips silently.
package binder
