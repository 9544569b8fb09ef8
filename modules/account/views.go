package account

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"github.com/dmitrymomot/healthkit/handler"
	"github.com/dmitrymomot/healthkit/svc/bridge"
)

// LoginPageParams contains data for rendering the login page.
type LoginPageParams struct {
	Action      string
	Email       string
	RedirectURL string
	Errors      handler.ValidationError
	CSRFField   string
	CSRFToken   string
}

// DashboardPageParams contains data for rendering the signed-in landing page.
type DashboardPageParams struct {
	User       *bridge.Identity
	LogoutPath string
	CSRFField  string
	CSRFToken  string
}

type Views struct {
	LoginPage     func(LoginPageParams) templ.Component
	DashboardPage func(DashboardPageParams) templ.Component
}

// DefaultViews renders minimal unstyled HTML pages.
func DefaultViews() Views {
	return Views{
		LoginPage:     defaultLoginPage,
		DashboardPage: defaultDashboardPage,
	}
}

func defaultLoginPage(p LoginPageParams) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		e := templ.EscapeString[string]
		_, err := fmt.Fprintf(w, `<!doctype html><html><head><title>Sign in</title></head><body>
<form id="login-form" method="post" action="%s">
<input type="hidden" name="%s" value="%s">
<input type="hidden" name="redirect_url" value="%s">
<label>Email <input type="email" name="email" value="%s" autocomplete="username" required></label>
%s
<label>Password <input type="password" name="password" autocomplete="current-password" required></label>
%s
<button type="submit">Sign in</button>
</form></body></html>`,
			e(p.Action), e(p.CSRFField), e(p.CSRFToken), e(p.RedirectURL), e(p.Email),
			fieldError(p.Errors, "email"), fieldError(p.Errors, "password"))
		return err
	})
}

func fieldError(errs handler.ValidationError, field string) string {
	if !errs.Has(field) {
		return ""
	}
	return `<p class="error" data-field="` + field + `">` + templ.EscapeString(errs.Get(field)) + `</p>`
}

func defaultDashboardPage(p DashboardPageParams) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		e := templ.EscapeString[string]
		_, err := fmt.Fprintf(w, `<!doctype html><html><head><title>Dashboard</title></head><body>
<h1>Dashboard</h1>
<p>Signed in as <strong>%s</strong> (%s)</p>
<form method="post" action="%s">
<input type="hidden" name="%s" value="%s">
<button type="submit">Log out</button>
</form></body></html>`,
			e(p.User.Email()), e(p.User.Role()), e(p.LogoutPath), e(p.CSRFField), e(p.CSRFToken))
		return err
	})
}
