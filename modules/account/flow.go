package account

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/healthkit/handler"
	"github.com/dmitrymomot/healthkit/pkg/logger"
	"github.com/dmitrymomot/healthkit/pkg/parse"
	"github.com/dmitrymomot/healthkit/pkg/validator"
	"github.com/dmitrymomot/healthkit/svc/bridge"
)

// Authenticator exchanges credentials with the external identity service.
type Authenticator interface {
	LogIn(ctx context.Context, email, password string) (*parse.User, error)
}

// Result is the terminal state of one login attempt.
type Result string

const (
	ResultEstablished        Result = "established"
	ResultInvalidInput       Result = "invalid_input"
	ResultInvalidCredentials Result = "invalid_credentials"
	ResultAccessDenied       Result = "access_denied"
	ResultFailed             Result = "failed"
	ResultThrottled          Result = "throttled"
)

// Outcome describes how a login attempt ended.
type Outcome struct {
	Result Result
	// Err is the underlying cause for every result except established.
	Err error
	// Errors holds the field errors shown on the login form.
	Errors handler.ValidationError
	// Redirect is the destination after an established login.
	Redirect string
	Identity *bridge.Identity
}

func (o Outcome) Established() bool {
	return o.Result == ResultEstablished
}

// Flow runs the login sequence: validate input, exchange credentials,
// check the role, establish the session and verify it. It makes a single
// pass with no retries.
type Flow struct {
	cfg       Config
	client    Authenticator
	authority *bridge.Authority
	log       *slog.Logger
}

func NewFlow(cfg Config, client Authenticator, authority *bridge.Authority, log *slog.Logger) *Flow {
	if log == nil {
		log = logger.Discard()
	}
	return &Flow{cfg: cfg, client: client, authority: authority, log: log}
}

func (f *Flow) Run(ctx context.Context, w http.ResponseWriter, r *http.Request, req LoginRequest) Outcome {
	log := f.log.With(logger.Component("account"), logger.Event("login"))

	if err := validateLogin(req); err != nil {
		errs := handler.ValidationError(validator.ExtractValidationErrors(err).Values())
		return Outcome{Result: ResultInvalidInput, Err: err, Errors: errs}
	}

	user, err := f.client.LogIn(ctx, req.Email, req.Password)
	if err != nil {
		msg := MsgInvalidCredentials
		var perr *parse.Error
		if errors.As(err, &perr) && perr.Message != "" {
			msg = perr.Message
		} else if !errors.Is(err, parse.ErrInvalidCredentials) {
			log.WarnContext(ctx, "credential exchange failed", logger.Error(err))
		}
		return Outcome{
			Result: ResultInvalidCredentials,
			Err:    errors.Join(bridge.ErrInvalidCredentials, err),
			Errors: handler.FieldError("email", msg),
		}
	}

	identity := bridge.NewIdentity(*user)
	if identity == nil || user.SessionToken == "" {
		log.ErrorContext(ctx, "identity service returned an incomplete user record")
		return Outcome{
			Result: ResultFailed,
			Err:    bridge.ErrSessionInconsistent,
			Errors: handler.FieldError("email", MsgAuthFailed),
		}
	}
	if !identity.HasRole(f.cfg.RequiredRole) {
		log.InfoContext(ctx, "login denied by role",
			logger.UserID(identity.ID()),
			logger.Role(identity.Role()),
		)
		return Outcome{
			Result: ResultAccessDenied,
			Err:    bridge.ErrAccessDenied,
			Errors: handler.FieldError("email", MsgAccessDenied),
		}
	}

	sess, err := f.authority.Establish(ctx, w, r, user.SessionToken, *user)
	if err == nil {
		err = f.authority.Verify(ctx, sess)
	}
	if err != nil {
		log.ErrorContext(ctx, "session establishment failed", logger.UserID(identity.ID()), logger.Error(err))
		cleanup := f.authority.Invalidate(ctx, w, r)
		if sess != nil {
			cleanup = errors.Join(cleanup, f.authority.Discard(ctx, w, sess))
		}
		if cleanup != nil {
			log.ErrorContext(ctx, "cleanup after failed login", logger.Error(cleanup))
		}
		return Outcome{
			Result: ResultFailed,
			Err:    err,
			Errors: handler.FieldError("email", MsgAuthFailed),
		}
	}

	log.InfoContext(ctx, "login established", logger.UserID(identity.ID()), logger.SessionID(sess.ID))
	return Outcome{
		Result:   ResultEstablished,
		Redirect: handler.SafeRedirectPath(req.RedirectURL, f.cfg.LandingPath),
		Identity: identity,
	}
}

func validateLogin(req LoginRequest) error {
	return validator.Apply(
		validator.Required("email", req.Email),
		validator.MaxLen("email", req.Email, 254),
		validator.ValidEmail("email", req.Email),
		validator.Required("password", req.Password),
		validator.MaxLen("password", req.Password, 1024),
	)
}
