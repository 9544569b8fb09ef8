// Package validator evaluates small declarative rule lists.
//
//	err := validator.Apply(
//		validator.Required("email", in.Email),
//		validator.ValidEmail("email", in.Email),
//		validator.Required("password", in.Password),
//	)
//	if ve := validator.ExtractValidationErrors(err); ve != nil {
//		return handler.ValidationError(ve.Values())
//	}
//
// Every rule is evaluated, so the returned ValidationErrors lists all failures.
package validator
