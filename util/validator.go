package util

import (
	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterValidation("category", oneOf("academic", "infrastructure", "staff", "facilities", "other"))
	validate.RegisterValidation("severity", oneOf("low", "medium", "critical"))
	validate.RegisterValidation("status", oneOf("open", "in_progress", "resolved"))
	validate.RegisterValidation("visibility", oneOf("private", "public"))
	validate.RegisterValidation("role", oneOf("student", "admin"))
}

func oneOf(allowed ...string) validator.Func {
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	return func(fl validator.FieldLevel) bool {
		_, ok := set[fl.Field().String()]
		return ok
	}
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

// FieldErrors flattens a validation failure into field -> failed rule.
// Errors that did not come from the validator are returned under "_".
func FieldErrors(err error) map[string]string {
	out := map[string]string{}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		out["_"] = err.Error()
		return out
	}
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		out[fe.Field()] = rule
	}
	return out
}
