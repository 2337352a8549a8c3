package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"poolconnect/internal/expr"
	"poolconnect/internal/models"

	"github.com/go-playground/validator/v10"
)

// ValidationError rejects a definition at authoring time.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)
	return v
}

// ValidateDefinition checks a definition as authored. It does not touch the store.
func ValidateDefinition(d models.TimerDefinition) error {
	if strings.TrimSpace(d.Name) == "" {
		return invalid("name", "must not be empty")
	}
	if len(d.Actions) == 0 {
		return invalid("actions", "at least one action is required")
	}
	if err := validate.Struct(d); err != nil {
		return translate(err)
	}
	for i, a := range d.Actions {
		if err := validateAction(a); err != nil {
			err.Field = fmt.Sprintf("actions[%d].%s", i, err.Field)
			return err
		}
	}
	return nil
}

func validateAction(a models.Action) *ValidationError {
	payloads := []struct {
		kind    models.ActionKind
		present bool
	}{
		{models.ActionRelay, a.Relay != nil},
		{models.ActionWait, a.Wait != nil},
		{models.ActionMeasureTemperature, a.Measure != nil},
		{models.ActionAutoDuration, a.AutoDuration != nil},
		{models.ActionBuzzer, a.Buzzer != nil},
		{models.ActionLed, a.Led != nil},
	}
	for _, p := range payloads {
		if p.kind == a.Kind && !p.present {
			return invalid(payloadField(p.kind), "required for %s action", p.kind)
		}
		if p.kind != a.Kind && p.present {
			return invalid(payloadField(p.kind), "not allowed for %s action", a.Kind)
		}
	}
	if a.Kind == models.ActionAutoDuration {
		eq := a.AutoDuration.Equation
		if eq.UseCustom && strings.TrimSpace(eq.Expression) == "" {
			return invalid("autoDuration.equation.expression", "must not be empty when useCustom is set")
		}
		if err := expr.Validate(eq.Source()); err != nil {
			return invalid("autoDuration.equation.expression", "%v", err)
		}
	}
	return nil
}

func payloadField(k models.ActionKind) string {
	switch k {
	case models.ActionMeasureTemperature:
		return "measure"
	case models.ActionAutoDuration:
		return "autoDuration"
	default:
		return string(k)
	}
}

func translate(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return invalid(field, "is required")
	case "oneof":
		return invalid(field, "must be one of [%s]", fe.Param())
	case "min":
		return invalid(field, "must be at least %s", fe.Param())
	case "max":
		return invalid(field, "must be at most %s", fe.Param())
	default:
		return invalid(field, "failed %s check", fe.Tag())
	}
}

func jsonFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}
