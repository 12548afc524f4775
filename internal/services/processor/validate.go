package processor

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/cornjacket/member-legacy-processor/internal/domain/events"
)

// payloadValidator checks struct tags on the decoded payload types. Field
// names in violations come from the json tags so they match what producers
// actually sent.
var payloadValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateEnvelope checks the required envelope fields. It runs before
// dispatch, so a bad envelope never reaches a handler or the database.
func validateEnvelope(env *events.Envelope) error {
	var violations []FieldViolation
	if env.Topic == "" {
		violations = append(violations, FieldViolation{Field: "topic", Rule: "is required"})
	}
	if env.Originator == "" {
		violations = append(violations, FieldViolation{Field: "originator", Rule: "is required"})
	}
	if env.Timestamp.IsZero() {
		violations = append(violations, FieldViolation{Field: "timestamp", Rule: "must be a valid date"})
	}
	if env.MimeType == "" {
		violations = append(violations, FieldViolation{Field: "mime-type", Rule: "is required"})
	}
	if len(env.Payload) == 0 || string(env.Payload) == "null" {
		violations = append(violations, FieldViolation{Field: "payload", Rule: "is required"})
	}
	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}

// decodePayload unmarshals an envelope's payload into dst and validates it.
// Both decode type mismatches and tag violations come back as a
// *ValidationError with field paths relative to the envelope.
func decodePayload(env *events.Envelope, dst any) error {
	if err := env.ParsePayload(dst); err != nil {
		return decodeError(err)
	}
	if err := payloadValidator.Struct(dst); err != nil {
		return translateValidator(err)
	}
	return nil
}

// validateCreateProfile applies the create-only required fields on top of
// the shared profile schema. The handle is deliberately not required here:
// historically events without any handle were accepted and processed.
func validateCreateProfile(p *ProfilePayload) error {
	var violations []FieldViolation
	if p.Email == nil {
		violations = append(violations, FieldViolation{Field: "payload.email", Rule: "is required"})
	}
	if p.FirstName == nil {
		violations = append(violations, FieldViolation{Field: "payload.firstName", Rule: "is required"})
	}
	if p.LastName == nil {
		violations = append(violations, FieldViolation{Field: "payload.lastName", Rule: "is required"})
	}
	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}

func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := "payload"
		if typeErr.Field != "" {
			field = "payload." + typeErr.Field
		}
		return &ValidationError{Violations: []FieldViolation{
			{Field: field, Rule: "must be a " + jsonTypeName(typeErr.Type)},
		}}
	}
	return &ValidationError{Violations: []FieldViolation{
		{Field: "payload", Rule: "is invalid"},
	}}
}

func translateValidator(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate payload: %w", err)
	}

	violations := make([]FieldViolation, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		violations = append(violations, FieldViolation{
			Field: fieldPath(fe.Namespace()),
			Rule:  ruleMessage(fe),
		})
	}
	return &ValidationError{Violations: violations}
}

// fieldPath rewrites a validator namespace ("TraitPayload.traits.data[0].email")
// to an envelope-relative path ("payload.traits.data[0].email").
func fieldPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return "payload." + namespace[i+1:]
	}
	return "payload"
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "uri":
		return "must be a valid uri"
	case "min":
		return "must be larger than or equal to " + fe.Param()
	case "len":
		return "must contain " + fe.Param() + " items"
	default:
		return "is invalid (" + fe.Tag() + ")"
	}
}

func jsonTypeName(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Pointer:
		return jsonTypeName(t.Elem())
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Struct, reflect.Map:
		return "object"
	default:
		return "number"
	}
}
