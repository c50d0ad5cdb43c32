// Package validators decodes and validates request input, turning failures
// into CodeValidation errors with per-field details.
package validators

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/w3bsuki/driplo-final/pkg/errors"
)

// MaxBodyBytes caps JSON request bodies.
const MaxBodyBytes = 1 << 20

var validate = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return f.Name
		}
		return name
	})
	return v
}()

// DecodeJSONBody decodes exactly one JSON object into dest, rejecting unknown
// fields and trailing data, then runs struct validation.
func DecodeJSONBody(r *http.Request, dest any) error {
	body := http.MaxBytesReader(nil, r.Body, MaxBodyBytes)
	defer func() {
		_, _ = io.Copy(io.Discard, body)
	}()

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return decodeError(err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return pkgerrors.New(pkgerrors.CodeValidation, "request body must contain a single JSON object")
	}
	return Struct(dest)
}

// Struct validates v using its validate tags.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
	}
	details := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fieldPath(fe)] = describe(fe)
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
}

func decodeError(err error) error {
	var (
		syntaxErr  *json.SyntaxError
		typeErr    *json.UnmarshalTypeError
		maxErr     *http.MaxBytesError
		msg        string
		detailsMap = map[string]any{}
	)
	switch {
	case errors.Is(err, io.EOF):
		msg = "request body is required"
	case errors.As(err, &maxErr):
		msg = fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit)
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		msg = "request body is not valid JSON"
		if syntaxErr != nil {
			detailsMap["offset"] = syntaxErr.Offset
		}
	case errors.As(err, &typeErr):
		msg = "request body has a field of the wrong type"
		detailsMap["field"] = typeErr.Field
		detailsMap["expected"] = typeErr.Type.String()
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		msg = "request body has an unknown field"
		detailsMap["field"] = strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
	default:
		msg = "invalid request body"
	}
	typed := pkgerrors.Wrap(pkgerrors.CodeValidation, err, msg)
	if len(detailsMap) > 0 {
		typed = typed.WithDetails(detailsMap)
	}
	return typed
}

// fieldPath drops the root struct name: "shipping_address.city".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func describe(fe validator.FieldError) string {
	param := fe.Param()
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_without":
		return fmt.Sprintf("is required when %s is absent", snakeCase(param))
	case "email":
		return "must be a valid email"
	case "uuid", "uuid4":
		return "must be a valid UUID"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(param, " ", ", ")
	case "len":
		return strings.TrimSpace(fmt.Sprintf("must be exactly %s %s", param, unit(fe)))
	case "min":
		return strings.TrimSpace(fmt.Sprintf("must be at least %s %s", param, unit(fe)))
	case "max":
		return strings.TrimSpace(fmt.Sprintf("must be at most %s %s", param, unit(fe)))
	}
	return "is invalid"
}

func unit(fe validator.FieldError) string {
	switch fe.Kind() {
	case reflect.String:
		return "characters"
	case reflect.Slice, reflect.Array, reflect.Map:
		return "items"
	}
	return ""
}

// snakeCase turns a Go field name from a cross-field tag into its json form:
// PaymentIntentID becomes payment_intent_id.
func snakeCase(goField string) string {
	var words []string
	start := 0
	for i := 1; i < len(goField); i++ {
		prevLower := goField[i-1] >= 'a' && goField[i-1] <= 'z'
		curUpper := goField[i] >= 'A' && goField[i] <= 'Z'
		nextLower := i+1 < len(goField) && goField[i+1] >= 'a' && goField[i+1] <= 'z'
		if curUpper && (prevLower || nextLower) {
			words = append(words, goField[start:i])
			start = i
		}
	}
	words = append(words, goField[start:])
	return strings.ToLower(strings.Join(words, "_"))
}
