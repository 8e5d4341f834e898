// Package validation sanitizes and bounds inbound mutation payloads.
//
// Bounds and enums are declared as `binding` tags on the request structs and checked by
// gin's go-playground/validator engine, the same one HTTP handlers use through
// ShouldBindJSON. This package trims strings first and turns validator failures into
// *apperror.Error values. Nothing here touches event state.
package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/aura-stage/backend/internal/apperror"
	"github.com/aura-stage/backend/internal/models"
)

// DefaultSurgeCount is used when a test surge names no count.
const DefaultSurgeCount = 20

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,100}$`)

// AllowedEmojis is the reaction palette.
var AllowedEmojis = map[string]struct{}{
	"❤️": {}, "👍": {}, "😂": {}, "😮": {}, "👏": {}, "🔥": {}, "🎉": {}, "💯": {},
}

// Enum aliases shared by the settings patch and the timer requests.
var aliases = map[string]string{
	"emoji_size":      "oneof=small medium large xlarge",
	"animation_speed": "oneof=slow normal fast",
	"spawn_direction": "oneof=up down left right",
	"spawn_position":  "oneof=left center right random",
	"screen_position": "oneof=top-left top-center top-right center bottom-left bottom-center bottom-right",
	"element_size":    "oneof=small medium large",
	"timer_style":     "oneof=digital minimal bold outline",
	"timer_color":     "oneof=white black red green blue yellow orange purple",
	"max_on_screen":   "oneof=10 25 50 100 200",
}

var bounds = map[string]string{
	"min": "at least", "gte": "at least", "max": "at most", "lte": "at most",
	"gt": "greater than", "lt": "less than",
}

var engine = configure()

func configure() *validator.Validate {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		panic("validation: gin binding engine is not go-playground/validator")
	}
	v.RegisterTagNameFunc(jsonName)
	mustRegister(v, "event_slug", func(fl validator.FieldLevel) bool {
		return idPattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "reaction_emoji", func(fl validator.FieldLevel) bool {
		_, ok := AllowedEmojis[fl.Field().String()]
		return ok
	})
	for alias, tags := range aliases {
		v.RegisterAlias(alias, tags)
	}
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(err)
	}
}

func jsonName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}

// Bind decodes a socket payload into v, trims every string in it and runs its binding
// tags. v must be a pointer to a struct.
func Bind(data json.RawMessage, v interface{}) error {
	if err := Decode(data, v); err != nil {
		return err
	}
	Trim(v)
	return Struct(v)
}

// Struct runs the binding tags of v and reports the first failure.
func Struct(v interface{}) error {
	return convert(binding.Validator.ValidateStruct(v), "payload")
}

// Trim removes surrounding whitespace from every string reachable from v.
func Trim(v interface{}) {
	trimValue(reflect.ValueOf(v))
}

func trimValue(v reflect.Value) {
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface:
		if !v.IsNil() {
			trimValue(v.Elem())
		}
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if v.Type().Field(i).IsExported() {
				trimValue(v.Field(i))
			}
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			trimValue(v.Index(i))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(strings.TrimSpace(v.String()))
		}
	}
}

func convert(err error, field string) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperror.Validation(field, "%v", err)
	}
	fe := fieldErrs[0]
	if path := fieldPath(fe); path != "" {
		field = path
	}
	return apperror.Validation(field, "%s", describe(fe))
}

// fieldPath drops the struct name from the namespace: "options[1].text".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ""
}

func describe(fe validator.FieldError) string {
	switch fe.ActualTag() {
	case "required", "required_if":
		return "is required"
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "event_slug":
		return "must match " + idPattern.String()
	case "reaction_emoji":
		return "is not an allowed reaction"
	}
	if bound, ok := bounds[fe.ActualTag()]; ok {
		switch fe.Kind() {
		case reflect.String:
			return fmt.Sprintf("must be %s %s characters", bound, fe.Param())
		case reflect.Slice, reflect.Array, reflect.Map:
			return fmt.Sprintf("must have %s %s entries", bound, fe.Param())
		}
		return fmt.Sprintf("must be %s %s", bound, fe.Param())
	}
	return "is invalid"
}

// EventID checks the external event identifier.
func EventID(id string) (string, error) {
	return id, convert(engine.Var(id, "event_slug"), "eventId")
}

// DisplayID checks a display surface identifier; it follows the event id pattern.
func DisplayID(id string) (string, error) {
	return id, convert(engine.Var(id, "event_slug"), "displayId")
}

// Decode unmarshals a socket payload into v. A missing payload decodes as an empty object.
func Decode(data json.RawMessage, v interface{}) error {
	if len(bytes.TrimSpace(data)) == 0 {
		data = json.RawMessage(`{}`)
	}
	return decodeError(json.Unmarshal(data, v))
}

func decodeError(err error) error {
	if err == nil {
		return nil
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return apperror.Validation(typeErr.Field, "has the wrong type")
	}
	if msg := err.Error(); strings.HasPrefix(msg, "json: unknown field ") {
		return apperror.Validation(strings.Trim(strings.TrimPrefix(msg, "json: unknown field "), `"`), "is not a known field")
	}
	return apperror.Validation("payload", "malformed: %v", err)
}

// JoinRole checks the role named in join-event. Displays join through join-display.
func JoinRole(role models.Role) (models.Role, error) {
	if role == models.RoleDisplay {
		return "", apperror.Validation("role", "displays join with join-display")
	}
	if !role.Valid() {
		return "", apperror.Validation("role", "unknown role %q", role)
	}
	return role, nil
}
