package handler

import (
	"encoding/json"
	"errors"
	"io"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.Split(field.Tag.Get("json"), ",")[0]
		if name == "-" {
			return ""
		}

		return name
	})

	return v
}

// validateStruct returns one message per offending json field.
func validateStruct(v any) (map[string]string, bool) {
	err := validate.Struct(v)
	if err == nil {
		return nil, false
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, false
	}

	out := make(map[string]string, len(verrs))
	for _, verr := range verrs {
		field := verr.Field()
		if field == "" {
			continue
		}
		if _, exists := out[field]; exists {
			continue
		}

		out[field] = fieldMessage(verr)
	}

	if len(out) == 0 {
		return nil, false
	}

	return out, true
}

func fieldMessage(verr validator.FieldError) string {
	switch verr.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + verr.Param() + " characters"
	case "min":
		return "must be at least " + verr.Param() + " characters"
	case "url", "http_url":
		return "must be an absolute http(s) url"
	case "base64":
		return "must be base64 encoded"
	default:
		return "is invalid"
	}
}

func writeFieldErrors(c *gin.Context, status int, errs map[string]string) {
	c.AbortWithStatusJSON(status, gin.H{"errors": errs})
}

// bindJSONStrict rejects unknown fields and trailing data.
func bindJSONStrict(c *gin.Context, dst any) error {
	if c.Request.Body == nil {
		return io.EOF
	}

	dec := json.NewDecoder(c.Request.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return err
	}

	var extra any
	if err := dec.Decode(&extra); err == nil {
		return errors.New("extra data after JSON object")
	} else if !errors.Is(err, io.EOF) {
		return err
	}

	return nil
}
