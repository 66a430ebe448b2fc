// Package validation provides request validation for the remitwise API:
// body size limits, custom binding tags, and translation of binding
// failures into field-level messages.
package validation

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/mbd888/remitwise/internal/rates"
)

// MaxRequestSize is the maximum request body size (64KB).
const MaxRequestSize = 64 << 10

// MaxStringLength is the maximum length for free-text fields.
const MaxStringLength = 256

var senderIDRegex = regexp.MustCompile(`^[A-Za-z0-9._:@-]{1,128}$`)

// RequestSizeMiddleware limits request body size
func RequestSizeMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// IsValidSenderID reports whether id is an acceptable opaque sender ID.
func IsValidSenderID(id string) bool {
	return senderIDRegex.MatchString(id)
}

// SanitizeString trims, strips NUL bytes and truncates to maxLen bytes.
func SanitizeString(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\x00", "")
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	return s
}

var registerOnce sync.Once

// RegisterBindings installs the custom tags on gin's validator:
//
//	currency  a supported ISO 4217 code, any case
//	senderid  an opaque sender identifier
//
// Field names in errors follow the json tag. Safe to call more than once.
func RegisterBindings() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(jsonFieldName)
		_ = v.RegisterValidation("currency", func(fl validator.FieldLevel) bool {
			return rates.Supported(fl.Field().String())
		})
		_ = v.RegisterValidation("senderid", func(fl validator.FieldLevel) bool {
			return IsValidSenderID(fl.Field().String())
		})
	})
}

func jsonFieldName(f reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}

// ValidationError is a single field failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	return e[0].Field + ": " + e[0].Message
}

// FromBindError converts a gin binding error into field messages. Errors
// that are not validator failures (malformed JSON, oversized body) become a
// single entry with an empty field.
func FromBindError(err error) ValidationErrors {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		out := make(ValidationErrors, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			out = append(out, ValidationError{Field: fe.Field(), Message: message(fe)})
		}
		return out
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return ValidationErrors{{Message: fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit)}}
	}
	return ValidationErrors{{Message: "malformed request body"}}
}

func message(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "currency":
		return fmt.Sprintf("%s must be a supported currency code", field)
	case "senderid":
		return fmt.Sprintf("%s must be 1-128 characters of letters, digits or ._:@-", field)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must contain at most %s items", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}

// CurrencyParamMiddleware rejects requests whose :from or :to path
// parameters are not supported currencies.
func CurrencyParamMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, name := range []string{"from", "to"} {
			code := c.Param(name)
			if code != "" && !rates.Supported(code) {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
					"error":   "unsupported_currency",
					"message": fmt.Sprintf("currency %s is not supported", code),
				})
				return
			}
		}
		c.Next()
	}
}
