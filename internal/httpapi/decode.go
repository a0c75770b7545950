package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/gofiber/fiber/v2"
	validator "gopkg.in/go-playground/validator.v9"

	"github.com/sal-openlab/datafusion-server/internal/apperr"
)

var (
	validate *validator.Validate
	trans    ut.Translator
)

func init() {
	locale := en.New()
	uni := ut.New(locale, locale)
	trans, _ = uni.GetTranslator("en")

	validate = validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// DecodeHandlerFunc is a fiber.Handler that also receives the decoded
// and validated request body, mirroring the teacher's
// common/net/http/withBody.go DecodeHandlerFunc.
type DecodeHandlerFunc func(c *fiber.Ctx, body any) error

// WithBody decodes c's JSON body into a fresh value of the same type
// as payload, validates it with validator.v9, and invokes next with
// the decoded value. A decode failure short-circuits with a
// json_parsing error and a validation failure with a
// request_validation error, so handlers never see a malformed body.
func WithBody(payload any, next DecodeHandlerFunc) fiber.Handler {
	t := reflect.TypeOf(payload)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	return func(c *fiber.Ctx) error {
		body := reflect.New(t).Interface()

		if err := decodeStrict(c.Body(), body); err != nil {
			return writeError(c, err)
		}

		if err := validate.Struct(body); err != nil {
			return writeError(c, translateValidationErr(err))
		}

		return next(c, body)
	}
}

// decodeStrict decodes raw into dst, rejecting fields dst's type does
// not declare the way the teacher's decoderHandler diffs decoded keys
// against known ones, so a typo'd request field fails fast instead of
// silently being ignored.
func decodeStrict(raw []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return apperr.JSONParsing(fmt.Errorf("decode request body: %w", err))
	}

	return nil
}

// translateValidationErr renders validator.v9's field errors into one
// request_validation error with a human-readable message per failing
// field.
func translateValidationErr(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperr.RequestValidation("%s", err.Error())
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Translate(trans))
	}

	return apperr.RequestValidation("%s", strings.Join(msgs, "; "))
}

// writeError renders err as the server's standard error response
// body, without aborting the fiber request chain.
func writeError(c *fiber.Ctx, err error) error {
	status, body := apperr.ToResponse(err)
	return c.Status(status).JSON(body)
}
