// Package validation holds request validation rules.
package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"postdesk/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ErrMalformedBody is returned when a request body is not a JSON object.
var ErrMalformedBody = errors.New("request body must be a JSON object")

// Post fields in the order they are reported.
const (
	FieldTitle    = "title"
	FieldBrand    = "brand"
	FieldPlatform = "platform"
	FieldDueDate  = "due_date"
	FieldPayment  = "payment"
	FieldStatus   = "status"
)

var postFields = []string{FieldTitle, FieldBrand, FieldPlatform, FieldDueDate, FieldPayment, FieldStatus}

// postRules declares the per-field rules. Go field names are what StructPartial
// selects on; json names are what error messages report.
type postRules struct {
	Title    string `json:"title" validate:"required,max=255"`
	Brand    string `json:"brand" validate:"required,max=255"`
	Platform string `json:"platform" validate:"required,max=255"`
	DueDate  string `json:"due_date" validate:"required,datetime=2006-01-02"`
	Payment  string `json:"payment" validate:"required,decimal,amount"`
	Status   string `json:"status" validate:"required,oneof=pending completed"`
}

var ruleFieldNames = map[string]string{
	FieldTitle:    "Title",
	FieldBrand:    "Brand",
	FieldPlatform: "Platform",
	FieldDueDate:  "DueDate",
	FieldPayment:  "Payment",
	FieldStatus:   "Status",
}

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := validate.RegisterValidation("decimal", validDecimal); err != nil {
		panic(err)
	}
	if err := validate.RegisterValidation("amount", validAmount); err != nil {
		panic(err)
	}
}

// validDecimal accepts any decimal literal, including exponent forms such as
// 1e2 that JSON allows and validator's numeric tag does not.
func validDecimal(fl validator.FieldLevel) bool {
	_, err := decimal.NewFromString(fl.Field().String())
	return err == nil
}

// validAmount accepts non-negative decimals that fit a decimal(10,2) column
// without rounding.
func validAmount(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	if err != nil {
		return false
	}
	if d.IsNegative() || d.GreaterThan(models.MaxMoney) {
		return false
	}
	return d.Equal(d.Round(models.MoneyScale))
}

// PostPayload is a decoded request body keyed by field name. Values are kept
// raw so presence and JSON type can be checked per field.
type PostPayload map[string]json.RawMessage

// DecodePostPayload parses body as a JSON object. An empty body decodes to an
// empty payload.
func DecodePostPayload(body []byte) (PostPayload, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return PostPayload{}, nil
	}
	var p PostPayload
	if err := json.Unmarshal(body, &p); err != nil || p == nil {
		return nil, ErrMalformedBody
	}
	return p, nil
}

// Has reports whether field was sent, including as null.
func (p PostPayload) Has(field string) bool {
	_, ok := p[field]
	return ok
}

// ValidateCreate requires all six business fields.
func ValidateCreate(p PostPayload) (*models.PostInput, error) {
	rules, fieldErrs := p.rules()
	if err := check(rules, postFields, fieldErrs); err != nil {
		return nil, err
	}

	in := &models.PostInput{
		Title:    rules.Title,
		Brand:    rules.Brand,
		Platform: rules.Platform,
		Status:   models.PostStatus(rules.Status),
	}
	var err error
	if in.DueDate, err = models.ParseDate(rules.DueDate); err != nil {
		return nil, err
	}
	if in.Payment, err = models.ParseMoney(rules.Payment); err != nil {
		return nil, err
	}
	return in, nil
}

// ValidateUpdate checks only the fields present in p; each present field must
// still satisfy every rule, so an explicit null or empty string fails.
func ValidateUpdate(p PostPayload) (*models.PostPatch, error) {
	present := make([]string, 0, len(postFields))
	for _, f := range postFields {
		if p.Has(f) {
			present = append(present, f)
		}
	}

	rules, fieldErrs := p.rules()
	if err := check(rules, present, fieldErrs); err != nil {
		return nil, err
	}

	patch := &models.PostPatch{}
	if p.Has(FieldTitle) {
		patch.Title = &rules.Title
	}
	if p.Has(FieldBrand) {
		patch.Brand = &rules.Brand
	}
	if p.Has(FieldPlatform) {
		patch.Platform = &rules.Platform
	}
	if p.Has(FieldDueDate) {
		d, err := models.ParseDate(rules.DueDate)
		if err != nil {
			return nil, err
		}
		patch.DueDate = &d
	}
	if p.Has(FieldPayment) {
		m, err := models.ParseMoney(rules.Payment)
		if err != nil {
			return nil, err
		}
		patch.Payment = &m
	}
	if p.Has(FieldStatus) {
		s := models.PostStatus(rules.Status)
		patch.Status = &s
	}
	return patch, nil
}

// rules converts the raw payload into the rule struct. JSON type mismatches on
// text fields are reported directly since the rule struct cannot hold them.
func (p PostPayload) rules() (postRules, map[string][]string) {
	var r postRules
	fieldErrs := map[string][]string{}

	for _, f := range []struct {
		name string
		dst  *string
	}{
		{FieldTitle, &r.Title},
		{FieldBrand, &r.Brand},
		{FieldPlatform, &r.Platform},
	} {
		raw, ok := p[f.name]
		if !ok {
			continue
		}
		s, isString := jsonString(raw)
		if !isString {
			fieldErrs[f.name] = []string{fmt.Sprintf("The %s field must be a string.", attribute(f.name))}
			continue
		}
		*f.dst = s
	}

	if raw, ok := p[FieldDueDate]; ok {
		s, isString := jsonString(raw)
		if !isString {
			s = string(raw)
		} else if d, err := models.ParseDate(s); err == nil {
			s = d.String()
		}
		r.DueDate = s
	}

	if raw, ok := p[FieldPayment]; ok {
		s, isString := jsonString(raw)
		if !isString {
			s = string(raw)
		}
		r.Payment = s
	}

	if raw, ok := p[FieldStatus]; ok {
		s, isString := jsonString(raw)
		if !isString {
			s = string(raw)
		}
		r.Status = s
	}

	return r, fieldErrs
}

// jsonString returns the trimmed text of a JSON string. A JSON null reads as
// the empty string.
func jsonString(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if string(raw) == "null" {
		return "", true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return strings.TrimSpace(s), true
}

// check runs the rules for fields (json names), skipping fields that already
// failed a type check, and merges everything into one validation error.
func check(r postRules, fields []string, fieldErrs map[string][]string) error {
	partial := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, failed := fieldErrs[f]; !failed {
			partial = append(partial, ruleFieldNames[f])
		}
	}

	if len(partial) > 0 {
		if err := validate.StructPartial(r, partial...); err != nil {
			var vErrs validator.ValidationErrors
			if !errors.As(err, &vErrs) {
				return err
			}
			for _, fe := range vErrs {
				fieldErrs[fe.Field()] = append(fieldErrs[fe.Field()], message(fe))
			}
		}
	}

	if len(fieldErrs) > 0 {
		return models.NewFieldValidationError(fieldErrs, postFields...)
	}
	return nil
}

func message(fe validator.FieldError) string {
	attr := attribute(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", attr)
	case "max":
		return fmt.Sprintf("The %s field must not be greater than %s characters.", attr, fe.Param())
	case "oneof":
		return fmt.Sprintf("The selected %s is invalid.", attr)
	case "datetime":
		return fmt.Sprintf("The %s field must be a valid date.", attr)
	case "decimal":
		return fmt.Sprintf("The %s field must be a number.", attr)
	case "amount":
		return fmt.Sprintf("The %s field must be between 0 and %s with at most %d decimal places.",
			attr, models.MaxMoney.StringFixed(models.MoneyScale), models.MoneyScale)
	default:
		return fmt.Sprintf("The %s field is invalid.", attr)
	}
}

// attribute turns a field name into the words used in messages ("due_date" -> "due date").
func attribute(field string) string {
	return strings.ReplaceAll(field, "_", " ")
}
