package utils

import (
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/garyjia/approval-workflow/internal/domain/entity"
)

// MaxReimburseAmount caps a single expense claim
const MaxReimburseAmount = 100000

var controlChars = regexp.MustCompile(`[\x00-\x1f\x7f]`)

// RegisterValidations adds the request rules used by the HTTP binding tags
// (notblank, leave_type, expense_type, amount) and reports fields by their json names
func RegisterValidations(v *validator.Validate) error {
	v.RegisterTagNameFunc(jsonFieldName)

	rules := map[string]validator.Func{
		"notblank": func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		},
		"leave_type": func(fl validator.FieldLevel) bool {
			return entity.IsValidLeaveType(int(fl.Field().Int()))
		},
		"expense_type": func(fl validator.FieldLevel) bool {
			return entity.IsValidExpenseType(int(fl.Field().Int()))
		},
		"amount": func(fl validator.FieldLevel) bool {
			return ValidateAmount(fl.Field().Float()) == nil
		},
	}

	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register %s validation: %w", tag, err)
		}
	}
	return nil
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}

// NewValidator returns a validator with the request rules registered
func NewValidator() *validator.Validate {
	v := validator.New()
	if err := RegisterValidations(v); err != nil {
		panic(err)
	}
	return v
}

// ValidateAmount validates a reimbursement amount: positive, at most two decimals, within the cap
func ValidateAmount(amount float64) error {
	if amount <= 0 {
		return fmt.Errorf("amount must be positive: %.2f", amount)
	}

	if amount > MaxReimburseAmount {
		return fmt.Errorf("amount exceeds maximum limit: %.2f", amount)
	}

	cents := amount * 100
	if math.Abs(cents-math.Round(cents)) > 1e-6 {
		return fmt.Errorf("amount has more than two decimals: %v", amount)
	}

	return nil
}

// SanitizeString removes control characters and surrounding whitespace
func SanitizeString(s string) string {
	return strings.TrimSpace(controlChars.ReplaceAllString(s, ""))
}
