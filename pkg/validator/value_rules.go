package validator

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

func FutureDate(field string, value time.Time) Rule {
	return Rule{
		Check: func() bool { return value.After(time.Now()) },
		Error: ValidationError{
			Field:             field,
			Message:           "date must be in the future",
			TranslationKey:    "validation.date_future",
			TranslationValues: map[string]any{"field": field},
		},
	}
}

// PositiveAmount validates that a monetary amount is strictly greater than zero.
func PositiveAmount(field string, value decimal.Decimal) Rule {
	return Rule{
		Check: func() bool { return value.IsPositive() },
		Error: ValidationError{
			Field:             field,
			Message:           "amount must be greater than zero",
			TranslationKey:    "validation.amount_positive",
			TranslationValues: map[string]any{"field": field},
		},
	}
}

// MaxDecimalPlaces validates that an amount has no more than places fractional digits.
func MaxDecimalPlaces(field string, value decimal.Decimal, places int32) Rule {
	return Rule{
		Check: func() bool { return value.Equal(value.Truncate(places)) },
		Error: ValidationError{
			Field:             field,
			Message:           fmt.Sprintf("amount must have at most %d decimal places", places),
			TranslationKey:    "validation.amount_precision",
			TranslationValues: map[string]any{"field": field, "places": places},
		},
	}
}
