package emissions

import (
	"fmt"
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// EPA greenhouse gas equivalency divisors (kg CO2e per unit of the equivalent).
const (
	EPAMilesDrivenFactor      = 0.192
	EPASmartphoneChargeFactor = 0.00822
	EPATreeSeedlingFactor     = 60.0
	EPAHomeDayFactor          = 18.3
)

// MinEquivalencyKg is the smallest mass for which equivalencies are shown;
// below it they round to meaningless fractions.
const MinEquivalencyKg = 1.0

const (
	millionThreshold = 1_000_000
	billionThreshold = 1_000_000_000
)

//nolint:gochecknoglobals // message printers are meant to be shared.
var printer = message.NewPrinter(language.English)

// Equivalent is one relatable comparison for a CO2e mass.
type Equivalent struct {
	Label          string  `json:"label"`
	Value          float64 `json:"value"`
	FormattedValue string  `json:"formatted_value"`
}

// Equivalents is the display block attached to summaries.
type Equivalents struct {
	InputKg     float64      `json:"input_kg"`
	Items       []Equivalent `json:"items"`
	DisplayText string       `json:"display_text"`
	IsEmpty     bool         `json:"is_empty"`
}

// Equivalence converts kg CO2e into miles driven, smartphones charged, tree
// seedlings and home-days of electricity.
func Equivalence(kg float64) Equivalents {
	if math.IsNaN(kg) || math.IsInf(kg, 0) || kg < MinEquivalencyKg {
		return Equivalents{InputKg: kg, IsEmpty: true}
	}

	items := []Equivalent{
		equivalent("miles driven", kg/EPAMilesDrivenFactor),
		equivalent("smartphones charged", kg/EPASmartphoneChargeFactor),
		equivalent("tree seedlings grown for 10 years", kg/EPATreeSeedlingFactor),
		equivalent("days of home electricity", kg/EPAHomeDayFactor),
	}

	return Equivalents{
		InputKg: kg,
		Items:   items,
		DisplayText: fmt.Sprintf("Equivalent to driving ~%s miles or charging ~%s smartphones",
			items[0].FormattedValue, items[1].FormattedValue),
	}
}

func equivalent(label string, value float64) Equivalent {
	return Equivalent{Label: label, Value: value, FormattedValue: FormatLarge(value)}
}

// FormatKg renders a kg value with thousand separators and one decimal place.
func FormatKg(kg float64) string {
	return printer.Sprintf("%.1f kg", kg)
}

// FormatLarge renders counts with separators, switching to "~X.X million"
// and "~X.X billion" for large values.
func FormatLarge(n float64) string {
	switch {
	case n >= billionThreshold:
		return fmt.Sprintf("~%.1f billion", n/billionThreshold)
	case n >= millionThreshold:
		return fmt.Sprintf("~%.1f million", n/millionThreshold)
	default:
		return printer.Sprintf("%d", int64(math.Round(n)))
	}
}
