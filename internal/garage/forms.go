package garage

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"mygarage/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ErrValidation is returned when a form cannot be turned into a record.
// Nothing is mutated or persisted when it is returned.
var ErrValidation = errors.New("validation failed")

// Defaults applied to blank form fields.
const (
	DefaultCurrency   = "TL"
	DefaultConditions = models.ConditionsDry
)

// Currencies offered by the shell. Any other code is still accepted.
var Currencies = []string{"TL", "USD", "EUR"}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// VehicleForm holds the raw "add vehicle" fields.
type VehicleForm struct {
	Brand      string
	Model      string
	Generation string
	Year       string
	Color      string
	Kilometer  string
	Power      string
	Torque     string
}

// OdometerForm holds the raw odometer update field.
type OdometerForm struct {
	Kilometer string
}

// ExpenseForm holds the raw "add expense" fields.
type ExpenseForm struct {
	Category    string
	Amount      string
	Currency    string
	Description string
	Date        string
}

// DreamItemForm holds the raw "add to wishlist" fields.
type DreamItemForm struct {
	Category      string
	Description   string
	EstimatedCost string
	Currency      string
	PlannedDate   string
}

// TrackSessionForm holds the raw "record session" fields.
type TrackSessionForm struct {
	TrackName  string
	LapTime    string
	Date       string
	Conditions string
	Tires      string
}

type vehicleInput struct {
	Brand     string `validate:"required"`
	Model     string `validate:"required"`
	Kilometer int    `validate:"gte=0"`
	Power     int    `validate:"gte=0"`
	Torque    int    `validate:"gte=0"`
}

type expenseInput struct {
	Category models.ExpenseCategory `validate:"required"`
	Amount   decimal.Decimal        `validate:"gte=0"`
	Currency string                 `validate:"required"`
}

type dreamInput struct {
	Category      models.DreamCategory `validate:"required"`
	Description   string               `validate:"required"`
	EstimatedCost decimal.Decimal      `validate:"gte=0"`
	Currency      string               `validate:"required"`
}

type trackInput struct {
	TrackName string `validate:"required"`
	LapTime   string `validate:"required"`
}

func (f VehicleForm) parse() (*models.Vehicle, error) {
	km, err := optionalInt("kilometer", f.Kilometer)
	if err != nil {
		return nil, err
	}
	hp, err := optionalInt("power", f.Power)
	if err != nil {
		return nil, err
	}
	nm, err := optionalInt("torque", f.Torque)
	if err != nil {
		return nil, err
	}
	in := vehicleInput{Brand: f.Brand, Model: f.Model, Kilometer: km, Power: hp, Torque: nm}
	if err := check(in); err != nil {
		return nil, err
	}
	return models.NewVehicle(f.Brand, f.Model, f.Generation, f.Year, f.Color, km, hp, nm), nil
}

func (f OdometerForm) parse() (int, error) {
	km, err := strconv.Atoi(f.Kilometer)
	if err != nil {
		return 0, invalid("kilometer", "must be a whole number")
	}
	if km < 0 {
		return 0, invalid("kilometer", "must not be negative")
	}
	return km, nil
}

func (f ExpenseForm) parse(today models.Date) (models.Expense, error) {
	if f.Amount == "" {
		return models.Expense{}, invalid("amount", "is required")
	}
	amount, err := parseDecimal("amount", f.Amount)
	if err != nil {
		return models.Expense{}, err
	}
	category := models.ExpenseFuel
	if f.Category != "" {
		if category, err = models.ParseExpenseCategory(f.Category); err != nil {
			return models.Expense{}, fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}
	date, err := optionalDate("date", f.Date, today)
	if err != nil {
		return models.Expense{}, err
	}
	in := expenseInput{Category: category, Amount: amount, Currency: orDefault(f.Currency, DefaultCurrency)}
	if err := check(in); err != nil {
		return models.Expense{}, err
	}
	return models.Expense{
		Category:    in.Category,
		Amount:      in.Amount,
		Currency:    in.Currency,
		Description: f.Description,
		Date:        date,
	}, nil
}

func (f DreamItemForm) parse(today models.Date) (models.DreamItem, error) {
	cost := decimal.Zero
	var err error
	if f.EstimatedCost != "" {
		if cost, err = parseDecimal("estimated cost", f.EstimatedCost); err != nil {
			return models.DreamItem{}, err
		}
	}
	category := models.DreamWheels
	if f.Category != "" {
		if category, err = models.ParseDreamCategory(f.Category); err != nil {
			return models.DreamItem{}, fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}
	planned, err := optionalDate("planned date", f.PlannedDate, today.AddMonths(1))
	if err != nil {
		return models.DreamItem{}, err
	}
	in := dreamInput{
		Category:      category,
		Description:   f.Description,
		EstimatedCost: cost,
		Currency:      orDefault(f.Currency, DefaultCurrency),
	}
	if err := check(in); err != nil {
		return models.DreamItem{}, err
	}
	return models.DreamItem{
		Category:      in.Category,
		Description:   in.Description,
		EstimatedCost: in.EstimatedCost,
		Currency:      in.Currency,
		PlannedDate:   planned,
	}, nil
}

func (f TrackSessionForm) parse(today models.Date) (models.TrackSession, error) {
	if err := check(trackInput{TrackName: f.TrackName, LapTime: f.LapTime}); err != nil {
		return models.TrackSession{}, err
	}
	date, err := optionalDate("date", f.Date, today)
	if err != nil {
		return models.TrackSession{}, err
	}
	return models.TrackSession{
		TrackName:  f.TrackName,
		LapTime:    f.LapTime,
		Date:       date,
		Conditions: orDefault(f.Conditions, DefaultConditions),
		Tires:      f.Tires,
	}, nil
}

func check(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return invalid(strings.ToLower(fe.Field()), describeTag(fe.Tag()))
	}
	return fmt.Errorf("%w: %v", ErrValidation, err)
}

func describeTag(tag string) string {
	switch tag {
	case "required":
		return "is required"
	case "gte":
		return "must not be negative"
	default:
		return "is invalid (" + tag + ")"
	}
}

func invalid(field, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrValidation, field, reason)
}

func optionalInt(field, s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, invalid(field, "must be a whole number")
	}
	return n, nil
}

// parseDecimal accepts both dot and comma decimal separators.
func parseDecimal(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
	if err != nil {
		return decimal.Zero, invalid(field, "must be a number")
	}
	return d, nil
}

func optionalDate(field, s string, fallback models.Date) (models.Date, error) {
	if s == "" {
		return fallback, nil
	}
	d, err := models.ParseDate(s)
	if err != nil {
		return models.Date{}, invalid(field, "must be a date like "+models.DateLayout)
	}
	return d, nil
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func today(now func() time.Time) models.Date {
	return models.DateOf(now())
}
