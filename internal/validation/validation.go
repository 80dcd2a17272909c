// Package validation содержит проверки входных данных бронирования.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/oceanview/resort/internal/model"
)

// DateLayout задаёт формат дат заезда и выезда.
const DateLayout = "2006-01-02"

var (
	roomNumberRegex = regexp.MustCompile(`^R[0-9]{3}$`)
	phoneRegex      = regexp.MustCompile(`^[0-9]{10}$`)
	unsafeChars     = strings.NewReplacer("<", "", ">", "", `"`, "", "'", "", "\r", "", "\n", "")
	phoneSeparators = strings.NewReplacer(" ", "", "-", "")
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("phone", validatePhone); err != nil {
		panic(fmt.Sprintf("register phone validator: %v", err))
	}
	return v
}

func validatePhone(fl validator.FieldLevel) bool {
	return phoneRegex.MatchString(phoneSeparators.Replace(fl.Field().String()))
}

// FieldError описывает ошибку одного поля.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Errors собирает ошибки проверки.
type Errors []FieldError

func (e Errors) Error() string {
	messages := make([]string, 0, len(e))
	for _, fe := range e {
		messages = append(messages, fe.Error())
	}
	return "validation failed: " + strings.Join(messages, "; ")
}

type guestInput struct {
	Name          string `validate:"required,min=2,max=100"`
	Address       string `validate:"max=500"`
	ContactNumber string `validate:"omitempty,phone"`
	Email         string `validate:"omitempty,email,max=100"`
	NIC           string `validate:"max=20"`
}

// ValidateGuest проверяет данные гостя: имя обязательно, телефон и почта проверяются, если заданы.
func ValidateGuest(g model.Guest) error {
	in := guestInput{
		Name:          strings.TrimSpace(g.Name),
		Address:       g.Address,
		ContactNumber: strings.TrimSpace(g.ContactNumber),
		Email:         strings.TrimSpace(g.Email),
		NIC:           g.NIC,
	}

	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	result := make(Errors, 0, len(verrs))
	for _, fe := range verrs {
		result = append(result, FieldError{Field: fe.Field(), Message: message(fe)})
	}
	return result
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "phone":
		return fmt.Sprintf("%s must contain 10 digits", fe.Field())
	default:
		return fe.Error()
	}
}

// ParseDate разбирает дату в формате YYYY-MM-DD.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return t, nil
}

// IsValidRoomNumber проверяет формат номера комнаты: R и три цифры.
func IsValidRoomNumber(s string) bool {
	return roomNumberRegex.MatchString(s)
}

// Sanitize удаляет пробелы по краям, кавычки, угловые скобки и переводы строк.
func Sanitize(s string) string {
	return unsafeChars.Replace(strings.TrimSpace(s))
}
