// AngelaMos | 2026
// rules.go

package intake

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

const maxNameLength = 100

var namePattern = regexp.MustCompile(`^[а-яА-ЯёЁa-zA-Z\s\-']+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	//nolint:errcheck // tag name is a constant and the func is non-nil
	_ = v.RegisterValidation("note_name", func(fl validator.FieldLevel) bool {
		return namePattern.MatchString(fl.Field().String())
	})
	return v
}

// ValidationError carries the message shown to the person typing.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err should be shown to the user verbatim.
func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

type nameInput struct {
	Name string `validate:"required,max=100,note_name"`
}

// ValidateName trims s and checks it against the name rules.
func ValidateName(s string) (string, error) {
	name := strings.TrimSpace(s)

	err := validate.Struct(nameInput{Name: name})
	if err == nil {
		return name, nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "", err
	}

	switch verrs[0].Tag() {
	case "required":
		return "", invalid("Имя не может быть пустым")
	case "max":
		return "", invalid("Имя слишком длинное (максимум %d символов)", maxNameLength)
	default:
		return "", invalid("Имя содержит недопустимые символы")
	}
}

// ParseNames splits a message into one name per non-blank line and
// validates each of them.
func ParseNames(text string) ([]string, error) {
	var names []string

	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		name, err := ValidateName(line)
		if err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				return nil, invalid("Ошибка в имени '%s': %s", strings.TrimSpace(line), verr.Message)
			}
			return nil, err
		}
		names = append(names, name)
	}

	if len(names) == 0 {
		return nil, invalid("Список имен не может быть пустым")
	}

	return names, nil
}

// ParseAmount accepts a decimal comma and enforces min <= amount <= max.
// A non-positive max disables the upper bound.
func ParseAmount(text string, limits Limits) (float64, error) {
	raw := strings.ReplaceAll(strings.TrimSpace(text), ",", ".")

	amount, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, invalid("Пожалуйста, введите корректное число.")
	}

	if err := validate.Var(amount, fmt.Sprintf("gte=%v", limits.MinAmount)); err != nil {
		return 0, invalid("Минимальная сумма пожертвования: %.2f руб.", limits.MinAmount)
	}
	if limits.MaxAmount > 0 {
		if err := validate.Var(amount, fmt.Sprintf("lte=%v", limits.MaxAmount)); err != nil {
			return 0, invalid("Сумма слишком большая")
		}
	}

	return amount, nil
}

func isAny(text string, words ...string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	for _, w := range words {
		if t == w {
			return true
		}
	}
	return false
}

// IsAdvance reports whether text ends the current names list.
func IsAdvance(text string) bool {
	return isAny(text, "готово", "далее", "пропустить")
}

// IsConfirm reports whether text confirms the summary.
func IsConfirm(text string) bool {
	return isAny(text, "подтвердить", "да", "создать", "готово")
}
