package validation

import (
	"fmt"
	"unicode"
)

// Границы длины пароля. bcrypt не принимает больше 72 байт.
const (
	MinPasswordLength = 8
	MaxPasswordBytes  = 72
)

// ValidatePassword требует заглавную и строчную буквы и цифру.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("пароль должен быть не менее %d символов", MinPasswordLength)
	}
	if len(password) > MaxPasswordBytes {
		return fmt.Errorf("пароль должен быть не длиннее %d байт", MaxPasswordBytes)
	}

	var hasUpper, hasLower, hasNumber bool
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		}
	}

	switch {
	case !hasUpper:
		return fmt.Errorf("пароль должен содержать хотя бы одну заглавную букву")
	case !hasLower:
		return fmt.Errorf("пароль должен содержать хотя бы одну строчную букву")
	case !hasNumber:
		return fmt.Errorf("пароль должен содержать хотя бы одну цифру")
	}
	return nil
}
