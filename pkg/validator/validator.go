package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	ErrSubjectIDLength   = errors.New("subject id must be 11 digits")
	ErrSubjectIDChecksum = errors.New("subject id has invalid control digits")
)

// ValidateStruct validates a struct based on validate tags.
// Supported rules: required, min=N, max=N (string length in runes) and subjectid.
func ValidateStruct(s interface{}) error {
	v := reflect.ValueOf(s)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return errors.New("not a struct")
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("validate")
		if tag == "" {
			continue
		}

		name := jsonName(field)
		for _, rule := range strings.Split(tag, ",") {
			if err := validateField(name, v.Field(i), rule); err != nil {
				return err
			}
		}
	}

	return nil
}

// jsonName reports a field the way API clients see it
func jsonName(field reflect.StructField) string {
	name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return field.Name
	}
	return name
}

// validateField validates a single field based on a rule
func validateField(fieldName string, value reflect.Value, rule string) error {
	rule, arg, _ := strings.Cut(rule, "=")
	switch rule {
	case "required":
		if isZero(value) {
			return fmt.Errorf("%s is required", fieldName)
		}
	case "subjectid":
		if value.Kind() == reflect.String && value.String() != "" {
			if err := ValidateSubjectID(value.String()); err != nil {
				return fmt.Errorf("%s: %w", fieldName, err)
			}
		}
	case "min", "max":
		limit, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("invalid %s rule on %s", rule, fieldName)
		}
		if value.Kind() != reflect.String {
			return nil
		}
		n := utf8.RuneCountInString(value.String())
		if rule == "min" && n < limit {
			return fmt.Errorf("%s must be at least %d characters", fieldName, limit)
		}
		if rule == "max" && n > limit {
			return fmt.Errorf("%s must be at most %d characters", fieldName, limit)
		}
	}
	return nil
}

// isZero checks if a value is zero/empty
func isZero(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.String:
		return strings.TrimSpace(v.String()) == ""
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map:
		return v.IsNil()
	default:
		return v.IsZero()
	}
}

var (
	controlWeights1 = []int{3, 7, 6, 1, 8, 9, 4, 5, 2}
	controlWeights2 = []int{5, 4, 3, 2, 7, 6, 5, 4, 3, 2}
)

// ValidateSubjectID checks the length and both modulus 11 control digits of a
// national identity number
func ValidateSubjectID(id string) error {
	if len(id) != 11 {
		return ErrSubjectIDLength
	}
	digits := make([]int, 11)
	for i, r := range id {
		if r < '0' || r > '9' {
			return ErrSubjectIDLength
		}
		digits[i] = int(r - '0')
	}

	if controlDigit(digits[:9], controlWeights1) != digits[9] {
		return ErrSubjectIDChecksum
	}
	if controlDigit(digits[:10], controlWeights2) != digits[10] {
		return ErrSubjectIDChecksum
	}
	return nil
}

// controlDigit returns -1 when no valid control digit exists
func controlDigit(digits, weights []int) int {
	sum := 0
	for i, d := range digits {
		sum += d * weights[i]
	}
	switch k := 11 - sum%11; k {
	case 11:
		return 0
	case 10:
		return -1
	default:
		return k
	}
}

// SanitizeString sanitizes a string by removing potentially dangerous characters
func SanitizeString(s string) string {
	// Remove null bytes
	s = strings.ReplaceAll(s, "\x00", "")
	// Trim whitespace
	s = strings.TrimSpace(s)
	return s
}
