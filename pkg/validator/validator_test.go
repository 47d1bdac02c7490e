package validator

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateStruct(t *testing.T) {
	type TestStruct struct {
		SubjectID  string `json:"subject_id" validate:"required,subjectid"`
		ReasonCode string `json:"reason_code" validate:"required,max=16"`
		Comment    string `json:"comment" validate:"max=10"`
	}

	tests := []struct {
		name     string
		input    TestStruct
		expected bool
		field    string
	}{
		{
			name:     "valid struct",
			input:    TestStruct{SubjectID: "01010010183", ReasonCode: "WRONG_PERIOD"},
			expected: true,
		},
		{
			name:     "missing required field",
			input:    TestStruct{SubjectID: "01010010183", ReasonCode: "   "},
			expected: false,
			field:    "reason_code",
		},
		{
			name:     "invalid subject id",
			input:    TestStruct{SubjectID: "01010010184", ReasonCode: "X"},
			expected: false,
			field:    "subject_id",
		},
		{
			name:     "too long",
			input:    TestStruct{SubjectID: "01010010183", ReasonCode: "X", Comment: "ørkenrotteløs"},
			expected: false,
			field:    "comment",
		},
		{
			name:     "multibyte within limit",
			input:    TestStruct{SubjectID: "01010010183", ReasonCode: "X", Comment: "æøåæøåæøå"},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.input)
			isValid := err == nil

			if isValid != tt.expected {
				t.Fatalf("ValidateStruct() = %v, expected %v, error: %v", isValid, tt.expected, err)
			}
			if err != nil && !strings.HasPrefix(err.Error(), tt.field) {
				t.Errorf("Expected error to name %q, got %v", tt.field, err)
			}
		})
	}
}

func TestValidateStruct_NotAStruct(t *testing.T) {
	if err := ValidateStruct("nope"); err == nil {
		t.Error("Expected error for non-struct input")
	}
}

func TestValidateSubjectID(t *testing.T) {
	tests := []struct {
		id   string
		want error
	}{
		{"01010010183", nil},
		{"15068710011", nil},
		{"31019010069", nil},
		{"01010010184", ErrSubjectIDChecksum},
		{"01010010193", ErrSubjectIDChecksum},
		{"0101001018", ErrSubjectIDLength},
		{"010100101830", ErrSubjectIDLength},
		{"0101001018a", ErrSubjectIDLength},
		{"", ErrSubjectIDLength},
	}

	for _, tt := range tests {
		err := ValidateSubjectID(tt.id)
		if !errors.Is(err, tt.want) {
			t.Errorf("ValidateSubjectID(%q) = %v, expected %v", tt.id, err, tt.want)
		}
	}
}

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"  hello  ", "hello"},
		{"hello\x00world", "helloworld"},
		{"\n\tcomment\n", "comment"},
	}

	for _, tt := range tests {
		if got := SanitizeString(tt.input); got != tt.expected {
			t.Errorf("SanitizeString(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}
