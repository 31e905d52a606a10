package errors

import (
	"strings"
	"testing"
)

func TestValidateNodeName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "n0", false},
		{"dotted", "Homo.sapiens", false},
		{"underscore", "host_12", false},

		{"empty", "", true},
		{"too long", strings.Repeat("a", MaxNameLength+1), true},
		{"comma", "a,b", true},
		{"quote", `a"b`, true},
		{"newline", "a\nb", true},
		{"null byte", "a\x00b", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNodeName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateNodeName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeStructural) {
				t.Errorf("ValidateNodeName(%q) code = %v, want %v", tt.input, GetCode(err), ErrCodeStructural)
			}
		})
	}
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"relative", "problems/fixture.json", false},
		{"absolute", "/tmp/out.csv", false},
		{"empty", "", true},
		{"too long", strings.Repeat("a", 501), true},
		{"null byte", "a\x00b", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
