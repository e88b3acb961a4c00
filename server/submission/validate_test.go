package submission

import (
	"strings"
	"testing"
)

func TestValidateRequest(t *testing.T) {
	cases := []struct {
		name      string
		challenge string
		flag      string
		wantErr   error
	}{
		{"ok", "42", "flag{x}", nil},
		{"empty challenge", "", "flag{x}", errEmptyChallenge},
		{"empty flag", "42", "", errEmptyFlag},
		{"flag at limit", "42", strings.Repeat("a", MaxFlagLength), nil},
		{"flag over limit", "42", strings.Repeat("a", MaxFlagLength+1), errFlagTooLong},
		{"multibyte flag at limit", "42", strings.Repeat("é", MaxFlagLength), nil},
		{"multibyte flag over limit", "42", strings.Repeat("é", MaxFlagLength+1), errFlagTooLong},
	}
	for _, tc := range cases {
		if err := validateRequest(tc.challenge, tc.flag); err != tc.wantErr {
			t.Errorf("%s: validateRequest = %v, want %v", tc.name, err, tc.wantErr)
		}
	}
}
