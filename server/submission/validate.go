package submission

import (
	"errors"
	"unicode/utf8"
)

// MaxFlagLength caps submitted text, counted in characters rather than bytes
// so a multibyte flag is not cut short of the advertised limit. The bound
// exists to keep the pattern matcher's input small, not to accommodate real
// flags.
const MaxFlagLength = 500

var (
	errEmptyChallenge = errors.New("challenge reference is empty")
	errEmptyFlag      = errors.New("submitted flag is empty")
	errFlagTooLong    = errors.New("submitted flag exceeds maximum length")
)

// validateRequest checks structural validity only; it has no side effects
// and touches no state.
func validateRequest(challengeRef, flag string) error {
	if challengeRef == "" {
		return errEmptyChallenge
	}
	if flag == "" {
		return errEmptyFlag
	}
	if utf8.RuneCountInString(flag) > MaxFlagLength {
		return errFlagTooLong
	}
	return nil
}
