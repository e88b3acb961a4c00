// Package saferegex evaluates challenge-author-supplied patterns against
// submitted flags. Patterns are untrusted: they pass a static pre-check that
// rejects constructs associated with catastrophic backtracking, then run
// under a hard wall-clock budget. Go's regexp engine is already linear-time,
// so the budget is a backstop against pathological pattern or input sizes
// rather than the primary defense.
package saferegex

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	MaxPatternLength = 500
	MaxQuantifiers   = 10
	MaxGroupDepth    = 5
	MaxWildcardRuns  = 2

	// DefaultBudget bounds one evaluation. The matching goroutine cannot be
	// preempted, but it always terminates on its own; callers only wait this
	// long for the answer.
	DefaultBudget = 100 * time.Millisecond
)

var (
	ErrUnsafePattern = errors.New("pattern rejected by safety pre-check")
	ErrTimeout       = errors.New("pattern evaluation exceeded budget")
)

// Check statically rejects patterns with known blow-up shapes. The error
// wraps ErrUnsafePattern with the specific construct for operator logs; the
// reason must never reach the submitter.
func Check(pattern string) error {
	if len(pattern) > MaxPatternLength {
		return fmt.Errorf("%w: length %d > %d", ErrUnsafePattern, len(pattern), MaxPatternLength)
	}

	type group struct {
		hasQuantifier  bool
		hasAlternation bool
	}

	var (
		stack       []group
		quantifiers int
		inClass     bool
		escaped     bool
		prev        byte
		wildcards   int
	)

	markQuantifier := func() {
		quantifiers++
		for i := range stack {
			stack[i].hasQuantifier = true
		}
	}

	for i := 0; i < len(pattern); i++ {
		ch := pattern[i]

		if escaped {
			escaped = false
			prev = 0
			continue
		}
		if ch == '\\' {
			escaped = true
			continue
		}
		if inClass {
			if ch == ']' {
				inClass = false
				prev = ']'
			}
			continue
		}

		switch ch {
		case '[':
			inClass = true
		case '(':
			stack = append(stack, group{})
			if len(stack) > MaxGroupDepth {
				return fmt.Errorf("%w: group nesting deeper than %d", ErrUnsafePattern, MaxGroupDepth)
			}
		case ')':
			if len(stack) == 0 {
				break // unbalanced, leave it to the compiler
			}
			closed := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			next := lookahead(pattern, i+1)
			quantified := isQuantifierStart(next)
			if next == '{' {
				if end := strings.IndexByte(pattern[i+1:], '}'); end >= 0 && isBoundedRepeat(pattern[i+1:i+2+end]) {
					quantified = true
				}
			}
			if quantified {
				if closed.hasQuantifier {
					return fmt.Errorf("%w: repetition nested inside a repeated group", ErrUnsafePattern)
				}
				if closed.hasAlternation {
					return fmt.Errorf("%w: alternation under a quantifier", ErrUnsafePattern)
				}
			}
		case '|':
			for i := range stack {
				stack[i].hasAlternation = true
			}
		case '*', '+', '?':
			if ch == '?' && prev == '(' {
				// group flag like (?: or (?i), not a quantifier
				prev = ch
				continue
			}
			if isQuantifierStart(prev) || prev == '}' {
				return fmt.Errorf("%w: stacked repetition tokens", ErrUnsafePattern)
			}
			if prev == '.' && (ch == '*' || ch == '+') {
				wildcards++
				if wildcards > MaxWildcardRuns {
					return fmt.Errorf("%w: more than %d greedy wildcard runs", ErrUnsafePattern, MaxWildcardRuns)
				}
			}
			markQuantifier()
		case '{':
			if end := strings.IndexByte(pattern[i:], '}'); end >= 0 && isBoundedRepeat(pattern[i:i+end+1]) {
				if prev == '}' || isQuantifierStart(prev) {
					return fmt.Errorf("%w: stacked repetition tokens", ErrUnsafePattern)
				}
				markQuantifier()
				i += end
				prev = '}'
				continue
			}
		}

		if quantifiers > MaxQuantifiers {
			return fmt.Errorf("%w: more than %d quantifiers", ErrUnsafePattern, MaxQuantifiers)
		}
		prev = ch
	}

	return nil
}

// Match reports whether input matches pattern as an anchored full-string
// match. It runs Check first; compile failures are treated the same as an
// unsafe pattern, and an evaluation that does not finish within budget
// returns ErrTimeout.
func Match(pattern, input string, budget time.Duration) (bool, error) {
	if err := Check(pattern); err != nil {
		return false, err
	}
	return match(pattern, input, budget)
}

func match(pattern, input string, budget time.Duration) (bool, error) {
	re, err := regexp.Compile(`\A(?:` + pattern + `)\z`)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnsafePattern, err)
	}

	done := make(chan bool, 1)
	go func() {
		done <- re.MatchString(input)
	}()

	timer := time.NewTimer(budget)
	defer timer.Stop()

	select {
	case matched := <-done:
		return matched, nil
	case <-timer.C:
		// The goroutine finishes on its own (linear-time engine); only the
		// wait is abandoned.
		return false, ErrTimeout
	}
}

func lookahead(s string, i int) byte {
	if i < len(s) {
		return s[i]
	}
	return 0
}

func isQuantifierStart(ch byte) bool {
	return ch == '*' || ch == '+' || ch == '?'
}

// isBoundedRepeat reports whether s, starting with '{' and ending with '}',
// is a repetition like {3}, {2,} or {2,10} rather than a literal brace.
func isBoundedRepeat(s string) bool {
	if len(s) < 3 {
		return false
	}
	body := s[1 : len(s)-1]
	digits := 0
	commas := 0
	for i := 0; i < len(body); i++ {
		switch {
		case body[i] >= '0' && body[i] <= '9':
			digits++
		case body[i] == ',' && commas == 0 && digits > 0:
			commas++
		default:
			return false
		}
	}
	return digits > 0
}
