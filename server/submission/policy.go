package submission

import (
	"database/sql"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ctfcore/server/settings"
)

// Rate limit: at most rateLimitMax evaluated attempts per principal in the
// trailing rateLimitWindow. Counted from the durable attempt log so the
// limit holds across concurrent service instances.
const (
	rateLimitWindow = 60 * time.Second
	rateLimitMax    = 5
)

// gateError is a policy-gate rejection with its HTTP mapping. Gates run in
// order from cheapest to most expensive; the first failure short-circuits.
type gateError struct {
	status     int
	code       string
	reason     string
	retryAfter int
}

func (e *gateError) Error() string {
	if e.reason != "" {
		return e.code + " (" + e.reason + ")"
	}
	return e.code
}

func forbidden(reason string) *gateError {
	return &gateError{status: http.StatusForbidden, code: "FORBIDDEN", reason: reason}
}

// checkBan rejects banned principals before anything else leaks state.
func checkBan(p *principalRow) *gateError {
	if p.Status == "banned" {
		return forbidden("banned")
	}
	return nil
}

// checkWindow enforces the pause flag and the competition time window
// against the settings snapshot.
func checkWindow(snap *settings.Snapshot, now time.Time) *gateError {
	if snap.GamePaused {
		return forbidden("paused")
	}
	if !snap.StartTime.IsZero() && now.Before(snap.StartTime) {
		return forbidden("not_started")
	}
	if !snap.EndTime.IsZero() && now.After(snap.EndTime) {
		return forbidden("ended")
	}
	return nil
}

// checkRateLimit counts this principal's attempt-log rows in the trailing
// window. Gate rejections never reach the attempt log, so they do not
// consume the window; moving the attempt insert ahead of the gates is the
// one-line change for a stricter posture.
func checkRateLimit(db *sql.DB, userID int64) (*gateError, error) {
	var count int
	var oldestElapsed float64
	err := db.QueryRow(`SELECT COUNT(*), COALESCE(EXTRACT(EPOCH FROM (NOW() - MIN(submitted_at))), 0)
		FROM submission_attempts
		WHERE user_id = $1 AND submitted_at > NOW() - INTERVAL '60 seconds'`,
		userID).Scan(&count, &oldestElapsed)
	if err != nil {
		return nil, err
	}
	if count >= rateLimitMax {
		return &gateError{
			status:     http.StatusTooManyRequests,
			code:       "TOO_FAST",
			retryAfter: retryAfterSeconds(oldestElapsed),
		}, nil
	}
	return nil, nil
}

// retryAfterSeconds converts the age of the oldest attempt in the window
// into a retry hint: the window reopens when that attempt ages out.
func retryAfterSeconds(oldestElapsed float64) int {
	remaining := rateLimitWindow.Seconds() - oldestElapsed
	if remaining < 1 {
		return 1
	}
	return int(math.Ceil(remaining))
}

// checkDuplicate rejects when a solve already exists for this pair. The
// recorder's unique constraint is still the authority under concurrency;
// this gate just answers early for the common case.
func checkDuplicate(db *sql.DB, userID, challengeID int64) (*gateError, error) {
	var existing int64
	err := db.QueryRow(`SELECT id FROM solves WHERE user_id = $1 AND challenge_id = $2`,
		userID, challengeID).Scan(&existing)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &gateError{status: http.StatusConflict, code: "ALREADY_SOLVED", reason: "already_solved"}, nil
}

// checkPrerequisites rejects unless every prerequisite challenge id appears
// in the principal's solved set.
func checkPrerequisites(db *sql.DB, userID int64, prereqs []int64) (*gateError, error) {
	if len(prereqs) == 0 {
		return nil, nil
	}

	rows, err := db.Query(`SELECT challenge_id FROM solves WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	solved := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			continue
		}
		solved[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(unmetPrereqs(prereqs, solved)) > 0 {
		return forbidden("dependencies_unmet"), nil
	}
	return nil, nil
}

// unmetPrereqs returns the prerequisite ids not present in the solved set.
func unmetPrereqs(prereqs []int64, solved map[int64]bool) []int64 {
	var unmet []int64
	for _, id := range prereqs {
		if !solved[id] {
			unmet = append(unmet, id)
		}
	}
	return unmet
}

// parseIDArray parses a postgres array literal like {3,7,12} as scanned
// through the stdlib driver. Empty or null arrays yield nil.
func parseIDArray(raw []byte) []int64 {
	if len(raw) < 2 || raw[0] != '{' || raw[len(raw)-1] != '}' {
		return nil
	}
	body := string(raw[1 : len(raw)-1])
	if body == "" {
		return nil
	}
	var ids []int64
	for _, part := range strings.Split(body, ",") {
		if id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}
