package settings

import (
	"database/sql"
	"strconv"
	"time"
)

// Setting keys in the system_settings table. Mutated by the admin
// collaborator, read-only here.
const (
	KeyGamePaused      = "game_paused"
	KeyStartTime       = "start_time"
	KeyEndTime         = "end_time"
	KeyDecayRate       = "decay_rate"
	KeyDecayDivisor    = "decay_divisor"
	KeyMinPoints       = "min_points"
	KeyFirstBloodBonus = "first_blood_bonus"
	KeyFlagSalt        = "flag_salt"
	KeyHoneypotHash    = "honeypot_hash"
)

// Snapshot is the competition configuration as read at the start of one
// submission. It is immutable once loaded; every policy and scoring decision
// for that submission uses the same snapshot, so an admin edit mid-request
// cannot produce a half-updated view.
type Snapshot struct {
	GamePaused      bool
	StartTime       time.Time
	EndTime         time.Time
	DecayRate       float64
	DecayDivisor    float64
	MinPoints       int
	FirstBloodBonus int
	FlagSalt        string
	HoneypotHash    string
}

// Load reads every setting key in a single statement so the snapshot is
// internally consistent. Missing keys fall back to defaults.
func Load(db *sql.DB) (*Snapshot, error) {
	rows, err := db.Query(`SELECT key, value FROM system_settings WHERE key IN
		($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		KeyGamePaused, KeyStartTime, KeyEndTime, KeyDecayRate, KeyDecayDivisor,
		KeyMinPoints, KeyFirstBloodBonus, KeyFlagSalt, KeyHoneypotHash)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			continue
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return parse(values), nil
}

// parse builds a snapshot from raw key/value pairs, applying defaults and
// clamping out-of-range decay parameters instead of failing the submission.
func parse(values map[string]string) *Snapshot {
	s := &Snapshot{
		DecayRate:       0.5,
		DecayDivisor:    10,
		MinPoints:       50,
		FirstBloodBonus: 0,
	}

	s.GamePaused = values[KeyGamePaused] == "true"
	s.FlagSalt = values[KeyFlagSalt]
	s.HoneypotHash = values[KeyHoneypotHash]

	if t, err := time.Parse(time.RFC3339, values[KeyStartTime]); err == nil {
		s.StartTime = t
	}
	if t, err := time.Parse(time.RFC3339, values[KeyEndTime]); err == nil {
		s.EndTime = t
	}

	if v, err := strconv.ParseFloat(values[KeyDecayRate], 64); err == nil {
		if v > 0 && v <= 1 {
			s.DecayRate = v
		}
	}
	if v, err := strconv.ParseFloat(values[KeyDecayDivisor], 64); err == nil {
		if v > 0 {
			s.DecayDivisor = v
		}
	}
	if v, err := strconv.Atoi(values[KeyMinPoints]); err == nil && v >= 0 {
		s.MinPoints = v
	}
	if v, err := strconv.Atoi(values[KeyFirstBloodBonus]); err == nil && v >= 0 {
		s.FirstBloodBonus = v
	}

	return s
}
