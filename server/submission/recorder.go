package submission

import (
	"database/sql"
	"errors"
	"fmt"

	"ctfcore/server/logs"
	"ctfcore/server/settings"
)

// errAlreadySolved reports that a concurrent submission for the same
// (principal, challenge) pair won the insert race.
var errAlreadySolved = errors.New("solve already recorded")

// solveOutcome is the result of a successfully recorded solve.
type solveOutcome struct {
	Points     int
	FirstBlood bool
}

// recordSolve persists a confirmed-correct submission as one transaction:
// solve insert, challenge counters, first-blood claim, team cached score,
// team lock, activity-log entry. Either everything becomes visible or
// nothing does; a failure mid-way rolls back so no partial state leaks.
//
// The challenge row is locked FOR UPDATE, which serializes solves of the
// same challenge: the solve count read here is the pre-increment count the
// award is defined over, and the first-blood decision cannot race. The
// unique constraint on (user_id, challenge_id) independently guards
// duplicate submissions from the same principal across instances.
func recordSolve(db *sql.DB, snap *settings.Snapshot, p *principalRow, ch *challengeRow, ip string) (*solveOutcome, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var solveCount int
	var firstBloodUser sql.NullInt64
	err = tx.QueryRow(`SELECT solve_count, first_blood_user_id FROM challenges WHERE id = $1 FOR UPDATE`,
		ch.ID).Scan(&solveCount, &firstBloodUser)
	if err != nil {
		return nil, err
	}

	firstBlood := !firstBloodUser.Valid
	points := AwardWithBonus(ch.BasePoints, solveCount, snap.DecayRate, snap.DecayDivisor,
		snap.MinPoints, firstBlood, snap.FirstBloodBonus)

	var teamID interface{}
	if p.TeamID.Valid {
		teamID = p.TeamID.Int64
	}
	res, err := tx.Exec(`INSERT INTO solves (user_id, challenge_id, team_id, points, first_blood)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, challenge_id) DO NOTHING`,
		p.ID, ch.ID, teamID, points, firstBlood)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, errAlreadySolved
	}

	if _, err := tx.Exec(`UPDATE challenges SET solve_count = solve_count + 1 WHERE id = $1`, ch.ID); err != nil {
		return nil, err
	}

	if firstBlood {
		res, err := tx.Exec(`UPDATE challenges SET first_blood_user_id = $2, first_blood_at = NOW()
			WHERE id = $1 AND first_blood_user_id IS NULL`, ch.ID, p.ID)
		if err != nil {
			return nil, err
		}
		// The row lock makes the guard deterministic; zero rows here means
		// the invariant is broken, not that we lost a race.
		if n, _ := res.RowsAffected(); n == 0 {
			return nil, fmt.Errorf("first blood claim failed for challenge %d", ch.ID)
		}
	}

	if p.TeamID.Valid {
		if _, err := tx.Exec(`UPDATE teams SET score = score + $1 WHERE id = $2`, points, p.TeamID.Int64); err != nil {
			return nil, err
		}
	}

	// First solve locks team membership for scoring integrity.
	if !p.TeamLocked {
		if _, err := tx.Exec(`UPDATE users SET team_locked = TRUE WHERE id = $1 AND team_locked = FALSE`, p.ID); err != nil {
			return nil, err
		}
	}

	logType, level := logs.TypeSolve, logs.LevelSuccess
	message := fmt.Sprintf("[%s] solved [%s] for %d points", p.Name, ch.Name, points)
	if firstBlood {
		logType = logs.TypeFirstBlood
		message = fmt.Sprintf("FIRST BLOOD! [%s] drew first blood on [%s] for %d points", p.Name, ch.Name, points)
	}
	var teamRef *int64
	if p.TeamID.Valid {
		teamRef = &p.TeamID.Int64
	}
	if err := logs.Write(tx, logType, level, &p.ID, teamRef, &ch.ID, ip, message, map[string]interface{}{
		"points":     points,
		"firstBlood": firstBlood,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &solveOutcome{Points: points, FirstBlood: firstBlood}, nil
}
