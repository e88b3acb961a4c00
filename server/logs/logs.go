package logs

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Event types
const (
	TypeFlagSubmit = "flag_submit"
	TypeSolve      = "solve"
	TypeFirstBlood = "first_blood"
	TypeBan        = "ban"
	TypeAnnounce   = "announcement"
)

// Event levels
const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
	LevelSuccess = "success"
)

// Entry is one activity-log record.
type Entry struct {
	ID          int64           `json:"id"`
	Type        string          `json:"type"`
	Level       string          `json:"level"`
	UserID      *int64          `json:"userId,omitempty"`
	TeamID      *int64          `json:"teamId,omitempty"`
	ChallengeID *int64          `json:"challengeId,omitempty"`
	IPAddress   string          `json:"ipAddress,omitempty"`
	Message     string          `json:"message"`
	Details     json.RawMessage `json:"details,omitempty"`
	CreatedAt   string          `json:"createdAt"`
}

// Execer is satisfied by both *sql.DB and *sql.Tx, so scoring-relevant
// events can be appended inside the recorder's transaction and become
// visible atomically with the solve they describe.
type Execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

// Write appends one entry to the activity log.
func Write(ex Execer, logType, level string, userID, teamID, challengeID *int64, ipAddress, message string, details interface{}) error {
	var detailsJSON []byte
	if details != nil {
		if b, err := json.Marshal(details); err == nil {
			detailsJSON = b
		}
	}

	_, err := ex.Exec(`
		INSERT INTO activity_log (type, level, user_id, team_id, challenge_id, ip_address, message, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		logType, level, userID, teamID, challengeID, ipAddress, message, detailsJSON)
	return err
}

// WriteSimple appends an entry with only a user reference.
func WriteSimple(ex Execer, logType, level string, userID int64, ipAddress, message string) error {
	return Write(ex, logType, level, &userID, nil, nil, ipAddress, message, nil)
}

// HandleGetLogs serves the paged operator view of the activity log.
func HandleGetLogs(c *gin.Context, db *sql.DB) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "50"))
	if page < 1 {
		page = 1
	}
	if pageSize < 10 || pageSize > 100 {
		pageSize = 50
	}
	offset := (page - 1) * pageSize

	logType := c.Query("type")
	level := c.Query("level")
	search := c.Query("search")

	query := `
		SELECT id, type, level, user_id, team_id, challenge_id, ip_address, message, details, created_at
		FROM activity_log
		WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM activity_log WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if logType != "" {
		query += " AND type = $" + strconv.Itoa(argIdx)
		countQuery += " AND type = $" + strconv.Itoa(argIdx)
		args = append(args, logType)
		argIdx++
	}
	if level != "" {
		query += " AND level = $" + strconv.Itoa(argIdx)
		countQuery += " AND level = $" + strconv.Itoa(argIdx)
		args = append(args, level)
		argIdx++
	}
	if search != "" {
		query += " AND message ILIKE $" + strconv.Itoa(argIdx)
		countQuery += " AND message ILIKE $" + strconv.Itoa(argIdx)
		args = append(args, "%"+search+"%")
		argIdx++
	}

	var total int
	countArgs := make([]interface{}, len(args))
	copy(countArgs, args)
	db.QueryRow(countQuery, countArgs...).Scan(&total)

	query += " ORDER BY created_at DESC LIMIT $" + strconv.Itoa(argIdx) + " OFFSET $" + strconv.Itoa(argIdx+1)
	args = append(args, pageSize, offset)

	rows, err := db.Query(query, args...)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DATABASE_ERROR"})
		return
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var userID, teamID, challengeID sql.NullInt64
		var ipAddress sql.NullString
		var details []byte
		var createdAt time.Time

		if err := rows.Scan(&e.ID, &e.Type, &e.Level, &userID, &teamID, &challengeID,
			&ipAddress, &e.Message, &details, &createdAt); err != nil {
			continue
		}

		if userID.Valid {
			e.UserID = &userID.Int64
		}
		if teamID.Valid {
			e.TeamID = &teamID.Int64
		}
		if challengeID.Valid {
			e.ChallengeID = &challengeID.Int64
		}
		if ipAddress.Valid {
			e.IPAddress = ipAddress.String
		}
		if len(details) > 0 {
			e.Details = details
		}
		e.CreatedAt = createdAt.Format("2006-01-02 15:04:05")
		entries = append(entries, e)
	}

	if entries == nil {
		entries = []Entry{}
	}

	totalPages := (total + pageSize - 1) / pageSize
	c.JSON(http.StatusOK, gin.H{
		"logs":       entries,
		"total":      total,
		"page":       page,
		"pageSize":   pageSize,
		"totalPages": totalPages,
	})
}
