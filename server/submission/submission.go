package submission

import (
	"database/sql"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"ctfcore/server/logs"
	"ctfcore/server/settings"
)

// SubmitFlagRequest is the submission payload.
type SubmitFlagRequest struct {
	Flag string `json:"flag" binding:"required"`
}

// SubmitFlagResponse is returned for every evaluated submission, correct or
// not. Wrong-secret is a successful evaluation with a negative result, so it
// shares the 200 response with accepted solves.
type SubmitFlagResponse struct {
	Correct    bool   `json:"correct"`
	Message    string `json:"message"`
	Score      int    `json:"score,omitempty"`
	FirstBlood bool   `json:"firstBlood,omitempty"`
}

// principalRow is the authenticated competitor as read from the user store.
type principalRow struct {
	ID         int64
	Name       string
	Status     string
	TeamID     sql.NullInt64
	TeamLocked bool
}

// challengeRow is the challenge as read from the challenge store.
type challengeRow struct {
	ID          int64
	Name        string
	BasePoints  int
	FlagType    string
	FlagHash    string
	HashAlgo    string
	FlagPattern string
	Prereqs     []int64
	Status      string
}

// wrongFlagMessage is deliberately generic: it must not distinguish a wrong
// static flag from a pattern miss or a rejected pattern.
const wrongFlagMessage = "Incorrect flag."

// HandleSubmitFlag is the single inbound operation: validate, gate, match,
// score, record. Every gate failure short-circuits with its specific reason;
// only evaluated secret comparisons reach the attempt log.
func HandleSubmitFlag(c *gin.Context, db *sql.DB) {
	challengeRef := c.Param("challengeId")
	userID := c.GetInt64("userID")
	clientIP := c.ClientIP()

	var req SubmitFlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "message": "flag is required"})
		return
	}
	submitted := strings.TrimSpace(req.Flag)

	if err := validateRequest(challengeRef, submitted); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "message": err.Error()})
		return
	}

	snap, err := settings.Load(db)
	if err != nil {
		log.Printf("load settings error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}

	principal, err := loadPrincipal(db, userID)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "UNAUTHORIZED"})
		return
	}
	if err != nil {
		log.Printf("load principal %d error: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}

	// Ban and window checks precede the challenge read: a banned caller
	// learns nothing about challenge existence.
	if gerr := checkBan(principal); gerr != nil {
		respondGate(c, gerr)
		return
	}
	if gerr := checkWindow(snap, time.Now()); gerr != nil {
		respondGate(c, gerr)
		return
	}

	ch, err := loadChallenge(db, challengeRef)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{"error": "CHALLENGE_NOT_FOUND"})
		return
	}
	if err != nil {
		log.Printf("load challenge %s error: %v", challengeRef, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}
	if ch.Status != "public" {
		c.JSON(http.StatusNotFound, gin.H{"error": "CHALLENGE_NOT_FOUND"})
		return
	}

	gerr, err := checkRateLimit(db, principal.ID)
	if err != nil {
		log.Printf("rate limit check error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}
	if gerr != nil {
		respondGate(c, gerr)
		return
	}

	gerr, err = checkDuplicate(db, principal.ID, ch.ID)
	if err != nil {
		log.Printf("duplicate check error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}
	if gerr != nil {
		respondGate(c, gerr)
		return
	}

	gerr, err = checkPrerequisites(db, principal.ID, ch.Prereqs)
	if err != nil {
		log.Printf("prerequisite check error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}
	if gerr != nil {
		respondGate(c, gerr)
		return
	}

	correct := matchSecret(ch, snap, submitted)

	// Every evaluated comparison is an attempt; gate rejections above never
	// reach this point.
	insertAttempt(db, principal.ID, ch.ID, correct, clientIP)

	// The trap runs whatever the real comparison said, and before any
	// success response could be composed.
	if isHoneypot(snap, submitted) {
		banPrincipal(db, principal, ch.ID, clientIP)
		c.JSON(http.StatusForbidden, gin.H{"error": "FORBIDDEN"})
		return
	}

	if !correct {
		logs.Write(db, logs.TypeFlagSubmit, logs.LevelError, &principal.ID, teamRef(principal), &ch.ID, clientIP,
			"["+principal.Name+"] submitted a wrong flag for ["+ch.Name+"]", nil)
		c.JSON(http.StatusOK, SubmitFlagResponse{Correct: false, Message: wrongFlagMessage})
		return
	}

	outcome, err := recordSolve(db, snap, principal, ch, clientIP)
	if err == errAlreadySolved {
		respondGate(c, &gateError{status: http.StatusConflict, code: "ALREADY_SOLVED", reason: "already_solved"})
		return
	}
	if err != nil {
		log.Printf("record solve error (user %d, challenge %d): %v", principal.ID, ch.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}

	resp := SubmitFlagResponse{
		Correct:    true,
		Score:      outcome.Points,
		FirstBlood: outcome.FirstBlood,
	}
	if outcome.FirstBlood {
		resp.Message = "First blood! Congratulations!"
	} else {
		resp.Message = "Correct!"
	}
	c.JSON(http.StatusOK, resp)
}

func respondGate(c *gin.Context, gerr *gateError) {
	body := gin.H{"error": gerr.code}
	if gerr.reason != "" {
		body["reason"] = gerr.reason
	}
	if gerr.retryAfter > 0 {
		body["retryAfter"] = gerr.retryAfter
	}
	c.JSON(gerr.status, body)
}

func loadPrincipal(db *sql.DB, userID int64) (*principalRow, error) {
	p := &principalRow{}
	err := db.QueryRow(`SELECT id, COALESCE(display_name, username), COALESCE(status, 'active'), team_id, COALESCE(team_locked, FALSE)
		FROM users WHERE id = $1`, userID).
		Scan(&p.ID, &p.Name, &p.Status, &p.TeamID, &p.TeamLocked)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func loadChallenge(db *sql.DB, challengeRef string) (*challengeRow, error) {
	id, err := strconv.ParseInt(challengeRef, 10, 64)
	if err != nil {
		return nil, sql.ErrNoRows
	}

	ch := &challengeRow{}
	var flagHash, hashAlgo, flagPattern sql.NullString
	var prereqs []byte
	err = db.QueryRow(`SELECT id, name, base_points, flag_type, flag_hash, hash_algo, flag_pattern, prerequisites, status
		FROM challenges WHERE id = $1`, id).
		Scan(&ch.ID, &ch.Name, &ch.BasePoints, &ch.FlagType, &flagHash, &hashAlgo, &flagPattern, &prereqs, &ch.Status)
	if err != nil {
		return nil, err
	}
	ch.FlagHash = flagHash.String
	ch.HashAlgo = hashAlgo.String
	ch.FlagPattern = flagPattern.String
	ch.Prereqs = parseIDArray(prereqs)
	return ch, nil
}

// insertAttempt appends to the attempt log used by the rate-limit window.
// Best effort: a failed insert must not fail the submission.
func insertAttempt(db *sql.DB, userID, challengeID int64, correct bool, ip string) {
	_, err := db.Exec(`INSERT INTO submission_attempts (user_id, challenge_id, is_correct, ip_address)
		VALUES ($1, $2, $3, $4)`, userID, challengeID, correct, ip)
	if err != nil {
		log.Printf("insert attempt error: %v", err)
	}
}

// banPrincipal flips the ban flag after a honeypot hit and records why. The
// caller's response stays a bare forbidden so the trap is not advertised.
func banPrincipal(db *sql.DB, p *principalRow, challengeID int64, ip string) {
	if _, err := db.Exec(`UPDATE users SET status = 'banned' WHERE id = $1`, p.ID); err != nil {
		log.Printf("honeypot ban error (user %d): %v", p.ID, err)
		return
	}
	logs.Write(db, logs.TypeBan, logs.LevelWarning, &p.ID, teamRef(p), &challengeID, ip,
		"["+p.Name+"] submitted the honeypot flag and was banned", nil)
}

func teamRef(p *principalRow) *int64 {
	if p.TeamID.Valid {
		return &p.TeamID.Int64
	}
	return nil
}
