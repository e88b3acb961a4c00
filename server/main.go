package main

import (
	"database/sql"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"ctfcore/server/logs"
	"ctfcore/server/submission"
)

// Attempt-log rows older than this are pruned. The rate limiter only ever
// looks 60 seconds back; everything older is dead weight.
const attemptRetentionHours = 24

func main() {
	_ = godotenv.Load()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL not set")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("failed to ping database: %v", err)
	}

	r := gin.Default()
	r.Use(requestIDMiddleware())

	api := r.Group("/api")
	{
		api.GET("/healthz", func(c *gin.Context) {
			c.JSON(200, gin.H{"status": "ok"})
		})

		userAPI := api.Group("")
		userAPI.Use(ipThrottleMiddleware(rate.Limit(20), 40))
		userAPI.Use(principalAuthMiddleware([]byte(jwtSecret)))
		{
			userAPI.POST("/challenges/:challengeId/submit", func(c *gin.Context) {
				submission.HandleSubmitFlag(c, db)
			})
		}

		adminAPI := api.Group("/admin")
		adminAPI.Use(adminAuthMiddleware([]byte(jwtSecret)))
		{
			adminAPI.GET("/logs", func(c *gin.Context) {
				logs.HandleGetLogs(c, db)
			})
		}
	}

	startAttemptPruner(db)

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	if err := r.Run(":" + port); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

// startAttemptPruner trims old attempt-log rows in the background.
func startAttemptPruner(db *sql.DB) {
	ticker := time.NewTicker(10 * time.Minute)
	go func() {
		for range ticker.C {
			_, err := db.Exec(`DELETE FROM submission_attempts WHERE submitted_at < NOW() - make_interval(hours => $1)`,
				attemptRetentionHours)
			if err != nil {
				log.Printf("prune attempts error: %v", err)
			}
		}
	}()
}
