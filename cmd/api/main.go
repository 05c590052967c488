package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"schoolhub/internal/attendance"
	"schoolhub/internal/auth"
	"schoolhub/internal/config"
	"schoolhub/internal/events"
	"schoolhub/internal/exam"
	"schoolhub/internal/httpmiddleware"
	"schoolhub/internal/metrics"
	"schoolhub/internal/notify"
	"schoolhub/internal/queue"
	"schoolhub/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	retry := store.NewRetryer(cfg.RetryAttempts, cfg.RetryDelay)
	db, err := store.NewDB(cfg.DatabaseURL, retry)
	if err != nil {
		log.Printf("warning: db not reachable: %v", err)
	}
	defer func() {
		if db != nil {
			_ = db.Close()
		}
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, redisClient.QueueKey("notifications"))
	}

	m := metrics.New()
	bus := events.NewBus()

	attStore := attendance.NewPostgresStore(db)
	att := attendance.NewService(attStore, bus, m)

	examStore := exam.NewPostgresStore(db)
	exams := exam.NewService(examStore, bus, m)

	notifStore := notify.NewPostgresStore(db)
	directory := notify.NewPostgresDirectory(db)
	dispatcher := notify.NewDispatcher(notifStore, directory, q, m)
	dispatcher.Register(bus)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewPerIPLimiter(cfg.RateLimitPerMin, "/healthz", "/metrics").Middleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db != nil && db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.POST("/v1/staff/login", func(c *gin.Context) {
		var req struct {
			StaffID string `json:"staff_id" binding:"required"`
			Role    string `json:"role" binding:"required,oneof=teacher admin"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		tokens, err := auth.Issue(req.StaffID, req.Role, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_at":    tokens.AccessExp.Unix(),
		})
	})

	staff := r.Group("/v1", auth.StaffAuth(cfg.JWTSigningKey, cfg.JWTIssuer, auth.RoleTeacher, auth.RoleAdmin))

	staff.POST("/attendance", func(c *gin.Context) {
		var req struct {
			StudentID string `json:"student_id" binding:"required"`
			ClassID   string `json:"class_id" binding:"required"`
			Date      string `json:"date" binding:"required"`
			Shift     string `json:"shift" binding:"required,oneof=morning afternoon"`
			Status    string `json:"status" binding:"required,oneof=present absent late excused"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		date, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}

		rec, err := att.MarkSingle(c.Request.Context(), req.StudentID, req.ClassID, date,
			attendance.Shift(req.Shift), attendance.Status(req.Status), staffID(c))
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, rec)
	})

	staff.POST("/attendance/bulk", func(c *gin.Context) {
		var req struct {
			ClassID string            `json:"class_id" binding:"required"`
			Date    string            `json:"date" binding:"required"`
			Shift   string            `json:"shift" binding:"required,oneof=morning afternoon"`
			Marks   []attendance.Mark `json:"marks" binding:"required,dive"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		date, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}

		recs, err := att.BulkUpsert(c.Request.Context(), req.ClassID, date,
			attendance.Shift(req.Shift), staffID(c), req.Marks)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"records": recs})
	})

	staff.GET("/attendance", func(c *gin.Context) {
		date, err := time.Parse("2006-01-02", c.Query("date"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		recs, err := att.ListByClassDate(c.Request.Context(), c.Query("class_id"), date, attendance.Shift(c.Query("shift")))
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"records": recs})
	})

	staff.POST("/exams/results", func(c *gin.Context) {
		var req struct {
			StudentID string `json:"student_id" binding:"required"`
			Subject   string `json:"subject" binding:"required"`
			Marks     *int   `json:"marks" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		res, err := exams.Submit(c.Request.Context(), req.StudentID, req.Subject, *req.Marks, staffID(c))
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, res)
	})

	staff.GET("/notifications", func(c *gin.Context) {
		recipientID := c.Query("recipient_id")
		if recipientID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "recipient_id required"})
			return
		}
		limit := 50
		if v := c.Query("limit"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				limit = parsed
			}
		}
		items, err := notifStore.ListByRecipient(c.Request.Context(), recipientID, limit)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"notifications": items})
	})

	staff.POST("/notifications/:id/read", func(c *gin.Context) {
		if err := notifStore.MarkRead(c.Request.Context(), c.Param("id")); err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	// Let in-flight event dispatches land before exiting.
	bus.Wait()

	log.Println("Server exited")
	return nil
}

func staffID(c *gin.Context) string {
	claimsAny, _ := c.Get("claims")
	claims, _ := claimsAny.(auth.Claims)
	return claims.Subject
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, attendance.ErrAlreadyMarked):
		return http.StatusConflict
	case errors.Is(err, attendance.ErrInvalidRecord), errors.Is(err, exam.ErrInvalidResult):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
