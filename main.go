package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"LMS-backend/internal/library/borrows"
	"LMS-backend/internal/library/catalog"
	"LMS-backend/internal/library/fines"
	"LMS-backend/internal/library/reservations"
	"LMS-backend/internal/library/students"
	"LMS-backend/internal/platform/auth"
	"LMS-backend/internal/platform/db"
	"LMS-backend/internal/platform/idempotency"
)

func main() {
	cfg, err := db.LoadConfig("config/config.yaml")
	if err != nil {
		panic(err)
	}

	log.Printf("[INFO] mode:%s", cfg.Mode)
	if cfg.Mode != "dev" && cfg.Mode != "release" {
		log.Fatal("config mode must be dev or release")
	}

	conn, err := db.Connect(cfg.DB)
	if err != nil {
		panic(err)
	}
	defer conn.Close()
	log.Printf("[INFO] connected to DB: %s", cfg.DB.DBName)

	replay, err := idempotency.Open("data/idempotency.db")
	if err != nil {
		log.Fatal(err)
	}
	defer replay.Close()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	_ = r.SetTrustedProxies(nil)

	if cfg.Mode == "dev" {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     []string{"http://localhost:3000"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowCredentials: true,
		}))
	}

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	secret := []byte(cfg.Auth.JWTSecret)
	authSvc := auth.NewService(conn, secret)
	catalogSvc := catalog.NewService(conn)
	borrowSvc := borrows.NewService(conn)
	fineSvc := fines.NewService(conn)
	reservationSvc := reservations.NewService(conn)
	studentSvc := students.NewService(conn)

	api := r.Group("/api/v1")
	api.Use(replay.Middleware())

	auth.RegisterRoutes(api.Group("/auth"), authSvc)

	// Public catalog browsing, no token required.
	catalog.RegisterPublicRoutes(api.Group("/public"), catalogSvc)

	student := api.Group("/student", auth.RequireAuth(secret), auth.RequireRole(auth.RoleStudent))
	catalog.RegisterPublicRoutes(student, catalogSvc)
	borrows.RegisterStudentRoutes(student, borrowSvc)
	fines.RegisterStudentRoutes(student, fineSvc)
	reservations.RegisterStudentRoutes(student, reservationSvc)

	librarian := api.Group("/librarian", auth.RequireAuth(secret), auth.RequireRole(auth.RoleLibrarian, auth.RoleAdmin))
	catalog.RegisterStaffRoutes(librarian, catalogSvc)
	borrows.RegisterStaffRoutes(librarian, borrowSvc)
	fines.RegisterStaffRoutes(librarian, fineSvc)
	reservations.RegisterStaffRoutes(librarian, reservationSvc)
	students.RegisterStaffRoutes(librarian, studentSvc)

	admin := api.Group("/admin", auth.RequireAuth(secret), auth.RequireRole(auth.RoleAdmin))
	students.RegisterAdminRoutes(admin, studentSvc)
	auth.RegisterAdminRoutes(admin, authSvc)

	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: r,
	}

	go func() {
		log.Printf("[INFO] listening on %s", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit
	log.Println("[INFO] shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal(err)
	}
}
