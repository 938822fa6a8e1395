package main

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/skillscan/backend/internal/assessment"
	"github.com/skillscan/backend/internal/auth"
	"github.com/skillscan/backend/internal/config"
	"github.com/skillscan/backend/internal/database"
	"github.com/skillscan/backend/internal/itembank"
	"github.com/skillscan/backend/internal/middleware"
	"github.com/skillscan/backend/internal/scorer"
)

func main() {
	cfg := config.Load()

	// Initialize database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	bands, err := assessment.LoadGradeBandTable(cfg.GradeBandTablePath)
	if err != nil {
		log.Fatalf("Failed to load grade band table: %v", err)
	}

	// Initialize services and handlers
	itemStore := itembank.NewStore(db)
	sessionStore := assessment.NewSQLStore(db)
	reflectionScorer := scorer.New()

	assessmentService := assessment.NewService(sessionStore, itemStore, bands, reflectionScorer, cfg.Engine)

	authHandler := auth.NewHandler(db, cfg.JWTSecret, cfg.JWTExpiry)
	assessmentHandler := assessment.NewHandler(assessmentService)
	itemHandler := itembank.NewHandler(itemStore)

	// Setup router
	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()

	// Public routes
	api.HandleFunc("/auth/register", authHandler.Register).Methods("POST")
	api.HandleFunc("/auth/login", authHandler.Login).Methods("POST")

	// Protected routes
	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.Auth(cfg.JWTSecret))
	protected.HandleFunc("/auth/me", authHandler.GetCurrentUser).Methods("GET")

	protected.HandleFunc("/assessment/start", assessmentHandler.StartSession).Methods("POST")
	protected.HandleFunc("/assessment/sessions", assessmentHandler.ListSessions).Methods("GET")
	protected.HandleFunc("/assessment/{session_id}/next-question", assessmentHandler.NextQuestion).Methods("GET")
	protected.HandleFunc("/assessment/{session_id}/answer", assessmentHandler.SubmitAnswer).Methods("POST")
	protected.HandleFunc("/assessment/{session_id}/report", assessmentHandler.GetReport).Methods("GET")

	protected.HandleFunc("/items/import", itemHandler.ImportItems).Methods("POST")
	protected.HandleFunc("/items/export", itemHandler.ExportItems).Methods("GET")
	protected.HandleFunc("/items/subjects", itemHandler.ListSubjects).Methods("GET")
	protected.HandleFunc("/items/{id:[0-9]+}", itemHandler.GetItem).Methods("GET")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	handler := c.Handler(r)

	log.Printf("Server starting on :%s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, handler); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
