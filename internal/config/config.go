package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Port string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	JWTSecret []byte
	JWTExpiry time.Duration

	Engine EngineConfig

	// GradeBandTablePath optionally points at a JSON calibration table
	// supplied by the content service. Empty means the built-in default.
	GradeBandTablePath string
}

// EngineConfig collects the adaptive engine tunables. All of these have
// working defaults; they exist so calibration can change without a rebuild.
type EngineConfig struct {
	InitialAbility     float64 // ability prior when the caller has no history
	InitialUncertainty float64 // uncertainty at session start (its maximum)
	K0                 float64 // base learning rate; per-question K = K0/sqrt(n+1)
	AIHelpDiscount     float64 // outcome multiplier when AI help was used
	UncertaintyDecay   float64 // per-answer uncertainty multiplier, < 1
	UncertaintyFloor   float64 // uncertainty never drops below this

	ConvergenceThreshold float64 // stop once uncertainty <= threshold...
	MinQuestionsFloor    int     // ...but never before this many answers
	DefaultMaxQuestions  int
	MaxQuestionsCap      int

	StoreRetries int // optimistic-lock retries before giving up
}

// Load reads configuration from environment variables with defaults.
// It loads a .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load() // .env is optional

	return &Config{
		Port: getEnv("PORT", "8080"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "skillscan_user"),
		DBPassword: getEnv("DB_PASSWORD", "skillscan_password"),
		DBName:     getEnv("DB_NAME", "skillscan"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		JWTSecret: []byte(getEnv("JWT_SECRET", "skillscan-staging-signing-key-2026")),
		JWTExpiry: time.Duration(getEnvInt("JWT_EXPIRY_HOURS", 72)) * time.Hour,

		Engine: EngineConfig{
			InitialAbility:       getEnvFloat("ENGINE_INITIAL_ABILITY", 0.0),
			InitialUncertainty:   getEnvFloat("ENGINE_INITIAL_UNCERTAINTY", 1.0),
			K0:                   getEnvFloat("ENGINE_K0", 0.6),
			AIHelpDiscount:       getEnvFloat("ENGINE_AI_HELP_DISCOUNT", 0.5),
			UncertaintyDecay:     getEnvFloat("ENGINE_UNCERTAINTY_DECAY", 0.85),
			UncertaintyFloor:     getEnvFloat("ENGINE_UNCERTAINTY_FLOOR", 0.1),
			ConvergenceThreshold: getEnvFloat("ENGINE_CONVERGENCE_THRESHOLD", 0.25),
			MinQuestionsFloor:    getEnvInt("ENGINE_MIN_QUESTIONS", 3),
			DefaultMaxQuestions:  getEnvInt("ENGINE_DEFAULT_MAX_QUESTIONS", 20),
			MaxQuestionsCap:      getEnvInt("ENGINE_MAX_QUESTIONS_CAP", 100),
			StoreRetries:         getEnvInt("ENGINE_STORE_RETRIES", 3),
		},

		GradeBandTablePath: getEnv("GRADE_BAND_TABLE_PATH", ""),
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
