package config

import "os"

// Server holds the backend daemon configuration, read from the environment
// (optionally via a .env file loaded in main).
type Server struct {
	Port           string
	AirtableAPIKey string
	AirtableBaseID string
	WebhookURL     string
	JWTSecret      string
	CORSOrigin     string
	MockMode       bool
	LogPath        string
}

// ServerFromEnv builds the server config from environment variables.
func ServerFromEnv() *Server {
	return &Server{
		Port:           envOr("PORT", "3001"),
		AirtableAPIKey: os.Getenv("AIRTABLE_API_KEY"),
		AirtableBaseID: os.Getenv("AIRTABLE_BASE_ID"),
		WebhookURL:     os.Getenv("WEBHOOK_OT_N8N_URL"),
		JWTSecret:      envOr("JWT_SECRET", "condor_secret_seguro"),
		CORSOrigin:     envOr("CORS_ORIGIN", "*"),
		MockMode:       os.Getenv("MOCK_MODE") == "true",
		LogPath:        envOr("LOG_PATH", "fieldopsd.log"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
