package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration, read from the environment.
type Config struct {
	Port           string
	DBPath         string
	BaseURL        string
	LogLevel       string
	LogFormat      string
	AllowedOrigins []string

	Firebase FirebaseConfig
	VAPID    VAPIDConfig

	// NotifyEndpoint points at an external fan-out service implementing
	// POST /api/send-notification. Empty means fan out in-process via FCM.
	NotifyEndpoint string

	Payment PaymentConfig
	Images  ImageConfig
	Email   EmailConfig
}

type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string

	// Public web-client values, handed to the browser for sign-in and the
	// messaging service worker.
	WebAPIKey         string
	AuthDomain        string
	MessagingSenderID string
	AppID             string
}

// Enabled reports whether enough Firebase configuration exists to create an app.
func (c FirebaseConfig) Enabled() bool {
	return c.ProjectID != "" || c.CredentialsFile != ""
}

type VAPIDConfig struct {
	PublicKey  string
	PrivateKey string
	Subscriber string
}

type PaymentConfig struct {
	Gateway           string // "stripe" or "uddoktapay"
	StripeSecretKey   string
	UddoktaPayAPIKey  string
	UddoktaPayBaseURL string
	Currency          string
}

type ImageConfig struct {
	ImgBBAPIKey string
	S3Endpoint  string
	S3Bucket    string
	S3Region    string
	S3AccessKey string
	S3SecretKey string
	S3PublicURL string
}

type EmailConfig struct {
	PostmarkToken string
	SMTPHost      string
	SMTPPort      int
	SMTPUsername  string
	SMTPPassword  string
	From          string
}

// WebEnabled reports whether the browser SDK can be initialised.
func (c FirebaseConfig) WebEnabled() bool {
	return c.ProjectID != "" && c.WebAPIKey != "" && c.AppID != ""
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	port := getEnv("ACADEMY_PORT", "8080")
	smtpPort, err := strconv.Atoi(getEnv("SMTP_PORT", "587"))
	if err != nil {
		return Config{}, fmt.Errorf("parse SMTP_PORT: %w", err)
	}

	cfg := Config{
		Port:           port,
		DBPath:         getEnv("ACADEMY_DB_PATH", "academy.db"),
		BaseURL:        getEnv("ACADEMY_BASE_URL", "http://localhost:"+port),
		LogLevel:       getEnv("ACADEMY_LOG_LEVEL", "info"),
		LogFormat:      getEnv("ACADEMY_LOG_FORMAT", "text"),
		AllowedOrigins: splitList(os.Getenv("ACADEMY_ALLOWED_ORIGINS")),
		Firebase: FirebaseConfig{
			ProjectID:         os.Getenv("FIREBASE_PROJECT_ID"),
			CredentialsFile:   os.Getenv("FIREBASE_CREDENTIALS_FILE"),
			WebAPIKey:         os.Getenv("FIREBASE_WEB_API_KEY"),
			AuthDomain:        os.Getenv("FIREBASE_AUTH_DOMAIN"),
			MessagingSenderID: os.Getenv("FIREBASE_MESSAGING_SENDER_ID"),
			AppID:             os.Getenv("FIREBASE_APP_ID"),
		},
		VAPID: VAPIDConfig{
			PublicKey:  os.Getenv("VAPID_PUBLIC_KEY"),
			PrivateKey: os.Getenv("VAPID_PRIVATE_KEY"),
			Subscriber: getEnv("VAPID_SUBSCRIBER", "mailto:noreply@academy.local"),
		},
		NotifyEndpoint: os.Getenv("NOTIFY_ENDPOINT"),
		Payment: PaymentConfig{
			Gateway:           getEnv("PAYMENT_GATEWAY", "uddoktapay"),
			StripeSecretKey:   os.Getenv("STRIPE_SECRET_KEY"),
			UddoktaPayAPIKey:  os.Getenv("UDDOKTAPAY_API_KEY"),
			UddoktaPayBaseURL: getEnv("UDDOKTAPAY_BASE_URL", "https://sandbox.uddoktapay.com"),
			Currency:          getEnv("PAYMENT_CURRENCY", "bdt"),
		},
		Images: ImageConfig{
			ImgBBAPIKey: os.Getenv("IMGBB_API_KEY"),
			S3Endpoint:  os.Getenv("S3_ENDPOINT"),
			S3Bucket:    os.Getenv("S3_BUCKET"),
			S3Region:    getEnv("S3_REGION", "auto"),
			S3AccessKey: os.Getenv("S3_ACCESS_KEY"),
			S3SecretKey: os.Getenv("S3_SECRET_KEY"),
			S3PublicURL: os.Getenv("S3_PUBLIC_URL"),
		},
		Email: EmailConfig{
			PostmarkToken: os.Getenv("POSTMARK_TOKEN"),
			SMTPHost:      os.Getenv("SMTP_HOST"),
			SMTPPort:      smtpPort,
			SMTPUsername:  os.Getenv("SMTP_USERNAME"),
			SMTPPassword:  os.Getenv("SMTP_PASSWORD"),
			From:          getEnv("EMAIL_FROM", "noreply@academy.local"),
		},
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
