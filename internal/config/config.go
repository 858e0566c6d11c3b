package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type LoggerConfig struct {
	Level    string
	Encoding string
}

type Config struct {
	Port                  string
	AppEnv                string
	AllowedOrigin         string
	Logger                LoggerConfig
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	InvoicePrefix         string
	AuthSecret            string
	AccessTokenTTLMinutes int
	OperatorUsername      string
	OperatorPassword      string
	ConfirmPIN            string
	LoginRate             string
	SeedDemoData          bool
	Timezone              string
	StoreName             string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() Config {
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	tokenTTL, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "480"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 480
	}
	seed, _ := strconv.ParseBool(getEnv("SEED_DEMO_DATA", "false"))

	cfg := Config{
		Port:          getEnv("PORT", "8080"),
		AppEnv:        getEnv("APP_ENV", "production"),
		AllowedOrigin: getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		Logger: LoggerConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Encoding: getEnv("LOG_ENCODING", "json"),
		},
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		InvoicePrefix:         getEnv("INVOICE_PREFIX", "INV"),
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: tokenTTL,
		OperatorUsername:      strings.TrimSpace(getEnv("OPERATOR_USERNAME", "admin")),
		OperatorPassword:      os.Getenv("OPERATOR_PASSWORD"),
		ConfirmPIN:            strings.TrimSpace(os.Getenv("CONFIRM_PIN")),
		LoginRate:             getEnv("LOGIN_RATE", "5-M"),
		SeedDemoData:          seed,
		Timezone:              getEnv("STORE_TIMEZONE", "Local"),
		StoreName:             getEnv("STORE_NAME", "Auto Parts"),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) IsDevelopment() bool {
	return strings.EqualFold(c.AppEnv, "development")
}

// Location resolves STORE_TIMEZONE, used for calendar-day metrics and invoice dates.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
