package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	LogLevel          string
	TaxYear           int
	ReportingCurrency string
	CacheDatabasePath string
	DecimalPrecision  int32
	RateFallbackDays  int
	ECBRatesURL       string
	Interactive       bool
}

var Cfg *AppConfig

func LoadConfig() {
	errEnv := godotenv.Load()
	if errEnv != nil {
		log.Println("Info: No .env file found or error loading .env file. Relying on OS environment variables and defaults. Error (if any):", errEnv)
	} else {
		log.Println(".env file loaded successfully.")
	}

	Cfg = &AppConfig{
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		TaxYear:           getEnvAsInt("TAX_YEAR", 2023),
		ReportingCurrency: getEnv("REPORTING_CURRENCY", "EUR"),
		CacheDatabasePath: getEnv("CACHE_DATABASE_PATH", "./steuerfolio.db"),
		DecimalPrecision:  int32(getEnvAsInt("DECIMAL_PRECISION", 10)),
		RateFallbackDays:  getEnvAsInt("RATE_FALLBACK_DAYS", 7),
		ECBRatesURL:       getEnv("ECB_RATES_URL", "https://data-api.ecb.europa.eu/service/data/EXR/D.%s.EUR.SP00.A"),
		Interactive:       getEnvAsBool("INTERACTIVE", false),
	}

	log.Printf("Configuration loaded: TaxYear=%d, ReportingCurrency=%s, CacheDBPath=%s, LogLevel=%s",
		Cfg.TaxYear, Cfg.ReportingCurrency, Cfg.CacheDatabasePath, Cfg.LogLevel)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid boolean value for %s ('%s'), using default: %t", key, valueStr, fallback)
	return fallback
}
