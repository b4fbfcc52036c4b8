package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shenikar/tourist_safety_system/internal/models"
)

// Config - неизменяемая конфигурация приложения. Все пороги детекторов и
// политики оркестратора передаются компонентам при конструировании,
// никаких изменяемых глобальных флагов.
type Config struct {
	DatabaseURL string
	HTTPPort    string
	LogLevel    string

	// Redis Config
	RedisAddr string
	RedisPass string
	RedisDB   int

	// Ingest Config
	PingHistorySize int // кольцевой буфер пингов на субъекта

	// Geofence Config
	HysteresisConfirmations int // подтверждений подряд для смены зоны у границы

	// Anomaly Config
	SpeedThresholdKmh   float64       // порог скорости
	SpeedMinElapsed     time.Duration // минимальный интервал между пингами для расчёта скорости
	SpeedMaxAccuracy    float64       // максимальный accuracy_radius для участия в расчёте скорости, метры
	InactivityThreshold time.Duration // порог бездействия (critical от 4x порога)
	InactivitySweep     time.Duration // период свипа бездействия
	ViolationWindow     time.Duration // скользящее окно повторных нарушений
	ViolationCount      int           // входов в restricted-зону для аномалии
	ClusterRadiusMeters float64       // радиус кластера независимых тревог
	ClusterWindow       time.Duration // окно кластера
	ClusterMinSubjects  int           // минимум различных субъектов в кластере

	// Orchestrator Config
	DispatchWorkers   int           // размер пула воркеров рассылки
	RetryBaseDelay    time.Duration // базовая задержка ретрая
	RetryFactor       int           // множитель экспоненциального бэкоффа
	RetryMaxDelay     time.Duration // потолок задержки ретрая
	RetryMaxAttempts  int           // попыток на канал до перехода к следующему
	EscalationTimeout time.Duration // таймаут awaiting_ack без единого ack

	// ResponderChannels - каналы доставки на класс реагирующих, по порядку
	ResponderChannels map[models.ResponderClass][]string
	// ResponderSpeedKmh - средняя скорость класса для прямолинейного ETA
	ResponderSpeedKmh map[models.ResponderClass]float64

	// Transport Config
	TransportGatewayURL string
	TransportSecret     string
	TransportTimeout    time.Duration

	// Ledger Config
	ResponderKeysFile string // файл с ed25519 публичными ключами реагирующих

	// API Keys for authentication
	APIKeys []string
}

// LoadConfig загружает конфигурацию из переменных окружения и .env файла
func LoadConfig() (*Config, error) {
	// Загрузка переменных окружения из .env файла (если есть)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("ошибка загрузки файла .env: %w", err)
	}

	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPass: os.Getenv("REDIS_PASSWORD"),
		RedisDB:   getEnvAsInt("REDIS_DB", 0),

		PingHistorySize: getEnvAsInt("PING_HISTORY_SIZE", 50),

		HysteresisConfirmations: getEnvAsInt("HYSTERESIS_CONFIRMATIONS", 2),

		SpeedThresholdKmh:   getEnvAsFloat("SPEED_THRESHOLD_KMH", 200),
		SpeedMinElapsed:     getEnvAsDuration("SPEED_MIN_ELAPSED", 10*time.Second),
		SpeedMaxAccuracy:    getEnvAsFloat("SPEED_MAX_ACCURACY_METERS", 50),
		InactivityThreshold: getEnvAsDuration("INACTIVITY_THRESHOLD", 30*time.Minute),
		InactivitySweep:     getEnvAsDuration("INACTIVITY_SWEEP_INTERVAL", time.Minute),
		ViolationWindow:     getEnvAsDuration("VIOLATION_WINDOW", 2*time.Hour),
		ViolationCount:      getEnvAsInt("VIOLATION_COUNT", 3),
		ClusterRadiusMeters: getEnvAsFloat("CLUSTER_RADIUS_METERS", 1000),
		ClusterWindow:       getEnvAsDuration("CLUSTER_WINDOW", time.Hour),
		ClusterMinSubjects:  getEnvAsInt("CLUSTER_MIN_SUBJECTS", 3),

		DispatchWorkers:   getEnvAsInt("DISPATCH_WORKERS", 8),
		RetryBaseDelay:    getEnvAsDuration("RETRY_BASE_DELAY", 30*time.Second),
		RetryFactor:       getEnvAsInt("RETRY_FACTOR", 2),
		RetryMaxDelay:     getEnvAsDuration("RETRY_MAX_DELAY", 5*time.Minute),
		RetryMaxAttempts:  getEnvAsInt("RETRY_MAX_ATTEMPTS", 3),
		EscalationTimeout: getEnvAsDuration("ESCALATION_TIMEOUT", 10*time.Minute),

		ResponderChannels: defaultResponderChannels(),
		ResponderSpeedKmh: defaultResponderSpeeds(),

		TransportGatewayURL: os.Getenv("TRANSPORT_GATEWAY_URL"),
		TransportSecret:     os.Getenv("TRANSPORT_SECRET"),
		TransportTimeout:    getEnvAsDuration("TRANSPORT_TIMEOUT", 5*time.Second),

		ResponderKeysFile: getEnv("RESPONDER_KEYS_FILE", "responder_keys.json"),
	}

	// Переопределение каналов классов вида CHANNELS_CONTACTS=sms,call
	for class := range cfg.ResponderChannels {
		envKey := "CHANNELS_" + strings.ToUpper(string(class))
		if v := os.Getenv(envKey); v != "" {
			cfg.ResponderChannels[class] = splitTrim(v)
		}
	}

	// Загрузка API ключей
	if apiKeysStr := os.Getenv("API_KEYS"); apiKeysStr != "" {
		cfg.APIKeys = splitTrim(apiKeysStr)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	return cfg, nil
}

func defaultResponderChannels() map[models.ResponderClass][]string {
	return map[models.ResponderClass][]string{
		models.ResponderPolice:        {"radio", "sms"},
		models.ResponderAmbulance:     {"radio", "call"},
		models.ResponderTouristPolice: {"radio"},
		models.ResponderContacts:      {"sms", "call"},
		models.ResponderGeneral:       {"radio"},
	}
}

func defaultResponderSpeeds() map[models.ResponderClass]float64 {
	return map[models.ResponderClass]float64{
		models.ResponderPolice:        50,
		models.ResponderAmbulance:     55,
		models.ResponderTouristPolice: 40,
		models.ResponderContacts:      30,
		models.ResponderGeneral:       45,
	}
}

func splitTrim(s string) []string {
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// getEnv возвращает значение переменной окружения или значение по умолчанию
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt возвращает значение переменной окружения как int или значение по умолчанию
func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsFloat возвращает значение переменной окружения как float64 или значение по умолчанию
func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvAsDuration возвращает значение переменной окружения как time.Duration или значение по умолчанию
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if durationValue, err := time.ParseDuration(value); err == nil {
			return durationValue
		}
	}
	return defaultValue
}
