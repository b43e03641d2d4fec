package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config содержит настройки приложения
type Config struct {
	// Подключение к PostgreSQL
	DBHost           string        // Хост базы данных
	DBPort           string        // Порт базы данных
	DBName           string        // Имя базы данных
	DBUser           string        // Пользователь базы данных
	DBPassword       string        // Пароль базы данных
	DBSSLMode        string        // Режим TLS (disable/prefer/require/verify-full)
	DBSSLCert        string        // Путь к клиентскому сертификату
	DBSSLKey         string        // Путь к клиентскому ключу
	DBSSLRootCert    string        // Путь к корневому сертификату
	DBConnectTimeout time.Duration // Таймаут подключения
	AppName          string        // Метка приложения для pg_stat_activity

	// HTTP и авторизация оператора
	HTTPAddr         string        // Адрес HTTP сервера
	JWTSecret        string        // Секрет для JWT
	TokenExpiry      time.Duration // Время жизни токена
	OperatorPassword string        // Пароль оператора дашборда

	// Внешние источники и кэши
	CBRURL          string        // Адрес сервиса курсов ЦБ РФ
	RecordsCacheTTL time.Duration // Время жизни кэша записей
	RatesCacheTTL   time.Duration // Время жизни кэша курсов

	// Оповещения
	AlertEmail string // Адрес для оповещений о недоступности БД
}

// LoadConfig загружает конфигурацию из .env файла и переменных окружения
func LoadConfig() (*Config, error) {
	// Загружаем переменные окружения из .env файла
	if err := godotenv.Load(); err != nil {
		logrus.Warn("Файл .env не найден")
	}

	config := &Config{
		DBHost:           getEnv("DB_HOST", "localhost"),
		DBPort:           getEnv("DB_PORT", "5432"),
		DBName:           getEnv("DB_NAME", "calcus_db"),
		DBUser:           getEnv("DB_USER", "postgres"),
		DBPassword:       getEnv("DB_PASSWORD", ""),
		DBSSLMode:        getEnv("DB_SSLMODE", "prefer"),
		DBSSLCert:        getEnv("DB_SSLCERT", ""),
		DBSSLKey:         getEnv("DB_SSLKEY", ""),
		DBSSLRootCert:    getEnv("DB_SSLROOTCERT", ""),
		DBConnectTimeout: getEnvDuration("DB_CONNECT_TIMEOUT", 10*time.Second),
		AppName:          getEnv("APP_NAME", "calcus_dashboard"),

		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		JWTSecret:        getEnv("JWT_SECRET", "default-secret-key"),
		TokenExpiry:      getEnvDuration("TOKEN_EXPIRY", 24*time.Hour),
		OperatorPassword: getEnv("OPERATOR_PASSWORD", ""),

		CBRURL:          getEnv("CBR_URL", "http://www.cbr.ru/scripts/XML_daily.asp"),
		RecordsCacheTTL: getEnvDuration("RECORDS_CACHE_TTL", 60*time.Second),
		RatesCacheTTL:   getEnvDuration("RATES_CACHE_TTL", time.Hour),

		AlertEmail: getEnv("ALERT_EMAIL", ""),
	}

	return config, nil
}

// getEnv получает значение переменной окружения или возвращает значение по умолчанию
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvDuration парсит длительность из переменной окружения
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return d
}
