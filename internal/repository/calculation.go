package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"calcus-analytics/internal/config"
	"calcus-analytics/internal/model"
)

// maxAttempts - общий лимит попыток выполнения запроса, включая первую
const maxAttempts = 3

// selectCalculationsQuery - единственный запрос чтения: все колонки записи
// плюс три производные колонки из created_at, новые записи первыми
const selectCalculationsQuery = `
    SELECT
        id,
        client_id,
        created_at,
        user_ip,
        user_agent,
        calculation_type,
        initial_sum,
        target_sum,
        period,
        period_unit,
        interest_rate,
        reinvest_enabled,
        reinvest_period,
        add_period,
        add_sum,
        currency,
        final_amount,
        total_profit,
        total_contributions,
        effective_rate,
        time_months,
        time_formatted,
        api_response_time_ms,
        calculation_version,
        DATE(created_at) AS date_only,
        EXTRACT(hour FROM created_at)::int AS hour_only,
        EXTRACT(dow FROM created_at)::int AS day_of_week
    FROM investment_calculations
    ORDER BY created_at DESC
`

type CalculationRepository struct {
	dsn    string
	logger *logrus.Logger
}

func NewCalculationRepository(cfg *config.Config, logger *logrus.Logger) *CalculationRepository {
	return &CalculationRepository{
		dsn:    buildDSN(cfg),
		logger: logger,
	}
}

// buildDSN собирает строку подключения lib/pq; пустые TLS-параметры опускаются
func buildDSN(cfg *config.Config) string {
	params := []string{
		"host=" + cfg.DBHost,
		"port=" + cfg.DBPort,
		"dbname=" + cfg.DBName,
		"user=" + cfg.DBUser,
		"sslmode=" + cfg.DBSSLMode,
		fmt.Sprintf("connect_timeout=%d", int(cfg.DBConnectTimeout.Seconds())),
		"fallback_application_name=" + cfg.AppName,
	}
	if cfg.DBPassword != "" {
		params = append(params, "password="+cfg.DBPassword)
	}
	if cfg.DBSSLCert != "" {
		params = append(params, "sslcert="+cfg.DBSSLCert)
	}
	if cfg.DBSSLKey != "" {
		params = append(params, "sslkey="+cfg.DBSSLKey)
	}
	if cfg.DBSSLRootCert != "" {
		params = append(params, "sslrootcert="+cfg.DBSSLRootCert)
	}
	return strings.Join(params, " ")
}

// FetchAll возвращает все записи о расчетах. Временные сбои подключения
// приводят к переподключению и повтору запроса, всего не более трех попыток;
// после исчерпания попыток возвращается model.ErrDataUnavailable.
// Невременные ошибки (синтаксис запроса, ошибка авторизации) возвращаются сразу.
func (r *CalculationRepository) FetchAll(ctx context.Context) ([]model.CalculationRecord, error) {
	return fetchWithRetry(ctx, maxAttempts, r.logger, r.fetchOnce)
}

// fetchWithRetry - ограниченный цикл повторов вокруг одной попытки запроса
func fetchWithRetry(
	ctx context.Context,
	attempts int,
	logger *logrus.Logger,
	fetch func(ctx context.Context) ([]model.CalculationRecord, error),
) ([]model.CalculationRecord, error) {
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		records, err := fetch(ctx)
		if err == nil {
			return records, nil
		}
		if !isTransientError(err) {
			logger.WithError(err).Error("Невременная ошибка БД, повтор не выполняется")
			return nil, err
		}

		lastErr = err
		logger.WithError(err).Warnf("Переподключение к БД (попытка %d/%d)", attempt, attempts)
	}

	logger.WithError(lastErr).Errorf("Ошибка БД после %d попыток", attempts)
	return nil, fmt.Errorf("%w после %d попыток: %v", model.ErrDataUnavailable, attempts, lastErr)
}

// fetchOnce выполняет одну попытку: новое подключение, запрос, чтение строк.
// Подключение закрывается в любом случае, поэтому повтор всегда начинается
// с чистого соединения.
func (r *CalculationRepository) fetchOnce(ctx context.Context) ([]model.CalculationRecord, error) {
	db, err := sql.Open("postgres", r.dsn)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к базе данных: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ошибка проверки соединения с БД: %w", err)
	}

	rows, err := db.QueryContext(ctx, selectCalculationsQuery)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса записей о расчетах: %w", err)
	}
	defer rows.Close()

	var records []model.CalculationRecord
	for rows.Next() {
		record, err := scanCalculationRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения записи о расчете: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка обработки результатов: %w", err)
	}

	r.logger.WithField("count", len(records)).Debug("Записи о расчетах успешно получены")
	return records, nil
}

func scanCalculationRecord(rows *sql.Rows) (model.CalculationRecord, error) {
	var (
		record         model.CalculationRecord
		userIP         sql.NullString
		userAgent      sql.NullString
		targetSum      sql.NullFloat64
		period         sql.NullInt64
		periodUnit     sql.NullString
		reinvestPeriod sql.NullString
		addPeriod      sql.NullString
		addSum         sql.NullFloat64
		timeMonths     sql.NullFloat64
		timeFormatted  sql.NullString
		responseTime   sql.NullFloat64
		version        sql.NullString
	)

	err := rows.Scan(
		&record.ID,
		&record.ClientID,
		&record.CreatedAt,
		&userIP,
		&userAgent,
		&record.CalculationType,
		&record.InitialSum,
		&targetSum,
		&period,
		&periodUnit,
		&record.InterestRate,
		&record.ReinvestEnabled,
		&reinvestPeriod,
		&addPeriod,
		&addSum,
		&record.Currency,
		&record.FinalAmount,
		&record.TotalProfit,
		&record.TotalContribution,
		&record.EffectiveRate,
		&timeMonths,
		&timeFormatted,
		&responseTime,
		&version,
		&record.DateOnly,
		&record.HourOnly,
		&record.DayOfWeek,
	)
	if err != nil {
		return model.CalculationRecord{}, err
	}

	record.UserIP = userIP.String
	record.UserAgent = userAgent.String
	record.PeriodUnit = periodUnit.String
	record.ReinvestPeriod = reinvestPeriod.String
	record.AddPeriod = addPeriod.String
	record.TimeFormatted = timeFormatted.String
	record.APIResponseTimeMs = responseTime.Float64
	record.Version = version.String
	if targetSum.Valid {
		record.TargetSum = &targetSum.Float64
	}
	if period.Valid {
		p := int(period.Int64)
		record.Period = &p
	}
	if addSum.Valid {
		record.AddSum = &addSum.Float64
	}
	if timeMonths.Valid {
		record.TimeMonths = &timeMonths.Float64
	}

	return record, nil
}

// isTransientError отделяет временные сбои соединения от фатальных ошибок.
// Повторяются только обрывы соединения: driver.ErrBadConn, сетевые ошибки,
// неожиданный EOF и классы SQLSTATE 08 (connection exception) и 57P
// (завершение сервера). Остальное (синтаксис, авторизация) фатально.
func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		code := string(pqErr.Code)
		return strings.HasPrefix(code, "08") || strings.HasPrefix(code, "57P")
	}
	return false
}
