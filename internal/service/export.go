package service

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"calcus-analytics/internal/model"
)

// exportSheetName - название листа в файле Excel
const exportSheetName = "Данные расчетов"

// exportColumns - порядок колонок выгрузки; совпадает с колонками запроса
var exportColumns = []string{
	"id",
	"client_id",
	"created_at",
	"user_ip",
	"user_agent",
	"calculation_type",
	"initial_sum",
	"target_sum",
	"period",
	"period_unit",
	"interest_rate",
	"reinvest_enabled",
	"reinvest_period",
	"add_period",
	"add_sum",
	"currency",
	"final_amount",
	"total_profit",
	"total_contributions",
	"effective_rate",
	"time_months",
	"time_formatted",
	"api_response_time_ms",
	"calculation_version",
	"date_only",
	"hour_only",
	"day_of_week",
}

// ExportService выгружает отфильтрованную выборку без потерь: все колонки,
// порядок строк сохраняется
type ExportService struct {
	logger *logrus.Logger
}

func NewExportService(logger *logrus.Logger) *ExportService {
	return &ExportService{logger: logger}
}

// CSV сериализует записи в CSV с BOM (utf-8-sig), чтобы файл корректно
// открывался в Excel
func (s *ExportService) CSV(records []model.CalculationRecord) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("\uFEFF")

	writer := csv.NewWriter(&buf)
	if err := writer.Write(exportColumns); err != nil {
		return nil, fmt.Errorf("ошибка записи заголовка CSV: %w", err)
	}
	for i := range records {
		if err := writer.Write(recordStrings(&records[i])); err != nil {
			return nil, fmt.Errorf("ошибка записи строки CSV: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("ошибка выгрузки CSV: %w", err)
	}

	s.logger.WithField("count", len(records)).Info("Выгрузка CSV сформирована")
	return buf.Bytes(), nil
}

// XLSX сериализует записи в файл Excel с одним листом данных
func (s *ExportService) XLSX(records []model.CalculationRecord) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	index, err := file.NewSheet(exportSheetName)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания листа: %w", err)
	}
	file.SetActiveSheet(index)
	if err := file.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("ошибка удаления листа по умолчанию: %w", err)
	}

	header := make([]interface{}, len(exportColumns))
	for i, column := range exportColumns {
		header[i] = column
	}
	if err := file.SetSheetRow(exportSheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("ошибка записи заголовка: %w", err)
	}

	for i := range records {
		values := recordStrings(&records[i])
		row := make([]interface{}, len(values))
		for j, v := range values {
			row[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("ошибка адресации ячейки: %w", err)
		}
		if err := file.SetSheetRow(exportSheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("ошибка записи строки %d: %w", i+2, err)
		}
	}

	var buf bytes.Buffer
	if err := file.Write(&buf); err != nil {
		return nil, fmt.Errorf("ошибка выгрузки Excel: %w", err)
	}

	s.logger.WithField("count", len(records)).Info("Выгрузка Excel сформирована")
	return buf.Bytes(), nil
}

// recordStrings переводит запись в строковые значения колонок.
// Отсутствующие значения (nil) выгружаются пустой строкой.
func recordStrings(r *model.CalculationRecord) []string {
	return []string{
		strconv.FormatInt(r.ID, 10),
		r.ClientID,
		r.CreatedAt.Format("2006-01-02 15:04:05"),
		r.UserIP,
		r.UserAgent,
		strconv.Itoa(r.CalculationType),
		formatAmount(r.InitialSum),
		formatOptionalAmount(r.TargetSum),
		formatOptionalInt(r.Period),
		r.PeriodUnit,
		formatAmount(r.InterestRate),
		strconv.FormatBool(r.ReinvestEnabled),
		r.ReinvestPeriod,
		r.AddPeriod,
		formatOptionalAmount(r.AddSum),
		r.Currency,
		formatAmount(r.FinalAmount),
		formatAmount(r.TotalProfit),
		formatAmount(r.TotalContribution),
		formatAmount(r.EffectiveRate),
		formatOptionalAmount(r.TimeMonths),
		r.TimeFormatted,
		formatAmount(r.APIResponseTimeMs),
		r.Version,
		r.DateOnly.Format("2006-01-02"),
		strconv.Itoa(r.HourOnly),
		strconv.Itoa(r.DayOfWeek),
	}
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptionalAmount(v *float64) string {
	if v == nil {
		return ""
	}
	return formatAmount(*v)
}

func formatOptionalInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
