package service

import "calcus-analytics/internal/model"

// ConvertToRub пересчитывает денежные поля записей в рубли по таблице курсов:
// начальную сумму, итоговую сумму, прибыль и сумму пополнения (отсутствующее
// пополнение считается нулевым). Остальные поля не меняются. Возвращается
// копия: исходные записи остаются пригодными для повторной фильтрации.
func ConvertToRub(records []model.CalculationRecord, rates model.RateTable) []model.CalculationRecord {
	converted := make([]model.CalculationRecord, len(records))
	for i, record := range records {
		rate := rates.Rate(record.Currency)

		record.InitialSum *= rate
		record.FinalAmount *= rate
		record.TotalProfit *= rate

		addSum := 0.0
		if record.AddSum != nil {
			addSum = *record.AddSum * rate
		}
		record.AddSum = &addSum

		converted[i] = record
	}
	return converted
}
