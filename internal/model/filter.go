package model

import "time"

// FloatRange - включающий диапазон числового значения
type FloatRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains проверяет попадание значения в диапазон (границы включаются)
func (r *FloatRange) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// IntRange - включающий диапазон целого значения
type IntRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Contains проверяет попадание значения в диапазон (границы включаются)
func (r *IntRange) Contains(v int) bool {
	return v >= r.Min && v <= r.Max
}

// DateRange - включающий диапазон дат; сравнивается только датовая часть
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// FilterSpec - набор независимых условий фильтрации, объединяемых логическим "И".
// Нулевые (nil/пустые) условия не ограничивают выборку.
//
// Два условия зависят от типа расчета: PeriodRange ограничивает только записи
// "итоговая сумма", TargetSumRange - только записи "срок достижения цели";
// записи остальных типов проходят эти условия автоматически.
type FilterSpec struct {
	Currencies       []string    `json:"currencies,omitempty"`
	CalculationTypes []int       `json:"calculation_types,omitempty"`
	ReinvestValues   []bool      `json:"reinvest_values,omitempty"`
	Dates            *DateRange  `json:"dates,omitempty"`
	InitialSumRange  *FloatRange `json:"initial_sum_range,omitempty"`
	InterestRange    *FloatRange `json:"interest_range,omitempty"`
	FinalAmountRange *FloatRange `json:"final_amount_range,omitempty"`
	ProfitRange      *FloatRange `json:"profit_range,omitempty"`
	PeriodRange      *IntRange   `json:"period_range,omitempty"`
	TargetSumRange   *FloatRange `json:"target_sum_range,omitempty"`
}

// IsEmpty сообщает, что спецификация не содержит ни одного условия
func (s *FilterSpec) IsEmpty() bool {
	return len(s.Currencies) == 0 &&
		len(s.CalculationTypes) == 0 &&
		len(s.ReinvestValues) == 0 &&
		s.Dates == nil &&
		s.InitialSumRange == nil &&
		s.InterestRange == nil &&
		s.FinalAmountRange == nil &&
		s.ProfitRange == nil &&
		s.PeriodRange == nil &&
		s.TargetSumRange == nil
}
