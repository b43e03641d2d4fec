package model

import "errors"

var (
	// ErrDataUnavailable - база данных недоступна после исчерпания попыток подключения.
	// Фатальная ошибка: конвейер останавливается, частичных результатов нет.
	ErrDataUnavailable = errors.New("база данных недоступна")

	// ErrEmptyResult - после фильтрации не осталось ни одной записи.
	// Конвейер останавливается до агрегации: медианы и средние по пустой
	// выборке не определены.
	ErrEmptyResult = errors.New("нет данных для выбранных фильтров")
)
