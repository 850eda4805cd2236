// Package importer загружает справочники и исторические данные MES в базу:
// библиотеку контрмер из CSV и выгрузки измерений из унаследованной системы
// в кодировке Windows-1251.
package importer

import "time"

// ImportResult итог импорта одного файла
type ImportResult struct {
	Total     int           `json:"total"`
	Success   int           `json:"success"`
	Skipped   int           `json:"skipped"`
	Errors    []string      `json:"errors,omitempty"`
	Started   time.Time     `json:"started"`
	Completed time.Time     `json:"completed"`
	Duration  time.Duration `json:"duration"`
}
