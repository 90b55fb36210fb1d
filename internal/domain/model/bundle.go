// Пакет model — доменные модели Rain backend.
// Issue, Bundle, FileNode, LogSegment — маппинг таблиц issues, bundles,
// files, log_segments. NodeMeta и NodeRef — типизированные значения,
// которыми обмениваются сервисный слой и хранилище.
package model

import "time"

// Issue — задача (тикет), к которой привязываются бандлы.
// Создаётся при первом упоминании, имя никогда не перезаписывается.
type Issue struct {
	// Code — идентификатор задачи, задаётся клиентом
	Code string
	// Name — отображаемое имя (при автосоздании совпадает с Code)
	Name string
	// CreatedAt — время создания записи
	CreatedAt time.Time
}

// BundleStatus — статус обработки бандла.
type BundleStatus string

const (
	// BundleReady — все файлы обработаны
	BundleReady BundleStatus = "READY"
	// BundleProcessing — идёт приём и разбор файлов
	BundleProcessing BundleStatus = "PROCESSING"
	// BundleFailed — обработка прервана ошибкой
	BundleFailed BundleStatus = "FAILED"
	// BundlePending — зарезервировано для асинхронной обработки
	BundlePending BundleStatus = "PENDING"
)

// Valid проверяет, что статус — одно из известных значений.
func (s BundleStatus) Valid() bool {
	switch s {
	case BundleReady, BundleProcessing, BundleFailed, BundlePending:
		return true
	}
	return false
}

// Terminal возвращает true для статусов, которые больше не меняются.
func (s BundleStatus) Terminal() bool {
	return s == BundleReady || s == BundleFailed
}

// Bundle — одна сессия загрузки. Наружу отдаётся только Hash,
// внутренний ID используется как ключ связей.
type Bundle struct {
	// ID — внутренний UUID (ключ для files и log_segments)
	ID string
	// Hash — внешний идентификатор (UUID v4 без дефисов), глобально уникален
	Hash string
	// Name — отображаемое имя
	Name string
	// IssueCode — код задачи-владельца
	IssueCode string
	// SizeBytes — суммарный размер загруженных файлов
	SizeBytes int64
	// Status — статус обработки
	Status BundleStatus
	// CreatedAt — время создания
	CreatedAt time.Time
}
