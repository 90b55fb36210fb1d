package model

import "time"

// DefaultTimeline — тег временной линии, присваиваемый всем сегментам при индексации.
const DefaultTimeline = "all"

// LogSegment — одна проиндексированная строка текстового файла.
type LogSegment struct {
	ID       int64
	BundleID string
	FileID   int64
	Timeline string
	// Content — строка без начальных и конечных пробелов
	Content string
	// Offset — индекс строки в исходном файле (с учётом пустых строк)
	Offset    *int64
	CreatedAt time.Time
}

// SegmentHit — сегмент, найденный поиском, вместе с путём файла-владельца.
type SegmentHit struct {
	FileID   int64
	Path     string
	Timeline *string
	Offset   *int64
	Content  string
}
