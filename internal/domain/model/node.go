package model

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// NodeStatusReady — статус узла после создания. Узлы не изменяются,
// поэтому других значений пайплайн не выставляет.
const NodeStatusReady = "READY"

// FileNode — узел дерева файлов бандла (файл или директория).
// Дерево хранится как набор записей с nullable ссылкой на родителя;
// родитель всегда создаётся раньше потомков.
type FileNode struct {
	ID       int64
	BundleID string
	// ParentID — nil для узлов верхнего уровня бандла
	ParentID *int64
	Name     string
	// Path — логический путь внутри бандла, уникален в пределах бандла
	Path  string
	IsDir bool
	// SizeBytes — nil для директорий
	SizeBytes *int64
	MimeType  *string
	Status    string
	Meta      NodeMeta
	CreatedAt time.Time
}

// NewFileNode — параметры создания узла (без полей, назначаемых БД).
type NewFileNode struct {
	BundleID  string
	ParentID  *int64
	Name      string
	Path      string
	IsDir     bool
	SizeBytes *int64
	MimeType  *string
	Meta      NodeMeta
}

// RootNodeID — внешний идентификатор синтетического корня бандла.
const RootNodeID = "root"

// ErrInvalidNodeRef — идентификатор узла не является ни "root", ни числом.
var ErrInvalidNodeRef = errors.New("некорректный идентификатор узла")

// NodeRef — ссылка на узел: синтетический корень бандла или сохранённый узел.
// Корень существует только на уровне запросов и в хранилище не попадает.
type NodeRef struct {
	id     int64
	stored bool
}

// RootRef возвращает ссылку на корень бандла.
func RootRef() NodeRef { return NodeRef{} }

// StoredRef возвращает ссылку на сохранённый узел.
func StoredRef(id int64) NodeRef { return NodeRef{id: id, stored: true} }

// IsRoot — ссылка указывает на корень.
func (r NodeRef) IsRoot() bool { return !r.stored }

// ID возвращает идентификатор сохранённого узла; ok=false для корня.
func (r NodeRef) ID() (id int64, ok bool) { return r.id, r.stored }

// String — внешнее представление ссылки.
func (r NodeRef) String() string {
	if !r.stored {
		return RootNodeID
	}
	return strconv.FormatInt(r.id, 10)
}

// ParseNodeRef разбирает внешний идентификатор узла:
// "root" (без учёта регистра) или десятичное число.
func ParseNodeRef(s string) (NodeRef, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, RootNodeID) {
		return RootRef(), nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return NodeRef{}, ErrInvalidNodeRef
	}
	return StoredRef(id), nil
}
