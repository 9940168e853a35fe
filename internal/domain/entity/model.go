package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Type тип синхронизируемой сущности
type Type string

const (
	TypePatient       Type = "patient"
	TypeSession       Type = "session"
	TypeAssessment    Type = "assessment"
	TypeInvoice       Type = "invoice"
	TypeDocumentMeta  Type = "documentMeta"
	TypeTreatmentType Type = "treatmentType"
	TypeICDCode       Type = "icdCode"
	TypeSystemConfig  Type = "systemConfig"
	TypeReferenceData Type = "referenceData"
	TypeAvailability  Type = "availability"
)

// Category категория данных, определяет политику разрешения конфликтов
type Category string

const (
	CategoryParameter     Category = "parameter"
	CategoryMasterData    Category = "masterData"
	CategoryTransactional Category = "transactionalData"
)

// Operation операция над сущностью в очереди отправки. Удаление не синхронизируется.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
)

// Shape конкретная локальная форма записи внутри одного типа сущности
type Shape string

const (
	ShapePatient            Shape = "patient"
	ShapeAnamnesis          Shape = "anamnesis"
	ShapeFinding            Shape = "finding"
	ShapeTherapy            Shape = "therapy"
	ShapeVisit              Shape = "visit"
	ShapeVisitDocumentation Shape = "visitDocumentation"
	ShapeInvoice            Shape = "invoice"
	ShapeDocumentMeta       Shape = "documentMeta"
	ShapeAvailability       Shape = "availability"
	ShapeParameter          Shape = "parameter"
)

// ShapeTagKey ключ в Fields, по которому мерджер выбирает форму записи
const ShapeTagKey = "shapeTag"

var categories = map[Type]Category{
	TypePatient:       CategoryMasterData,
	TypeAvailability:  CategoryMasterData,
	TypeSession:       CategoryTransactional,
	TypeAssessment:    CategoryTransactional,
	TypeInvoice:       CategoryTransactional,
	TypeDocumentMeta:  CategoryTransactional,
	TypeTreatmentType: CategoryParameter,
	TypeICDCode:       CategoryParameter,
	TypeSystemConfig:  CategoryParameter,
	TypeReferenceData: CategoryParameter,
}

// Valid проверяет, известен ли тип
func (t Type) Valid() bool {
	_, ok := categories[t]
	return ok
}

// Category возвращает категорию данных для типа
func (t Type) Category() Category {
	return categories[t]
}

// Valid проверяет, известна ли категория
func (c Category) Valid() bool {
	switch c {
	case CategoryParameter, CategoryMasterData, CategoryTransactional:
		return true
	}
	return false
}

// ParameterTypes возвращает все типы параметрических данных
func ParameterTypes() []Type {
	return []Type{TypeTreatmentType, TypeICDCode, TypeSystemConfig, TypeReferenceData}
}

// Fields полное состояние сущности в виде JSON-совместимых значений
type Fields map[string]any

// Shape возвращает явный тег формы, если он есть
func (f Fields) Shape() (Shape, bool) {
	s, ok := f[ShapeTagKey].(string)
	if !ok || s == "" {
		return "", false
	}
	return Shape(s), true
}

// WithoutShape возвращает копию верхнего уровня без тега формы
func (f Fields) WithoutShape() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		if k == ShapeTagKey {
			continue
		}
		out[k] = v
	}
	return out
}

// Clone глубоко копирует значения
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return map[string]any(Fields(val).Clone())
	case Fields:
		return val.Clone()
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = cloneValue(elem)
		}
		return out
	default:
		return val
	}
}

// FieldsOf переводит произвольное значение в Fields через JSON.
// Числа сохраняются как json.Number, чтобы не терять точность.
func FieldsOf(v any) (Fields, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal fields: %w", err)
	}
	return DecodeFields(data)
}

// DecodeFields разбирает JSON-объект в Fields
func DecodeFields(data []byte) (Fields, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var f Fields
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	if f == nil {
		return nil, ErrNotAnObject
	}
	return f, nil
}

// Extracted одна сущность, извлеченная из вложенного агрегата
type Extracted struct {
	EntityType   Type     `json:"entityType"`
	EntityID     string   `json:"entityId"`
	ParentID     string   `json:"parentId,omitempty"`
	DataCategory Category `json:"dataCategory"`
	Fields       Fields   `json:"fields"`
}
