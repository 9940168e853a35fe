package mapping

import (
	"fmt"

	"praxsync/internal/domain/entity"
	"praxsync/internal/domain/patient"
)

// Вложенные коллекции, которые извлекаются отдельными сущностями
// и поэтому вырезаются из полей родителя.
var (
	patientNested = []string{"anamnesis", "findings", "therapies", "invoices", "documents"}
	therapyNested = []string{"sessions"}
	visitNested   = []string{"documentation"}

	// Локальная отметка изменения пациента не синхронизируется.
	patientOmit = append([]string{"updatedAt"}, patientNested...)
)

// Extractor раскладывает вложенный агрегат на плоские сущности
type Extractor struct{}

// NewExtractor создает экстрактор
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Patient извлекает сущности пациента в детерминированном порядке:
// пациент, анамнез, обследования, курсы (каждый с визитами и протоколами),
// счета, документы.
func (e *Extractor) Patient(p *patient.Patient) ([]entity.Extracted, error) {
	if p == nil {
		return nil, nil
	}

	b := builder{parentID: p.ID}
	b.add(entity.TypePatient, p.ID, entity.ShapePatient, p, patientOmit...)
	if p.Anamnesis != nil {
		b.add(entity.TypeAssessment, p.Anamnesis.ID, entity.ShapeAnamnesis, p.Anamnesis)
	}
	for i := range p.Findings {
		b.add(entity.TypeAssessment, p.Findings[i].ID, entity.ShapeFinding, &p.Findings[i])
	}
	for i := range p.Therapies {
		t := &p.Therapies[i]
		b.add(entity.TypeSession, t.ID, entity.ShapeTherapy, t, therapyNested...)
		for j := range t.Sessions {
			v := &t.Sessions[j]
			b.add(entity.TypeSession, v.ID, entity.ShapeVisit, v, visitNested...)
			if v.Documentation != nil {
				b.add(entity.TypeSession, v.Documentation.ID, entity.ShapeVisitDocumentation, v.Documentation)
			}
		}
	}
	for i := range p.Invoices {
		b.add(entity.TypeInvoice, p.Invoices[i].ID, entity.ShapeInvoice, &p.Invoices[i])
	}
	for i := range p.Documents {
		b.add(entity.TypeDocumentMeta, p.Documents[i].ID, entity.ShapeDocumentMeta, &p.Documents[i])
	}

	return b.out, b.err
}

// Schedule извлекает по одной сущности на окно расписания
func (e *Extractor) Schedule(s *patient.Schedule) ([]entity.Extracted, error) {
	if s == nil {
		return nil, nil
	}

	b := builder{parentID: s.ID}
	for i := range s.Slots {
		b.add(entity.TypeAvailability, s.Slots[i].ID, entity.ShapeAvailability, &s.Slots[i])
	}
	return b.out, b.err
}

type builder struct {
	parentID string
	out      []entity.Extracted
	err      error
}

func (b *builder) add(typ entity.Type, id string, shape entity.Shape, v any, strip ...string) {
	if b.err != nil {
		return
	}
	fields, err := entity.FieldsOf(v)
	if err != nil {
		b.err = fmt.Errorf("extract %s %s: %w", typ, id, err)
		return
	}
	for _, key := range strip {
		delete(fields, key)
	}
	fields[entity.ShapeTagKey] = string(shape)

	b.out = append(b.out, entity.Extracted{
		EntityType:   typ,
		EntityID:     id,
		ParentID:     b.parentID,
		DataCategory: typ.Category(),
		Fields:       fields,
	})
}
