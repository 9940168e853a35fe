package mapping

import (
	"errors"
	"fmt"

	"golang.org/x/exp/slog"

	"praxsync/internal/domain/entity"
	"praxsync/internal/domain/patient"
)

// Merger встраивает полученные с сервера сущности обратно во вложенные агрегаты
type Merger struct {
	log *slog.Logger
}

// NewMerger создает мерджер
func NewMerger(log *slog.Logger) *Merger {
	return &Merger{log: log.With(slog.String("component", "entity_merger"))}
}

// NewPatient строит новый агрегат из полных полей сущности пациента
func (m *Merger) NewPatient(e entity.Extracted) (*patient.Patient, error) {
	if e.EntityType != entity.TypePatient {
		return nil, fmt.Errorf("%w: %s %s is not a patient", ErrUndecodable, e.EntityType, e.EntityID)
	}
	_, v, err := resolve(e)
	if err != nil {
		return nil, err
	}
	p := v.(*patient.Patient)
	if err := ensureID(&p.ID, e.EntityID); err != nil {
		return nil, err
	}
	p.Anamnesis, p.Findings, p.Therapies, p.Invoices, p.Documents = nil, nil, nil, nil, nil
	return p, nil
}

// MergePatient встраивает сущность в агрегат пациента. Ошибка, обернутая
// в ErrUndecodable, означает, что запись не удалось разобрать и агрегат
// не изменился.
func (m *Merger) MergePatient(p *patient.Patient, e entity.Extracted) error {
	if p == nil {
		return errors.New("nil patient")
	}
	shape, v, err := resolve(e)
	if err != nil {
		return err
	}

	switch val := v.(type) {
	case *patient.Patient:
		if err := ensureID(&val.ID, e.EntityID); err != nil {
			return err
		}
		if val.ID != p.ID {
			return fmt.Errorf("%w: patient %s cannot be merged into %s", ErrUndecodable, val.ID, p.ID)
		}
		val.Anamnesis, val.Findings, val.Therapies, val.Invoices, val.Documents =
			p.Anamnesis, p.Findings, p.Therapies, p.Invoices, p.Documents
		val.UpdatedAt = p.UpdatedAt
		*p = *val

	case *patient.Anamnesis:
		if err := ensureID(&val.ID, e.EntityID); err != nil {
			return err
		}
		p.Anamnesis = val

	case *patient.Finding:
		if err := ensureID(&val.ID, e.EntityID); err != nil {
			return err
		}
		p.Findings = upsert(p.Findings, *val, func(f *patient.Finding) string { return f.ID })

	case *patient.Therapy:
		if err := ensureID(&val.ID, e.EntityID); err != nil {
			return err
		}
		if existing := p.Therapy(val.ID); existing != nil {
			val.Sessions = existing.Sessions
			*existing = *val
		} else {
			val.Sessions = nil
			p.Therapies = append(p.Therapies, *val)
		}

	case *patient.Visit:
		if err := ensureID(&val.ID, e.EntityID); err != nil {
			return err
		}
		mergeVisit(p, val)

	case *patient.VisitDocumentation:
		if err := ensureID(&val.ID, e.EntityID); err != nil {
			return err
		}
		t := ensureTherapy(p, val.TherapyID)
		visit := t.Visit(val.VisitID)
		if visit == nil {
			t.Sessions = append(t.Sessions, patient.Visit{ID: val.VisitID, TherapyID: val.TherapyID})
			visit = &t.Sessions[len(t.Sessions)-1]
		}
		visit.Documentation = val

	case *patient.Invoice:
		if err := ensureID(&val.ID, e.EntityID); err != nil {
			return err
		}
		p.Invoices = upsert(p.Invoices, *val, func(i *patient.Invoice) string { return i.ID })

	case *patient.DocumentMeta:
		if err := ensureID(&val.ID, e.EntityID); err != nil {
			return err
		}
		p.Documents = upsert(p.Documents, *val, func(d *patient.DocumentMeta) string { return d.ID })

	default:
		return fmt.Errorf("%w: shape %s does not belong to a patient", ErrUndecodable, shape)
	}

	m.log.Debug("entity merged",
		slog.String("patient_id", p.ID),
		slog.String("entity_id", e.EntityID),
		slog.String("shape", string(shape)),
	)
	return nil
}

// MergeSchedule встраивает окно доступности в расписание
func (m *Merger) MergeSchedule(s *patient.Schedule, e entity.Extracted) error {
	if s == nil {
		return errors.New("nil schedule")
	}
	shape, v, err := resolve(e)
	if err != nil {
		return err
	}
	slot, ok := v.(*patient.Slot)
	if !ok {
		return fmt.Errorf("%w: shape %s does not belong to a schedule", ErrUndecodable, shape)
	}
	if err := ensureID(&slot.ID, e.EntityID); err != nil {
		return err
	}
	s.Slots = upsert(s.Slots, *slot, func(sl *patient.Slot) string { return sl.ID })
	return nil
}

// mergeVisit заменяет визит, сохраняя его протокол. Если визит
// перенесен в другой курс, он удаляется из прежнего.
func mergeVisit(p *patient.Patient, v *patient.Visit) {
	for i := range p.Therapies {
		t := &p.Therapies[i]
		for j := range t.Sessions {
			if t.Sessions[j].ID != v.ID {
				continue
			}
			v.Documentation = t.Sessions[j].Documentation
			if t.ID == v.TherapyID {
				t.Sessions[j] = *v
				return
			}
			t.Sessions = append(t.Sessions[:j], t.Sessions[j+1:]...)
			break
		}
	}
	t := ensureTherapy(p, v.TherapyID)
	t.Sessions = append(t.Sessions, *v)
}

// ensureTherapy возвращает курс, создавая заготовку, если курс еще не пришел
func ensureTherapy(p *patient.Patient, id string) *patient.Therapy {
	if t := p.Therapy(id); t != nil {
		return t
	}
	p.Therapies = append(p.Therapies, patient.Therapy{ID: id})
	return &p.Therapies[len(p.Therapies)-1]
}

func upsert[T any](list []T, v T, idOf func(*T) string) []T {
	id := idOf(&v)
	for i := range list {
		if idOf(&list[i]) == id {
			list[i] = v
			return list
		}
	}
	return append(list, v)
}

func ensureID(id *string, entityID string) error {
	if *id == "" {
		*id = entityID
		return nil
	}
	if *id != entityID {
		return fmt.Errorf("%w: field id %q differs from entity id %q", ErrUndecodable, *id, entityID)
	}
	return nil
}
