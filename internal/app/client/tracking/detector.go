package tracking

import (
	"fmt"

	"praxsync/internal/app/client/mapping"
	"praxsync/internal/domain/entity"
	"praxsync/internal/domain/patient"
)

// Change изменившаяся сущность с операцией для отправки
type Change struct {
	entity.Extracted
	Operation entity.Operation
}

// OperationResolver определяет операцию по истории синхронизации
type OperationResolver interface {
	Operation(entityID string) entity.Operation
}

// ChangeDetector находит минимальный набор изменившихся сущностей
// между двумя состояниями агрегата
type ChangeDetector struct {
	extractor *mapping.Extractor
	ops       OperationResolver
}

// NewChangeDetector создает детектор
func NewChangeDetector(extractor *mapping.Extractor, ops OperationResolver) *ChangeDetector {
	return &ChangeDetector{extractor: extractor, ops: ops}
}

// DetectPatient сравнивает два состояния пациента. previous может быть nil.
func (d *ChangeDetector) DetectPatient(previous, current *patient.Patient) ([]Change, error) {
	if current == nil {
		return nil, nil
	}
	prev, err := d.extractor.Patient(previous)
	if err != nil {
		return nil, err
	}
	cur, err := d.extractor.Patient(current)
	if err != nil {
		return nil, err
	}
	return d.DetectEntities(prev, cur)
}

// DetectSchedule сравнивает два состояния расписания
func (d *ChangeDetector) DetectSchedule(previous, current *patient.Schedule) ([]Change, error) {
	if current == nil {
		return nil, nil
	}
	prev, err := d.extractor.Schedule(previous)
	if err != nil {
		return nil, err
	}
	cur, err := d.extractor.Schedule(current)
	if err != nil {
		return nil, err
	}
	return d.DetectEntities(prev, cur)
}

// DetectEntities возвращает сущности, которые появились или изменились.
// Исчезнувшие сущности не возвращаются: удаление не синхронизируется.
func (d *ChangeDetector) DetectEntities(previous, current []entity.Extracted) ([]Change, error) {
	before := make(map[string]entity.Extracted, len(previous))
	for _, e := range previous {
		before[e.EntityID] = e
	}

	var changes []Change
	for _, e := range current {
		if old, ok := before[e.EntityID]; ok {
			same, err := entity.Equal(old.Fields, e.Fields)
			if err != nil {
				return nil, fmt.Errorf("compare %s %s: %w", e.EntityType, e.EntityID, err)
			}
			if same {
				continue
			}
		}
		changes = append(changes, Change{Extracted: e, Operation: d.ops.Operation(e.EntityID)})
	}
	return changes, nil
}
