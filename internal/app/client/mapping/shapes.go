package mapping

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"praxsync/internal/domain/entity"
	"praxsync/internal/domain/patient"
)

var errMissingRequired = errors.New("required field is empty")

// shapeOrder порядок строгого разбора для записей без тега формы.
// Более специфичные формы идут первыми.
var shapeOrder = map[entity.Type][]entity.Shape{
	entity.TypePatient:      {entity.ShapePatient},
	entity.TypeSession:      {entity.ShapeVisitDocumentation, entity.ShapeVisit, entity.ShapeTherapy},
	entity.TypeAssessment:   {entity.ShapeAnamnesis, entity.ShapeFinding},
	entity.TypeInvoice:      {entity.ShapeInvoice},
	entity.TypeDocumentMeta: {entity.ShapeDocumentMeta},
	entity.TypeAvailability: {entity.ShapeAvailability},
}

type shapeDecoder func(f entity.Fields, strict bool) (any, error)

var decoders = map[entity.Shape]shapeDecoder{
	entity.ShapePatient:   decoder(func(*patient.Patient) bool { return true }),
	entity.ShapeAnamnesis: decoder(func(*patient.Anamnesis) bool { return true }),
	entity.ShapeFinding:   decoder(func(*patient.Finding) bool { return true }),
	entity.ShapeTherapy:   decoder(func(*patient.Therapy) bool { return true }),
	entity.ShapeVisit: decoder(func(v *patient.Visit) bool {
		return v.TherapyID != ""
	}),
	entity.ShapeVisitDocumentation: decoder(func(d *patient.VisitDocumentation) bool {
		return d.TherapyID != "" && d.VisitID != ""
	}),
	entity.ShapeInvoice:      decoder(func(*patient.Invoice) bool { return true }),
	entity.ShapeDocumentMeta: decoder(func(*patient.DocumentMeta) bool { return true }),
	entity.ShapeAvailability: decoder(func(*patient.Slot) bool { return true }),
}

func decoder[T any](valid func(*T) bool) shapeDecoder {
	return func(f entity.Fields, strict bool) (any, error) {
		var v T
		if err := decodeFields(f, &v, strict); err != nil {
			return nil, err
		}
		if !valid(&v) {
			return nil, errMissingRequired
		}
		return &v, nil
	}
}

func decodeFields(f entity.Fields, v any, strict bool) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	if strict {
		dec.DisallowUnknownFields()
	}
	return dec.Decode(v)
}

// resolve выбирает форму записи: по явному тегу, а без тега
// строгим разбором кандидатов в фиксированном порядке
func resolve(e entity.Extracted) (entity.Shape, any, error) {
	candidates, ok := shapeOrder[e.EntityType]
	if !ok {
		return "", nil, fmt.Errorf("%w: unsupported entity type %q", ErrUndecodable, e.EntityType)
	}

	if tag, ok := e.Fields.Shape(); ok {
		if !slices.Contains(candidates, tag) {
			return "", nil, fmt.Errorf("%w: shape %q is not valid for %s", ErrUndecodable, tag, e.EntityType)
		}
		v, err := decoders[tag](e.Fields.WithoutShape(), false)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %s %s as %s: %v", ErrUndecodable, e.EntityType, e.EntityID, tag, err)
		}
		return tag, v, nil
	}

	for _, shape := range candidates {
		v, err := decoders[shape](e.Fields, true)
		if err == nil {
			return shape, v, nil
		}
	}
	return "", nil, fmt.Errorf("%w: %s %s", ErrUndecodable, e.EntityType, e.EntityID)
}
