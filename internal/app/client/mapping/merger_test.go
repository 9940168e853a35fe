package mapping

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"praxsync/internal/domain/entity"
	"praxsync/internal/domain/patient"
)

func TestMerger_RoundTrip(t *testing.T) {
	original := samplePatient()
	extracted, err := NewExtractor().Patient(original)
	require.NoError(t, err)

	merger := NewMerger(slog.Default())
	rebuilt := &patient.Patient{ID: original.ID, UpdatedAt: original.UpdatedAt}
	for _, e := range extracted {
		require.NoError(t, merger.MergePatient(rebuilt, e), e.EntityID)
	}

	assert.Equal(t, original, rebuilt)
}

func TestMerger_RoundTripReverseOrder(t *testing.T) {
	original := samplePatient()
	extracted, err := NewExtractor().Patient(original)
	require.NoError(t, err)

	merger := NewMerger(slog.Default())
	rebuilt := &patient.Patient{ID: original.ID}
	for i := len(extracted) - 1; i >= 0; i-- {
		require.NoError(t, merger.MergePatient(rebuilt, extracted[i]))
	}

	require.Len(t, rebuilt.Therapies, 1)
	therapy := rebuilt.Therapies[0]
	assert.Equal(t, "Knee rehab", therapy.Title)
	require.Len(t, therapy.Sessions, 2)
	v1 := therapy.Visit("v1")
	require.NotNil(t, v1)
	assert.Equal(t, 30, v1.DurationMinutes)
	require.NotNil(t, v1.Documentation)
	assert.Equal(t, "Mobilisation", v1.Documentation.Measures)
	assert.Equal(t, "Anna", rebuilt.FirstName)
}

func TestMerger_PatientKeepsCollections(t *testing.T) {
	p := samplePatient()
	savedAt := p.UpdatedAt
	merger := NewMerger(slog.Default())

	err := merger.MergePatient(p, entity.Extracted{
		EntityType: entity.TypePatient,
		EntityID:   "p1",
		Fields:     entity.Fields{entity.ShapeTagKey: "patient", "id": "p1", "firstName": "Anne", "lastName": "Schmidt"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Anne", p.FirstName)
	assert.Len(t, p.Therapies, 1)
	assert.NotNil(t, p.Anamnesis)
	assert.Len(t, p.Invoices, 1)
	assert.Equal(t, savedAt, p.UpdatedAt)
}

func TestMerger_UntaggedFallback(t *testing.T) {
	tests := []struct {
		name   string
		typ    entity.Type
		fields string
		check  func(t *testing.T, p *patient.Patient)
	}{
		{
			name:   "visit documentation",
			typ:    entity.TypeSession,
			fields: `{"id":"d9","therapyId":"t1","visitId":"v2","measures":"Heat"}`,
			check: func(t *testing.T, p *patient.Patient) {
				v := p.Therapy("t1").Visit("v2")
				require.NotNil(t, v.Documentation)
				assert.Equal(t, "Heat", v.Documentation.Measures)
			},
		},
		{
			name:   "visit",
			typ:    entity.TypeSession,
			fields: `{"id":"v3","therapyId":"t1","scheduledAt":"2024-03-10T10:00:00Z","durationMinutes":45,"status":"planned"}`,
			check: func(t *testing.T, p *patient.Patient) {
				v := p.Therapy("t1").Visit("v3")
				require.NotNil(t, v)
				assert.Equal(t, 45, v.DurationMinutes)
			},
		},
		{
			name:   "therapy",
			typ:    entity.TypeSession,
			fields: `{"id":"t2","title":"Shoulder","status":"active","prescribedSessions":10}`,
			check: func(t *testing.T, p *patient.Patient) {
				th := p.Therapy("t2")
				require.NotNil(t, th)
				assert.Equal(t, "Shoulder", th.Title)
			},
		},
		{
			name:   "anamnesis",
			typ:    entity.TypeAssessment,
			fields: `{"id":"a2","chiefComplaint":"Back pain","recordedAt":"2024-03-10T10:00:00Z"}`,
			check: func(t *testing.T, p *patient.Patient) {
				assert.Equal(t, "Back pain", p.Anamnesis.ChiefComplaint)
			},
		},
		{
			name:   "finding",
			typ:    entity.TypeAssessment,
			fields: `{"id":"f2","summary":"Improved","painScale":3,"recordedAt":"2024-03-10T10:00:00Z"}`,
			check: func(t *testing.T, p *patient.Patient) {
				require.Len(t, p.Findings, 2)
				assert.Equal(t, 3, p.Findings[1].PainScale)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var id struct {
				ID string `json:"id"`
			}
			require.NoError(t, json.Unmarshal([]byte(tt.fields), &id))
			fields, err := entity.DecodeFields([]byte(tt.fields))
			require.NoError(t, err)

			p := samplePatient()
			err = NewMerger(slog.Default()).MergePatient(p, entity.Extracted{
				EntityType: tt.typ,
				EntityID:   id.ID,
				ParentID:   "p1",
				Fields:     fields,
			})
			require.NoError(t, err)
			tt.check(t, p)
		})
	}
}

func TestMerger_Undecodable(t *testing.T) {
	tests := []struct {
		name string
		e    entity.Extracted
	}{
		{
			name: "unknown entity type",
			e:    entity.Extracted{EntityType: "bogus", EntityID: "x", Fields: entity.Fields{}},
		},
		{
			name: "tag not valid for type",
			e:    entity.Extracted{EntityType: entity.TypeSession, EntityID: "x", Fields: entity.Fields{entity.ShapeTagKey: "invoice"}},
		},
		{
			name: "untagged with unknown fields",
			e:    entity.Extracted{EntityType: entity.TypeSession, EntityID: "x", Fields: entity.Fields{"id": "x", "colour": "red"}},
		},
		{
			name: "visit without therapy",
			e:    entity.Extracted{EntityType: entity.TypeSession, EntityID: "x", Fields: entity.Fields{entity.ShapeTagKey: "visit", "id": "x"}},
		},
		{
			name: "id mismatch",
			e:    entity.Extracted{EntityType: entity.TypeInvoice, EntityID: "x", Fields: entity.Fields{entity.ShapeTagKey: "invoice", "id": "y"}},
		},
		{
			name: "wrong field type",
			e:    entity.Extracted{EntityType: entity.TypeInvoice, EntityID: "x", Fields: entity.Fields{entity.ShapeTagKey: "invoice", "totalCents": "lots"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := samplePatient()
			before := p.Clone()

			err := NewMerger(slog.Default()).MergePatient(p, tt.e)
			assert.ErrorIs(t, err, ErrUndecodable)
			assert.Equal(t, before, p)
		})
	}
}

func TestMerger_NewPatient(t *testing.T) {
	extracted, err := NewExtractor().Patient(samplePatient())
	require.NoError(t, err)

	merger := NewMerger(slog.Default())
	p, err := merger.NewPatient(extracted[0])
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, "Anna", p.FirstName)
	assert.Empty(t, p.Therapies)

	_, err = merger.NewPatient(extracted[1])
	assert.ErrorIs(t, err, ErrUndecodable)
}

func TestMerger_VisitMovedBetweenTherapies(t *testing.T) {
	p := samplePatient()
	p.Therapies = append(p.Therapies, patient.Therapy{ID: "t2", Title: "Follow-up"})

	err := NewMerger(slog.Default()).MergePatient(p, entity.Extracted{
		EntityType: entity.TypeSession,
		EntityID:   "v1",
		Fields:     entity.Fields{entity.ShapeTagKey: "visit", "id": "v1", "therapyId": "t2", "status": "done"},
	})
	require.NoError(t, err)

	assert.Nil(t, p.Therapy("t1").Visit("v1"))
	moved := p.Therapy("t2").Visit("v1")
	require.NotNil(t, moved)
	assert.NotNil(t, moved.Documentation)
}

func TestMerger_Schedule(t *testing.T) {
	s := &patient.Schedule{ID: "default", Slots: []patient.Slot{{ID: "s1", Weekday: 1}}}
	merger := NewMerger(slog.Default())

	require.NoError(t, merger.MergeSchedule(s, entity.Extracted{
		EntityType: entity.TypeAvailability,
		EntityID:   "s1",
		Fields:     entity.Fields{entity.ShapeTagKey: "availability", "id": "s1", "weekday": 2},
	}))
	require.NoError(t, merger.MergeSchedule(s, entity.Extracted{
		EntityType: entity.TypeAvailability,
		EntityID:   "s2",
		Fields:     entity.Fields{"id": "s2", "weekday": 4, "start": "08:00", "end": "10:00", "active": true},
	}))

	require.Len(t, s.Slots, 2)
	assert.Equal(t, 2, s.Slots[0].Weekday)
	assert.True(t, s.Slots[1].Active)

	err := merger.MergeSchedule(s, entity.Extracted{EntityType: entity.TypeInvoice, EntityID: "i1", Fields: entity.Fields{"id": "i1"}})
	assert.ErrorIs(t, err, ErrUndecodable)
}
