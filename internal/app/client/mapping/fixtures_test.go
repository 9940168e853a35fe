package mapping

import (
	"time"

	"praxsync/internal/domain/patient"
)

func samplePatient() *patient.Patient {
	at := time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)
	return &patient.Patient{
		ID:        "p1",
		FirstName: "Anna",
		LastName:  "Schmidt",
		BirthDate: "1980-02-01",
		Gender:    "female",
		Contact:   patient.Contact{Phone: "+49 30 1234", City: "Berlin"},
		Insurance: patient.Insurance{Provider: "AOK", Number: "A123", Kind: "statutory"},
		UpdatedAt: at,
		Anamnesis: &patient.Anamnesis{ID: "a1", ChiefComplaint: "Knee pain", Allergies: "none", RecordedAt: at},
		Findings: []patient.Finding{
			{ID: "f1", TherapyID: "t1", Summary: "Reduced flexion", PainScale: 6, RecordedAt: at},
		},
		Therapies: []patient.Therapy{
			{
				ID:                 "t1",
				Title:              "Knee rehab",
				DiagnosisCode:      "M17.1",
				TreatmentTypeID:    "tt-kg",
				StartDate:          "2024-03-04",
				Status:             "active",
				PrescribedSessions: 6,
				Sessions: []patient.Visit{
					{
						ID:              "v1",
						TherapyID:       "t1",
						ScheduledAt:     at,
						DurationMinutes: 30,
						Status:          "done",
						Documentation: &patient.VisitDocumentation{
							ID: "d1", TherapyID: "t1", VisitID: "v1", Measures: "Mobilisation", WrittenAt: at,
						},
					},
					{ID: "v2", TherapyID: "t1", ScheduledAt: at.Add(48 * time.Hour), DurationMinutes: 30, Status: "planned"},
				},
			},
		},
		Invoices: []patient.Invoice{
			{
				ID:         "i1",
				Number:     "2024-0001",
				IssuedAt:   "2024-03-31",
				Status:     "open",
				Items:      []patient.InvoiceItem{{Description: "KG", Quantity: 1, UnitPriceCents: 2850}},
				TotalCents: 2850,
				VisitIDs:   []string{"v1"},
			},
		},
		Documents: []patient.DocumentMeta{
			{ID: "doc1", FileName: "referral.pdf", ContentType: "application/pdf", SizeBytes: 1024, AttachmentID: "att1", UploadedAt: at},
		},
	}
}
