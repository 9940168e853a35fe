package patient

import "time"

// Patient локальный агрегат пациента со всеми вложенными записями
type Patient struct {
	ID        string    `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	BirthDate string    `json:"birthDate,omitempty"`
	Gender    string    `json:"gender,omitempty"`
	Contact   Contact   `json:"contact"`
	Insurance Insurance `json:"insurance"`
	Notes     string    `json:"notes,omitempty"`
	Archived  bool      `json:"archived"`
	UpdatedAt time.Time `json:"updatedAt"`

	Anamnesis *Anamnesis     `json:"anamnesis,omitempty"`
	Findings  []Finding      `json:"findings,omitempty"`
	Therapies []Therapy      `json:"therapies,omitempty"`
	Invoices  []Invoice      `json:"invoices,omitempty"`
	Documents []DocumentMeta `json:"documents,omitempty"`
}

type Contact struct {
	Phone      string `json:"phone,omitempty"`
	Email      string `json:"email,omitempty"`
	Street     string `json:"street,omitempty"`
	City       string `json:"city,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
}

type Insurance struct {
	Provider string `json:"provider,omitempty"`
	Number   string `json:"number,omitempty"`
	Kind     string `json:"kind,omitempty"`
}

// Anamnesis первичный сбор анамнеза, не более одного на пациента
type Anamnesis struct {
	ID             string    `json:"id"`
	ChiefComplaint string    `json:"chiefComplaint"`
	History        string    `json:"history,omitempty"`
	Medication     string    `json:"medication,omitempty"`
	Allergies      string    `json:"allergies,omitempty"`
	RecordedAt     time.Time `json:"recordedAt"`
}

// Finding результат обследования
type Finding struct {
	ID            string    `json:"id"`
	TherapyID     string    `json:"therapyId,omitempty"`
	Summary       string    `json:"summary"`
	RangeOfMotion string    `json:"rangeOfMotion,omitempty"`
	PainScale     int       `json:"painScale"`
	RecordedAt    time.Time `json:"recordedAt"`
}

// Therapy курс лечения с запланированными визитами
type Therapy struct {
	ID                 string  `json:"id"`
	Title              string  `json:"title"`
	DiagnosisCode      string  `json:"diagnosisCode,omitempty"`
	TreatmentTypeID    string  `json:"treatmentTypeId,omitempty"`
	StartDate          string  `json:"startDate,omitempty"`
	EndDate            string  `json:"endDate,omitempty"`
	Status             string  `json:"status"`
	PrescribedSessions int     `json:"prescribedSessions"`
	Sessions           []Visit `json:"sessions,omitempty"`
}

// Visit отдельный визит в рамках курса
type Visit struct {
	ID              string              `json:"id"`
	TherapyID       string              `json:"therapyId"`
	ScheduledAt     time.Time           `json:"scheduledAt"`
	DurationMinutes int                 `json:"durationMinutes"`
	Status          string              `json:"status"`
	Documentation   *VisitDocumentation `json:"documentation,omitempty"`
}

// VisitDocumentation протокол проведенного визита
type VisitDocumentation struct {
	ID        string    `json:"id"`
	TherapyID string    `json:"therapyId"`
	VisitID   string    `json:"visitId"`
	Findings  string    `json:"findings,omitempty"`
	Measures  string    `json:"measures,omitempty"`
	NextSteps string    `json:"nextSteps,omitempty"`
	WrittenAt time.Time `json:"writtenAt"`
}

type Invoice struct {
	ID         string        `json:"id"`
	Number     string        `json:"number"`
	IssuedAt   string        `json:"issuedAt"`
	DueAt      string        `json:"dueAt,omitempty"`
	Status     string        `json:"status"`
	Items      []InvoiceItem `json:"items"`
	TotalCents int64         `json:"totalCents"`
	VisitIDs   []string      `json:"visitIds,omitempty"`
}

type InvoiceItem struct {
	Description    string `json:"description"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unitPriceCents"`
}

// DocumentMeta метаданные вложенного документа; сам файл передается отдельно
type DocumentMeta struct {
	ID           string    `json:"id"`
	FileName     string    `json:"fileName"`
	ContentType  string    `json:"contentType,omitempty"`
	SizeBytes    int64     `json:"sizeBytes"`
	Checksum     string    `json:"checksum,omitempty"`
	AttachmentID string    `json:"attachmentId,omitempty"`
	UploadedAt   time.Time `json:"uploadedAt"`
}

// Therapy возвращает курс по идентификатору
func (p *Patient) Therapy(id string) *Therapy {
	for i := range p.Therapies {
		if p.Therapies[i].ID == id {
			return &p.Therapies[i]
		}
	}
	return nil
}

// Visit возвращает визит курса по идентификатору
func (t *Therapy) Visit(id string) *Visit {
	for i := range t.Sessions {
		if t.Sessions[i].ID == id {
			return &t.Sessions[i]
		}
	}
	return nil
}

// Clone делает глубокую копию агрегата
func (p *Patient) Clone() *Patient {
	if p == nil {
		return nil
	}
	c := *p
	if p.Anamnesis != nil {
		a := *p.Anamnesis
		c.Anamnesis = &a
	}
	c.Findings = cloneSlice(p.Findings)
	c.Documents = cloneSlice(p.Documents)
	if p.Invoices != nil {
		c.Invoices = make([]Invoice, len(p.Invoices))
		for i, inv := range p.Invoices {
			inv.Items = cloneSlice(inv.Items)
			inv.VisitIDs = cloneSlice(inv.VisitIDs)
			c.Invoices[i] = inv
		}
	}
	if p.Therapies != nil {
		c.Therapies = make([]Therapy, len(p.Therapies))
		for i, t := range p.Therapies {
			if t.Sessions != nil {
				sessions := make([]Visit, len(t.Sessions))
				for j, v := range t.Sessions {
					if v.Documentation != nil {
						d := *v.Documentation
						v.Documentation = &d
					}
					sessions[j] = v
				}
				t.Sessions = sessions
			}
			c.Therapies[i] = t
		}
	}
	return &c
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}
