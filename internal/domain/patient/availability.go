package patient

import "time"

// Schedule агрегат доступности терапевта: набор временных окон
type Schedule struct {
	ID        string    `json:"id"`
	Slots     []Slot    `json:"slots,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Slot повторяющееся окно приема
type Slot struct {
	ID        string `json:"id"`
	Weekday   int    `json:"weekday"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Location  string `json:"location,omitempty"`
	ValidFrom string `json:"validFrom,omitempty"`
	ValidTo   string `json:"validTo,omitempty"`
	Active    bool   `json:"active"`
}

// Clone делает глубокую копию расписания
func (s *Schedule) Clone() *Schedule {
	if s == nil {
		return nil
	}
	c := *s
	c.Slots = cloneSlice(s.Slots)
	return &c
}
