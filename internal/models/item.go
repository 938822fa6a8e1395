package models

import "time"

type ItemType string

const (
	ItemMultipleChoice ItemType = "multiple_choice"
	ItemFreeResponse   ItemType = "free_response"
)

type GradeBand string

const (
	BandKindergarten  GradeBand = "kindergarten"
	BandGrade1        GradeBand = "grade_1"
	BandGrade2        GradeBand = "grade_2"
	BandGrade3        GradeBand = "grade_3"
	BandGrade4        GradeBand = "grade_4"
	BandGrade5        GradeBand = "grade_5"
	BandGrade6        GradeBand = "grade_6"
	BandGrade7        GradeBand = "grade_7"
	BandGrade8        GradeBand = "grade_8"
	BandGrade9        GradeBand = "grade_9"
	BandGrade10       GradeBand = "grade_10"
	BandGrade11       GradeBand = "grade_11"
	BandGrade12       GradeBand = "grade_12"
	BandUndergraduate GradeBand = "undergraduate"
	BandGraduate      GradeBand = "graduate"
	BandDoctoral      GradeBand = "doctoral"
	BandPostdoctoral  GradeBand = "postdoctoral"
)

var ValidGradeBands = map[GradeBand]bool{
	BandKindergarten:  true,
	BandGrade1:        true,
	BandGrade2:        true,
	BandGrade3:        true,
	BandGrade4:        true,
	BandGrade5:        true,
	BandGrade6:        true,
	BandGrade7:        true,
	BandGrade8:        true,
	BandGrade9:        true,
	BandGrade10:       true,
	BandGrade11:       true,
	BandGrade12:       true,
	BandUndergraduate: true,
	BandGraduate:      true,
	BandDoctoral:      true,
	BandPostdoctoral:  true,
}

// ── Core Structs ───────────────────────────────────────

// Item is a calibrated question. Items are created by the content service
// (via the import endpoint) and never mutated by the engine.
type Item struct {
	ID                   int64     `json:"id"`
	Subject              string    `json:"subject"`
	GradeBand            GradeBand `json:"grade_band"`
	Difficulty           float64   `json:"difficulty"`
	Type                 ItemType  `json:"type"`
	Prompt               string    `json:"prompt"`
	Options              []string  `json:"options,omitempty"`
	CorrectAnswer        string    `json:"correct_answer"`
	AnswerPattern        *string   `json:"answer_pattern,omitempty"`
	EstimatedTimeSeconds int       `json:"estimated_time_seconds"`
	CreatedAt            time.Time `json:"created_at"`
}

// PresentedItem is the answer-free view of an Item served to test takers.
type PresentedItem struct {
	ID                   int64     `json:"id"`
	Subject              string    `json:"subject"`
	GradeBand            GradeBand `json:"grade_band"`
	Type                 ItemType  `json:"type"`
	Prompt               string    `json:"prompt"`
	Options              []string  `json:"options,omitempty"`
	EstimatedTimeSeconds int       `json:"estimated_time_seconds"`
}

func (i Item) Presented() PresentedItem {
	return PresentedItem{
		ID:                   i.ID,
		Subject:              i.Subject,
		GradeBand:            i.GradeBand,
		Type:                 i.Type,
		Prompt:               i.Prompt,
		Options:              i.Options,
		EstimatedTimeSeconds: i.EstimatedTimeSeconds,
	}
}

// ── Import/Export Envelope ──────────────────────────────

type ImportItem struct {
	Subject              string    `json:"subject"`
	GradeBand            GradeBand `json:"grade_band"`
	Difficulty           float64   `json:"difficulty"`
	Type                 ItemType  `json:"type"`
	Prompt               string    `json:"prompt"`
	Options              []string  `json:"options,omitempty"`
	CorrectAnswer        string    `json:"correct_answer"`
	AnswerPattern        *string   `json:"answer_pattern,omitempty"`
	EstimatedTimeSeconds int       `json:"estimated_time_seconds"`
}

type ItemEnvelope struct {
	Version    int          `json:"version"`
	ExportedAt time.Time    `json:"exported_at"`
	Items      []ImportItem `json:"items"`
}

type ImportResult struct {
	TotalInPayload int `json:"total_in_payload"`
	Imported       int `json:"imported"`
	Skipped        int `json:"skipped"`
}
