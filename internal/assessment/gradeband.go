package assessment

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/skillscan/backend/internal/models"
)

// BandCutoff is one row of the grade-band calibration table: every ability
// below UpperBound (and at or above the previous row's bound) maps to Band.
// The last row's bound is ignored and catches everything above.
type BandCutoff struct {
	Band       models.GradeBand `json:"band"`
	UpperBound float64          `json:"upper_bound"`
}

// GradeBandTable maps ability estimates to grade bands. It is calibration
// data owned by the content service; the engine only requires that the
// cutoffs be strictly increasing.
type GradeBandTable struct {
	cutoffs []BandCutoff
}

// DefaultGradeBandTable is the built-in K-through-postdoctoral calibration
// on the logit ability scale.
func DefaultGradeBandTable() *GradeBandTable {
	t, err := NewGradeBandTable([]BandCutoff{
		{models.BandKindergarten, -2.4},
		{models.BandGrade1, -2.1},
		{models.BandGrade2, -1.8},
		{models.BandGrade3, -1.5},
		{models.BandGrade4, -1.2},
		{models.BandGrade5, -0.9},
		{models.BandGrade6, -0.6},
		{models.BandGrade7, -0.3},
		{models.BandGrade8, 0.0},
		{models.BandGrade9, 0.3},
		{models.BandGrade10, 0.6},
		{models.BandGrade11, 0.9},
		{models.BandGrade12, 1.2},
		{models.BandUndergraduate, 1.8},
		{models.BandGraduate, 2.4},
		{models.BandDoctoral, 2.7},
		{models.BandPostdoctoral, math.Inf(1)},
	})
	if err != nil {
		panic(err) // built-in table is static
	}
	return t
}

func NewGradeBandTable(cutoffs []BandCutoff) (*GradeBandTable, error) {
	if len(cutoffs) == 0 {
		return nil, fmt.Errorf("grade band table is empty")
	}
	for i := 1; i < len(cutoffs); i++ {
		if cutoffs[i].UpperBound <= cutoffs[i-1].UpperBound {
			return nil, fmt.Errorf("grade band table not monotonic at %q", cutoffs[i].Band)
		}
	}
	return &GradeBandTable{cutoffs: cutoffs}, nil
}

// LoadGradeBandTable reads a calibration table from a JSON file. An empty
// path yields the built-in default.
func LoadGradeBandTable(path string) (*GradeBandTable, error) {
	if path == "" {
		return DefaultGradeBandTable(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read grade band table: %w", err)
	}

	var cutoffs []BandCutoff
	if err := json.Unmarshal(data, &cutoffs); err != nil {
		return nil, fmt.Errorf("parse grade band table: %w", err)
	}
	return NewGradeBandTable(cutoffs)
}

// Lookup returns the band for an ability estimate.
func (t *GradeBandTable) Lookup(ability float64) models.GradeBand {
	idx := sort.Search(len(t.cutoffs)-1, func(i int) bool {
		return ability < t.cutoffs[i].UpperBound
	})
	return t.cutoffs[idx].Band
}

// Midpoint returns a representative ability for a band, used to seed the
// initial estimate when the caller names a target grade band. Open-ended
// bands fall back to half a band-width beyond their finite bound.
func (t *GradeBandTable) Midpoint(band models.GradeBand) (float64, bool) {
	for i, c := range t.cutoffs {
		if c.Band != band {
			continue
		}
		switch {
		case i == 0:
			return c.UpperBound - 0.15, true
		case i == len(t.cutoffs)-1:
			return t.cutoffs[i-1].UpperBound + 0.15, true
		default:
			return (t.cutoffs[i-1].UpperBound + c.UpperBound) / 2, true
		}
	}
	return 0, false
}
