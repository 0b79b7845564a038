package actions

import (
	"math/rand/v2"

	"github.com/tuannvm/ticket-actions/internal/models"
)

// Words is the catalog add-word picks from
var Words = []string{
	"Innovation",
	"Excellence",
	"Collaboration",
	"Creativity",
	"Resilience",
	"Productivity",
	"Growth",
	"Success",
	"Leadership",
	"Quality",
	"Efficiency",
	"Teamwork",
	"Vision",
	"Strategy",
	"Achievement",
}

// Priorities is the catalog change-priority picks from
var Priorities = []models.Priority{
	{Value: 1, Name: "Low"},
	{Value: 2, Name: "Medium"},
	{Value: 3, Name: "High"},
	{Value: 4, Name: "Urgent"},
}

// Picker returns a uniform int in [0, n)
type Picker interface {
	IntN(n int) int
}

type globalPicker struct{}

func (globalPicker) IntN(n int) int { return rand.IntN(n) }

func pickWord(p Picker) string {
	return Words[p.IntN(len(Words))]
}

func pickPriority(p Picker) models.Priority {
	return Priorities[p.IntN(len(Priorities))]
}
