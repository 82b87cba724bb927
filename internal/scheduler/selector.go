package scheduler

import (
	"math/rand"
	"time"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// Selector proposes randomized search orders so early days, slots and teachers
// are not systematically favoured.
type Selector struct {
	rng *rand.Rand
}

// NewSelector seeds the selector; a zero seed uses the clock.
func NewSelector(seed int64) *Selector {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Selector{rng: rand.New(rand.NewSource(seed))}
}

// Days returns a shuffled copy of the working days.
func (s *Selector) Days(days []int) []int {
	return shuffle(s.rng, days)
}

// Slots returns a shuffled copy of the non-break slots.
func (s *Selector) Slots(slots []models.TimeSlot) []models.TimeSlot {
	return shuffle(s.rng, TeachingSlots(slots))
}

// Teachers returns a shuffled copy of the teachers.
func (s *Selector) Teachers(teachers []models.Teacher) []models.Teacher {
	return shuffle(s.rng, teachers)
}

// EligibleTeachers keeps the teachers qualified for the subject.
func EligibleTeachers(subjectID string, teachers []models.Teacher) []models.Teacher {
	var eligible []models.Teacher
	for _, teacher := range teachers {
		if teacher.Teaches(subjectID) {
			eligible = append(eligible, teacher)
		}
	}
	return eligible
}

// TeachingSlots drops break slots, keeping input order.
func TeachingSlots(slots []models.TimeSlot) []models.TimeSlot {
	result := make([]models.TimeSlot, 0, len(slots))
	for _, slot := range slots {
		if slot.IsBreak {
			continue
		}
		result = append(result, slot)
	}
	return result
}

// Fisher-Yates over a copy; the caller's slice is never reordered.
func shuffle[T any](rng *rand.Rand, items []T) []T {
	out := make([]T, len(items))
	copy(out, items)
	for i := len(out) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}
