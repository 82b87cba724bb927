package scheduler

import (
	"sort"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// FindClassroom picks a free room compatible with the subject at (day, slot).
// Lab subjects need a lab room; other subjects accept any room. Preferred rooms
// come first in their listed order, then the smallest capacity. Nil means no room.
func FindClassroom(subject models.Subject, day int, timeSlotID string, existing []models.Lesson, classrooms []models.Classroom) *models.Classroom {
	preferred := make(map[string]int, len(subject.PreferredClassroomIDs))
	for idx, id := range subject.PreferredClassroomIDs {
		if _, seen := preferred[id]; !seen {
			preferred[id] = idx
		}
	}

	candidates := make([]models.Classroom, 0, len(classrooms))
	for _, room := range classrooms {
		if subject.IsLab && !room.IsLab {
			continue
		}
		roomID := room.ID
		probe := Candidate{Day: day, TimeSlotID: timeSlotID, ClassroomID: &roomID}
		if DetectConflicts(probe, existing).Classroom {
			continue
		}
		candidates = append(candidates, room)
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		ri, iPreferred := preferred[candidates[i].ID]
		rj, jPreferred := preferred[candidates[j].ID]
		if iPreferred != jPreferred {
			return iPreferred
		}
		if iPreferred {
			return ri < rj
		}
		if candidates[i].Capacity != candidates[j].Capacity {
			return candidates[i].Capacity < candidates[j].Capacity
		}
		if candidates[i].Name != candidates[j].Name {
			return candidates[i].Name < candidates[j].Name
		}
		return candidates[i].ID < candidates[j].ID
	})

	room := candidates[0]
	return &room
}
