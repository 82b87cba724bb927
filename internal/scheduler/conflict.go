package scheduler

import "github.com/noah-isme/sma-timetable-api/internal/models"

// Conflict dimensions reported by CollectConflicts.
const (
	DimensionTeacher   = "TEACHER"
	DimensionClass     = "CLASS"
	DimensionClassroom = "CLASSROOM"
)

// Candidate is a proposed placement checked against already accepted lessons.
type Candidate struct {
	Day         int
	TimeSlotID  string
	TeacherID   string
	ClassID     string
	ClassroomID *string
	BatchID     *string
}

// Conflict reports each hard constraint independently so callers can pick a fallback.
type Conflict struct {
	Teacher   bool
	Class     bool
	Classroom bool
}

// Any reports whether at least one dimension conflicts.
func (c Conflict) Any() bool {
	return c.Teacher || c.Class || c.Classroom
}

// CandidateFromLesson builds the candidate a lesson would occupy.
func CandidateFromLesson(lesson models.Lesson) Candidate {
	return Candidate{
		Day:         lesson.Day,
		TimeSlotID:  lesson.TimeSlotID,
		TeacherID:   lesson.TeacherID,
		ClassID:     lesson.ClassID,
		ClassroomID: lesson.ClassroomID,
		BatchID:     lesson.BatchID,
	}
}

// DetectConflicts checks the candidate against lessons sharing its (day, time slot).
// Identity is compared by id value only.
func DetectConflicts(candidate Candidate, existing []models.Lesson) Conflict {
	var result Conflict
	for _, lesson := range existing {
		if lesson.Day != candidate.Day || lesson.TimeSlotID != candidate.TimeSlotID {
			continue
		}
		if candidate.TeacherID != "" && lesson.TeacherID == candidate.TeacherID {
			result.Teacher = true
		}
		if candidate.ClassID != "" && lesson.ClassID == candidate.ClassID && !parallelBatches(lesson.BatchID, candidate.BatchID) {
			result.Class = true
		}
		if roomSet(candidate.ClassroomID) && roomSet(lesson.ClassroomID) && *lesson.ClassroomID == *candidate.ClassroomID {
			result.Classroom = true
		}
	}
	return result
}

// CollectConflicts lists every lesson blocking the candidate, one entry per dimension.
func CollectConflicts(candidate Candidate, existing []models.Lesson) []models.LessonConflict {
	var conflicts []models.LessonConflict
	for _, lesson := range existing {
		found := DetectConflicts(candidate, []models.Lesson{lesson})
		if found.Class {
			conflicts = append(conflicts, lessonConflict(lesson, DimensionClass))
		}
		if found.Teacher {
			conflicts = append(conflicts, lessonConflict(lesson, DimensionTeacher))
		}
		if found.Classroom {
			conflicts = append(conflicts, lessonConflict(lesson, DimensionClassroom))
		}
	}
	return conflicts
}

func lessonConflict(lesson models.Lesson, dimension string) models.LessonConflict {
	return models.LessonConflict{
		LessonID:    lesson.ID,
		Day:         lesson.Day,
		TimeSlotID:  lesson.TimeSlotID,
		ClassID:     lesson.ClassID,
		TeacherID:   lesson.TeacherID,
		ClassroomID: lesson.ClassroomID,
		Dimension:   dimension,
	}
}

// Two lab batches of the same class may share a slot; a class-wide lesson blocks every batch.
func parallelBatches(a, b *string) bool {
	if a == nil || b == nil || *a == "" || *b == "" {
		return false
	}
	return *a != *b
}

func roomSet(id *string) bool {
	return id != nil && *id != ""
}
