package scheduler

import "github.com/noah-isme/sma-timetable-api/internal/models"

type slotKey struct {
	Day        int
	TimeSlotID string
}

type teacherDayKey struct {
	TeacherID string
	Day       int
}

type groupSubjectDayKey struct {
	Group     string
	SubjectID string
	Day       int
}

// ledger accumulates accepted lessons of one run, indexed by slot so each
// conflict check only sees the lessons sharing that slot.
type ledger struct {
	lessons         []models.Lesson
	bySlot          map[slotKey][]models.Lesson
	teacherDay      map[teacherDayKey]int
	groupSubjectDay map[groupSubjectDayKey]int
}

func newLedger() *ledger {
	return &ledger{
		bySlot:          make(map[slotKey][]models.Lesson),
		teacherDay:      make(map[teacherDayKey]int),
		groupSubjectDay: make(map[groupSubjectDayKey]int),
	}
}

func (l *ledger) add(lesson models.Lesson) {
	l.lessons = append(l.lessons, lesson)
	key := slotKey{Day: lesson.Day, TimeSlotID: lesson.TimeSlotID}
	l.bySlot[key] = append(l.bySlot[key], lesson)
	l.teacherDay[teacherDayKey{TeacherID: lesson.TeacherID, Day: lesson.Day}]++
	l.groupSubjectDay[groupSubjectDayKey{Group: groupKey(lesson.ClassID, lesson.BatchID), SubjectID: lesson.SubjectID, Day: lesson.Day}]++
}

func (l *ledger) atSlot(day int, timeSlotID string) []models.Lesson {
	return l.bySlot[slotKey{Day: day, TimeSlotID: timeSlotID}]
}

func (l *ledger) conflicts(candidate Candidate) Conflict {
	return DetectConflicts(candidate, l.atSlot(candidate.Day, candidate.TimeSlotID))
}

func (l *ledger) teacherLoad(teacherID string, day int) int {
	return l.teacherDay[teacherDayKey{TeacherID: teacherID, Day: day}]
}

func (l *ledger) subjectLoad(group, subjectID string, day int) int {
	return l.groupSubjectDay[groupSubjectDayKey{Group: group, SubjectID: subjectID, Day: day}]
}

// groupKey identifies the cohort a lesson belongs to: a class, or one batch of it.
func groupKey(classID string, batchID *string) string {
	if batchID == nil || *batchID == "" {
		return classID
	}
	return classID + "/" + *batchID
}
