package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

func strPtr(v string) *string { return &v }

func TestDetectConflicts(t *testing.T) {
	existing := []models.Lesson{
		{ID: "l1", Day: 0, TimeSlotID: "s1", ClassID: "c1", TeacherID: "t1", ClassroomID: strPtr("r1")},
		{ID: "l2", Day: 0, TimeSlotID: "s2", ClassID: "c2", TeacherID: "t2"},
		{ID: "l3", Day: 1, TimeSlotID: "s1", ClassID: "c3", TeacherID: "t3", ClassroomID: strPtr("r3")},
	}

	tests := []struct {
		name      string
		candidate Candidate
		expected  Conflict
	}{
		{
			name:      "free slot",
			candidate: Candidate{Day: 2, TimeSlotID: "s1", ClassID: "c1", TeacherID: "t1", ClassroomID: strPtr("r1")},
		},
		{
			name:      "teacher busy",
			candidate: Candidate{Day: 0, TimeSlotID: "s1", ClassID: "c9", TeacherID: "t1"},
			expected:  Conflict{Teacher: true},
		},
		{
			name:      "class busy",
			candidate: Candidate{Day: 0, TimeSlotID: "s2", ClassID: "c2", TeacherID: "t9"},
			expected:  Conflict{Class: true},
		},
		{
			name:      "room busy",
			candidate: Candidate{Day: 1, TimeSlotID: "s1", ClassID: "c9", TeacherID: "t9", ClassroomID: strPtr("r3")},
			expected:  Conflict{Classroom: true},
		},
		{
			name:      "roomless lesson never conflicts on room",
			candidate: Candidate{Day: 0, TimeSlotID: "s2", ClassID: "c9", TeacherID: "t9", ClassroomID: strPtr("r2")},
		},
		{
			name:      "every dimension",
			candidate: Candidate{Day: 0, TimeSlotID: "s1", ClassID: "c1", TeacherID: "t1", ClassroomID: strPtr("r1")},
			expected:  Conflict{Teacher: true, Class: true, Classroom: true},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := DetectConflicts(tc.candidate, existing)
			assert.Equal(t, tc.expected, result)
			assert.Equal(t, result, DetectConflicts(tc.candidate, existing), "check must be idempotent")
		})
	}
}

func TestDetectConflictsBatches(t *testing.T) {
	existing := []models.Lesson{{Day: 0, TimeSlotID: "s1", ClassID: "c1", TeacherID: "t1", BatchID: strPtr("a")}}

	other := DetectConflicts(Candidate{Day: 0, TimeSlotID: "s1", ClassID: "c1", TeacherID: "t2", BatchID: strPtr("b")}, existing)
	assert.False(t, other.Any(), "different batches run in parallel")

	same := DetectConflicts(Candidate{Day: 0, TimeSlotID: "s1", ClassID: "c1", TeacherID: "t2", BatchID: strPtr("a")}, existing)
	assert.True(t, same.Class)

	wholeClass := DetectConflicts(Candidate{Day: 0, TimeSlotID: "s1", ClassID: "c1", TeacherID: "t2"}, existing)
	assert.True(t, wholeClass.Class, "a class-wide lesson collides with any batch")
}

func TestCollectConflicts(t *testing.T) {
	existing := []models.Lesson{
		{ID: "l1", Day: 0, TimeSlotID: "s1", ClassID: "c1", TeacherID: "t1"},
		{ID: "l2", Day: 0, TimeSlotID: "s1", ClassID: "c2", TeacherID: "t2", ClassroomID: strPtr("r1")},
	}
	candidate := Candidate{Day: 0, TimeSlotID: "s1", ClassID: "c1", TeacherID: "t2", ClassroomID: strPtr("r1")}

	conflicts := CollectConflicts(candidate, existing)
	require.Len(t, conflicts, 3)
	assert.Equal(t, "l1", conflicts[0].LessonID)
	assert.Equal(t, DimensionClass, conflicts[0].Dimension)
	assert.Equal(t, DimensionTeacher, conflicts[1].Dimension)
	assert.Equal(t, DimensionClassroom, conflicts[2].Dimension)
	assert.Equal(t, "l2", conflicts[2].LessonID)

	assert.Empty(t, CollectConflicts(Candidate{Day: 3, TimeSlotID: "s1"}, existing))
}
