package scheduler

import (
	"context"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

func TestEngineSimpleFit(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	req := Request{
		Classes:     []models.ClassGroup{{ID: "class-1"}},
		Subjects:    []models.Subject{{ID: "math", ClassIDs: pq.StringArray{"class-1"}, PeriodsPerWeek: 3, PeriodsPerDay: 1}},
		Teachers:    []models.Teacher{{ID: "teacher-1", SubjectIDs: pq.StringArray{"math"}, MaxHoursPerDay: 5}},
		WorkingDays: []int{0, 1, 2, 3, 4},
		TimeSlots:   teachingSlots(6),
		Classrooms:  []models.Classroom{{ID: "room-1", Capacity: 30}},
	}

	result, err := NewEngine(Options{RequireRoomStrict: true, Seed: 7, Logger: zap.New(core)}).Generate(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, result.Lessons, 3)
	assert.Empty(t, result.Shortfalls)
	assert.Equal(t, 0, logs.Len())

	days := map[int]bool{}
	for _, lesson := range result.Lessons {
		days[lesson.Day] = true
		require.NotNil(t, lesson.ClassroomID)
		assert.Equal(t, "room-1", *lesson.ClassroomID)
	}
	assert.Len(t, days, 3, "lessons should land on distinct days")
	assert.Equal(t, Summary{Requirements: 1, Satisfied: 1, LessonsPlaced: 3}, result.Summary)
}

func TestEngineTeacherScarcity(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	req := Request{
		Classes: []models.ClassGroup{{ID: "class-1"}, {ID: "class-2"}},
		Subjects: []models.Subject{
			{ID: "math", ClassIDs: pq.StringArray{"class-1", "class-2"}, PeriodsPerWeek: 4, PeriodsPerDay: 1},
		},
		Teachers:    []models.Teacher{{ID: "teacher-1", SubjectIDs: pq.StringArray{"math"}, MaxHoursPerDay: 1}},
		WorkingDays: []int{0, 1, 2, 3, 4},
		TimeSlots:   teachingSlots(6),
		Classrooms:  []models.Classroom{{ID: "room-1", Capacity: 30}, {ID: "room-2", Capacity: 30}},
	}

	for seed := int64(1); seed <= 20; seed++ {
		logs.TakeAll()
		result, err := NewEngine(Options{RequireRoomStrict: true, Seed: seed, Logger: zap.New(core)}).Generate(context.Background(), req)
		require.NoError(t, err)
		require.NotEmpty(t, result.Shortfalls, "seed %d", seed)
		assert.GreaterOrEqual(t, logs.Len(), 1)
		assert.Len(t, result.Lessons, 5, "one lesson per working day for the only teacher")

		perDay := map[int]int{}
		for _, lesson := range result.Lessons {
			perDay[lesson.Day]++
		}
		for day, count := range perDay {
			assert.LessOrEqual(t, count, 1, "seed %d day %d", seed, day)
		}
	}
}

func TestEngineNoEligibleTeacher(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	req := Request{
		Classes: []models.ClassGroup{{ID: "class-1"}},
		Subjects: []models.Subject{
			{ID: "math", ClassIDs: pq.StringArray{"class-1"}, PeriodsPerWeek: 2, PeriodsPerDay: 1},
			{ID: "art", ClassIDs: pq.StringArray{"class-1"}, PeriodsPerWeek: 2, PeriodsPerDay: 1},
		},
		Teachers:    []models.Teacher{{ID: "teacher-1", SubjectIDs: pq.StringArray{"math"}}},
		WorkingDays: []int{0, 1, 2},
		TimeSlots:   teachingSlots(4),
		Classrooms:  []models.Classroom{{ID: "room-1", Capacity: 30}},
	}

	result, err := NewEngine(Options{RequireRoomStrict: true, Seed: 3, Logger: zap.New(core)}).Generate(context.Background(), req)
	require.NoError(t, err)

	for _, lesson := range result.Lessons {
		assert.Equal(t, "math", lesson.SubjectID)
	}
	assert.Len(t, result.Lessons, 2)
	require.Len(t, result.Shortfalls, 1)
	assert.Equal(t, Shortfall{ClassID: "class-1", SubjectID: "art", Required: 2, Scheduled: 0, Reason: ReasonNoEligibleTeacher}, result.Shortfalls[0])
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "no eligible teacher for subject", logs.All()[0].Message)
}

func TestEngineRoomPolicy(t *testing.T) {
	req := Request{
		Classes:     []models.ClassGroup{{ID: "class-1"}},
		Subjects:    []models.Subject{{ID: "chem", ClassIDs: pq.StringArray{"class-1"}, IsLab: true, PeriodsPerWeek: 2, PeriodsPerDay: 1}},
		Teachers:    []models.Teacher{{ID: "teacher-1", SubjectIDs: pq.StringArray{"chem"}}},
		WorkingDays: []int{0, 1},
		TimeSlots:   teachingSlots(2),
		Classrooms:  []models.Classroom{{ID: "room-1", Capacity: 30}},
	}

	strict, err := NewEngine(Options{RequireRoomStrict: true, Seed: 1}).Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, strict.Lessons)
	require.Len(t, strict.Shortfalls, 1)
	assert.Equal(t, ReasonSearchExhausted, strict.Shortfalls[0].Reason)

	lenient, err := NewEngine(Options{RequireRoomStrict: false, Seed: 1}).Generate(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, lenient.Lessons, 2)
	for _, lesson := range lenient.Lessons {
		assert.Nil(t, lesson.ClassroomID, "lab subject must not borrow a regular room")
	}
}

func TestEngineHonoursUnavailability(t *testing.T) {
	slots := teachingSlots(2)
	req := Request{
		Classes:  []models.ClassGroup{{ID: "class-1"}},
		Subjects: []models.Subject{{ID: "math", ClassIDs: pq.StringArray{"class-1"}, PeriodsPerWeek: 3, PeriodsPerDay: 2}},
		Teachers: []models.Teacher{{
			ID:               "teacher-1",
			SubjectIDs:       pq.StringArray{"math"},
			UnavailableDays:  pq.Int64Array{0},
			UnavailableSlots: models.UnavailableSlots{{Day: 1, TimeSlotID: slots[0].ID}},
		}},
		WorkingDays: []int{0, 1},
		TimeSlots:   slots,
		Classrooms:  []models.Classroom{{ID: "room-1", Capacity: 30}},
	}

	for seed := int64(1); seed <= 10; seed++ {
		result, err := NewEngine(Options{RequireRoomStrict: true, Seed: seed}).Generate(context.Background(), req)
		require.NoError(t, err)
		require.Len(t, result.Lessons, 1, "only tuesday slot 2 is open")
		assert.Equal(t, 1, result.Lessons[0].Day)
		assert.Equal(t, slots[1].ID, result.Lessons[0].TimeSlotID)
		require.Len(t, result.Shortfalls, 1)
		assert.Equal(t, 1, result.Shortfalls[0].Scheduled)
	}
}

func TestEngineSkipsBreakSlots(t *testing.T) {
	slots := []models.TimeSlot{
		{ID: "p1", Order: 1},
		{ID: "break", Order: 2, IsBreak: true},
		{ID: "p2", Order: 3},
	}
	req := Request{
		Classes:     []models.ClassGroup{{ID: "class-1"}},
		Subjects:    []models.Subject{{ID: "math", ClassIDs: pq.StringArray{"class-1"}, PeriodsPerWeek: 4, PeriodsPerDay: 3}},
		Teachers:    []models.Teacher{{ID: "teacher-1", SubjectIDs: pq.StringArray{"math"}}},
		WorkingDays: []int{0, 1},
		TimeSlots:   slots,
		Classrooms:  []models.Classroom{{ID: "room-1"}},
	}

	result, err := NewEngine(Options{RequireRoomStrict: true, Seed: 11}).Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, result.Lessons, 4)
	for _, lesson := range result.Lessons {
		assert.NotEqual(t, "break", lesson.TimeSlotID)
	}
}

func TestEngineMultiplePeriodsPerDay(t *testing.T) {
	req := Request{
		Classes:     []models.ClassGroup{{ID: "class-1"}},
		Subjects:    []models.Subject{{ID: "math", ClassIDs: pq.StringArray{"class-1"}, PeriodsPerWeek: 4, PeriodsPerDay: 2}},
		Teachers:    []models.Teacher{{ID: "teacher-1", SubjectIDs: pq.StringArray{"math"}}},
		WorkingDays: []int{0, 1},
		TimeSlots:   teachingSlots(3),
		Classrooms:  []models.Classroom{{ID: "room-1"}},
	}

	result, err := NewEngine(Options{RequireRoomStrict: true, Seed: 5}).Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, result.Lessons, 4)
	assert.Empty(t, result.Shortfalls)
}

func TestEngineBatchPass(t *testing.T) {
	req := Request{
		Classes: []models.ClassGroup{{ID: "class-1"}},
		Subjects: []models.Subject{
			{ID: "math", ClassIDs: pq.StringArray{"class-1"}, PeriodsPerWeek: 2, PeriodsPerDay: 1},
			{ID: "chem-lab", ClassIDs: pq.StringArray{"class-1"}, IsLab: true, PeriodsPerWeek: 1, PeriodsPerDay: 1},
		},
		Teachers: []models.Teacher{
			{ID: "teacher-1", SubjectIDs: pq.StringArray{"math"}},
			{ID: "teacher-2", SubjectIDs: pq.StringArray{"chem-lab"}},
			{ID: "teacher-3", SubjectIDs: pq.StringArray{"chem-lab"}},
		},
		WorkingDays: []int{0, 1},
		TimeSlots:   teachingSlots(3),
		Classrooms: []models.Classroom{
			{ID: "room-1", Capacity: 40},
			{ID: "lab-1", Capacity: 20, IsLab: true},
			{ID: "lab-2", Capacity: 20, IsLab: true},
		},
		Batches: []models.Batch{{ID: "batch-a", ClassID: "class-1"}, {ID: "batch-b", ClassID: "class-1"}},
	}

	result, err := NewEngine(Options{RequireRoomStrict: true, Seed: 9}).Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, result.Shortfalls)
	assert.Equal(t, 3, result.Summary.Requirements)

	labByBatch := map[string]int{}
	for _, lesson := range result.Lessons {
		if lesson.SubjectID != "chem-lab" {
			assert.Nil(t, lesson.BatchID)
			continue
		}
		require.NotNil(t, lesson.BatchID, "lab lessons of a batched class are per batch")
		labByBatch[*lesson.BatchID]++
	}
	assert.Equal(t, map[string]int{"batch-a": 1, "batch-b": 1}, labByBatch)
	assertInvariants(t, req, result)
}

func TestEngineRejectsUnusableTiming(t *testing.T) {
	engine := NewEngine(Options{Seed: 1})

	_, err := engine.Generate(context.Background(), Request{WorkingDays: []int{9, -1}, TimeSlots: teachingSlots(2)})
	assert.ErrorIs(t, err, ErrNoWorkingDays)

	_, err = engine.Generate(context.Background(), Request{WorkingDays: []int{0}, TimeSlots: []models.TimeSlot{{ID: "b", IsBreak: true}}})
	assert.ErrorIs(t, err, ErrNoTeachingSlots)
}

func TestEngineStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEngine(Options{Seed: 1}).Generate(ctx, denseRequest())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngineInvariantsAcrossSeeds(t *testing.T) {
	req := denseRequest()
	for seed := int64(1); seed <= 50; seed++ {
		for _, strict := range []bool{true, false} {
			result, err := NewEngine(Options{RequireRoomStrict: strict, Seed: seed}).Generate(context.Background(), req)
			require.NoError(t, err)
			assertInvariants(t, req, result)
		}
	}
}

func TestEngineDeterministicForSeed(t *testing.T) {
	req := denseRequest()
	first, err := NewEngine(Options{RequireRoomStrict: true, Seed: 99}).Generate(context.Background(), req)
	require.NoError(t, err)
	second, err := NewEngine(Options{RequireRoomStrict: true, Seed: 99}).Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first.Lessons, second.Lessons)
}

func TestNormalizeDays(t *testing.T) {
	assert.Equal(t, []int{0, 2, 6}, NormalizeDays([]int{6, 2, 2, 7, -1, 0}))
	assert.Empty(t, NormalizeDays(nil))
}

// --- Fixtures ---

func teachingSlots(n int) []models.TimeSlot {
	slots := make([]models.TimeSlot, 0, n)
	for i := 1; i <= n; i++ {
		slots = append(slots, models.TimeSlot{ID: fmt.Sprintf("slot-%d", i), Name: fmt.Sprintf("P%d", i), Order: i})
	}
	return slots
}

func denseRequest() Request {
	classes := []models.ClassGroup{{ID: "c1"}, {ID: "c2"}, {ID: "c3"}, {ID: "c4"}}
	all := pq.StringArray{"c1", "c2", "c3", "c4"}
	slots := append(teachingSlots(6), models.TimeSlot{ID: "lunch", Order: 4, IsBreak: true})
	return Request{
		Classes: classes,
		Subjects: []models.Subject{
			{ID: "math", ClassIDs: all, PeriodsPerWeek: 6, PeriodsPerDay: 2, PreferredClassroomIDs: pq.StringArray{"r-big"}},
			{ID: "eng", ClassIDs: all, PeriodsPerWeek: 5, PeriodsPerDay: 1},
			{ID: "bio", ClassIDs: pq.StringArray{"c1", "c2"}, PeriodsPerWeek: 3, PeriodsPerDay: 1},
			{ID: "lab", ClassIDs: all, IsLab: true, PeriodsPerWeek: 2, PeriodsPerDay: 1},
			{ID: "pe", ClassIDs: pq.StringArray{"c3", "c4"}, PeriodsPerWeek: 2, PeriodsPerDay: 1},
		},
		Teachers: []models.Teacher{
			{ID: "t-math-1", SubjectIDs: pq.StringArray{"math"}, MaxHoursPerDay: 4},
			{ID: "t-math-2", SubjectIDs: pq.StringArray{"math", "pe"}, MaxHoursPerDay: 3, UnavailableDays: pq.Int64Array{4}},
			{ID: "t-eng", SubjectIDs: pq.StringArray{"eng"}, MaxHoursPerDay: 4, UnavailableSlots: models.UnavailableSlots{{Day: 0, TimeSlotID: "slot-1"}}},
			{ID: "t-bio", SubjectIDs: pq.StringArray{"bio", "lab"}, MaxHoursPerDay: 3},
			{ID: "t-lab", SubjectIDs: pq.StringArray{"lab"}, MaxHoursPerDay: 2},
		},
		WorkingDays: []int{0, 1, 2, 3, 4},
		TimeSlots:   slots,
		Classrooms: []models.Classroom{
			{ID: "r-small", Name: "A", Capacity: 20},
			{ID: "r-mid", Name: "B", Capacity: 30},
			{ID: "r-big", Name: "C", Capacity: 60},
			{ID: "r-lab", Name: "L", Capacity: 25, IsLab: true},
		},
		Batches: []models.Batch{{ID: "c4-a", ClassID: "c4"}, {ID: "c4-b", ClassID: "c4"}},
	}
}

func assertInvariants(t *testing.T, req Request, result *Result) {
	t.Helper()

	subjects := map[string]models.Subject{}
	for _, s := range req.Subjects {
		subjects[s.ID] = s
	}
	teachers := map[string]models.Teacher{}
	for _, tc := range req.Teachers {
		teachers[tc.ID] = tc
	}
	rooms := map[string]models.Classroom{}
	for _, r := range req.Classrooms {
		rooms[r.ID] = r
	}

	for i, a := range result.Lessons {
		for j := i + 1; j < len(result.Lessons); j++ {
			b := result.Lessons[j]
			if a.Day != b.Day || a.TimeSlotID != b.TimeSlotID {
				continue
			}
			assert.NotEqual(t, a.TeacherID, b.TeacherID, "teacher double booked")
			if a.ClassID == b.ClassID {
				parallel := a.BatchID != nil && b.BatchID != nil && *a.BatchID != *b.BatchID
				assert.True(t, parallel, "class double booked")
			}
			if a.ClassroomID != nil && b.ClassroomID != nil {
				assert.NotEqual(t, *a.ClassroomID, *b.ClassroomID, "classroom double booked")
			}
		}
	}

	pairCount := map[[2]string]int{}
	subjectDay := map[string]int{}
	teacherDay := map[string]int{}
	for _, lesson := range result.Lessons {
		subject := subjects[lesson.SubjectID]
		teacher := teachers[lesson.TeacherID]

		assert.True(t, teacher.Teaches(subject.ID), "teacher %s not qualified for %s", teacher.ID, subject.ID)
		assert.False(t, teacher.UnavailableAt(lesson.Day, lesson.TimeSlotID), "teacher %s unavailable", teacher.ID)
		if subject.IsLab && lesson.ClassroomID != nil {
			assert.True(t, rooms[*lesson.ClassroomID].IsLab, "lab subject in non-lab room")
		}

		group := groupKey(lesson.ClassID, lesson.BatchID)
		sdKey := fmt.Sprintf("%s|%s|%d", group, subject.ID, lesson.Day)
		subjectDay[sdKey]++
		assert.LessOrEqual(t, subjectDay[sdKey], subject.DailyCap())

		tdKey := fmt.Sprintf("%s|%d", teacher.ID, lesson.Day)
		teacherDay[tdKey]++
		if teacher.MaxHoursPerDay > 0 {
			assert.LessOrEqual(t, teacherDay[tdKey], teacher.MaxHoursPerDay)
		}
		pairCount[[2]string{group, subject.ID}]++
	}

	for pair, count := range pairCount {
		assert.LessOrEqual(t, count, subjects[pair[1]].PeriodsPerWeek, "%s over-scheduled", pair)
	}
	assert.Equal(t, len(result.Lessons), result.Summary.LessonsPlaced)
	assert.Equal(t, result.Summary.Exhausted, len(result.Shortfalls))
}
