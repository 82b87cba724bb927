package scheduler

import (
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

func TestFindClassroomPrefersConfiguredRooms(t *testing.T) {
	rooms := []models.Classroom{
		{ID: "r-big", Name: "Hall", Capacity: 80},
		{ID: "r-small", Name: "B", Capacity: 20},
		{ID: "r-mid", Name: "A", Capacity: 30},
	}
	subject := models.Subject{ID: "math", PreferredClassroomIDs: pq.StringArray{"r-mid", "r-big"}}

	room := FindClassroom(subject, 0, "s1", nil, rooms)
	require.NotNil(t, room)
	assert.Equal(t, "r-mid", room.ID)

	busy := []models.Lesson{{Day: 0, TimeSlotID: "s1", ClassroomID: strPtr("r-mid")}}
	room = FindClassroom(subject, 0, "s1", busy, rooms)
	require.NotNil(t, room)
	assert.Equal(t, "r-big", room.ID, "next preferred room wins over a smaller unpreferred one")
}

func TestFindClassroomSmallestFirst(t *testing.T) {
	rooms := []models.Classroom{
		{ID: "r3", Name: "C", Capacity: 40},
		{ID: "r2", Name: "B", Capacity: 25},
		{ID: "r1", Name: "A", Capacity: 25},
	}
	room := FindClassroom(models.Subject{ID: "eng"}, 1, "s1", nil, rooms)
	require.NotNil(t, room)
	assert.Equal(t, "r1", room.ID)
}

func TestFindClassroomLabCompatibility(t *testing.T) {
	rooms := []models.Classroom{
		{ID: "r1", Capacity: 30},
		{ID: "lab", Capacity: 30, IsLab: true},
	}
	lab := models.Subject{ID: "chem", IsLab: true}

	room := FindClassroom(lab, 0, "s1", nil, rooms)
	require.NotNil(t, room)
	assert.Equal(t, "lab", room.ID)

	busy := []models.Lesson{{Day: 0, TimeSlotID: "s1", ClassroomID: strPtr("lab")}}
	assert.Nil(t, FindClassroom(lab, 0, "s1", busy, rooms))

	room = FindClassroom(models.Subject{ID: "eng"}, 0, "s1", []models.Lesson{{Day: 0, TimeSlotID: "s1", ClassroomID: strPtr("r1")}}, rooms)
	require.NotNil(t, room)
	assert.Equal(t, "lab", room.ID, "regular subjects may use a free lab")
}
