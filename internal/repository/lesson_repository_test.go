package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

func TestLessonRepositoryListByTimetable(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "timetable_id", "day", "time_slot_id", "class_id", "subject_id", "teacher_id", "classroom_id", "batch_id", "created_at", "updated_at"}).
		AddRow("l1", "tt-1", 0, "s1", "c1", "math", "t1", "r1", nil, now, now).
		AddRow("l2", "tt-1", 1, "s1", "c1", "lab", "t2", nil, "b1", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM lessons WHERE timetable_id = $1 ORDER BY day ASC")).
		WithArgs("tt-1").
		WillReturnRows(rows)

	lessons, err := repo.ListByTimetable(context.Background(), nil, "tt-1")
	require.NoError(t, err)
	require.Len(t, lessons, 2)
	require.NotNil(t, lessons[0].ClassroomID)
	assert.Equal(t, "r1", *lessons[0].ClassroomID)
	assert.Nil(t, lessons[1].ClassroomID)
	require.NotNil(t, lessons[1].BatchID)
	assert.Equal(t, "b1", *lessons[1].BatchID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryUpdateAndDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	mock.ExpectExec("UPDATE lessons SET day").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM lessons WHERE timetable_id = $1 AND id = $2")).
		WithArgs("tt-1", "l-missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	lesson := &models.Lesson{ID: "l1", TimetableID: "tt-1", Day: 2, TimeSlotID: "s3"}
	require.NoError(t, repo.Update(context.Background(), nil, lesson))
	assert.False(t, lesson.UpdatedAt.IsZero())

	assert.ErrorIs(t, repo.Delete(context.Background(), nil, "tt-1", "l-missing"), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
