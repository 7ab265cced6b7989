package postgres

import (
	"context"
	"flag"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/escolab/boletim/internal/models"
)

// setupTestDB spins up a disposable Postgres container and applies migrations
func setupTestDB(t *testing.T) (*PostgresStore, func()) {
	ctx := context.Background()

	pg, err := postgres.Run(
		ctx,
		"postgres:16-alpine",
		testcontainers.WithEnv(map[string]string{
			"POSTGRES_DB":       "testdb",
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
		}),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second)),
	)
	require.NoError(t, err)

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := NewPostgresStore(dsn, "../../../migrations")
	require.NoError(t, err, "Failed to create store")

	cleanup := func() {
		s.Close()
		pg.Terminate(ctx)
	}

	return s, cleanup
}

type testData struct {
	store *PostgresStore
	now   time.Time
}

func setupTestData(t *testing.T) (*testData, func()) {
	s, cleanup := setupTestDB(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	_, err := s.DB.Exec(`
		INSERT INTO offerings (id, class_id, subject, teacher_id) VALUES
		(7, 3, 'Mathematics', 'ana.silva'),
		(8, 3, 'History', 'carlos.lima')`)
	require.NoError(t, err, "Failed to insert offerings")

	_, err = s.DB.Exec(`
		INSERT INTO enrollments (student_id, class_id) VALUES
		('joao.ferreira', 3),
		('maria.souza', 3)`)
	require.NoError(t, err, "Failed to insert enrollments")

	activities := []models.Activity{
		{OfferingID: 7, Kind: models.KindExam, Sequence: 1, Title: "Prova 1", Weight: 1, MaxScore: 10, Active: true},
		{OfferingID: 7, Kind: models.KindExam, Sequence: 2, Title: "Prova 2", Weight: 1, MaxScore: 10, Active: true},
		{OfferingID: 7, Kind: models.KindExam, Sequence: 3, Title: "Recuperação", Weight: 1, MaxScore: 10, Active: true},
		{OfferingID: 7, Kind: models.KindAssignment, Sequence: 1, Title: "Trabalho 1", Weight: 1, MaxScore: 10, Active: true},
		{OfferingID: 7, Kind: models.KindAssignment, Sequence: 2, Title: "Trabalho 2", Weight: 1, MaxScore: 10, Active: true},
		{OfferingID: 7, Kind: models.KindAssignment, Sequence: 3, Title: "Trabalho 3", Weight: 1, MaxScore: 10, Active: true},
	}
	for i := range activities {
		activities[i].DueDate = now.Unix()
		require.NoError(t, s.CreateActivity(&activities[i]), "Failed to insert activity")
	}

	return &testData{
		store: s,
		now:   now,
	}, cleanup
}

func (td *testData) activityID(t *testing.T, kind models.ActivityKind, sequence int) int64 {
	activity, err := td.store.FindActivity(7, kind, sequence)
	require.NoError(t, err)
	require.NotNil(t, activity)
	return activity.ID
}

func (td *testData) submit(t *testing.T, kind models.ActivityKind, sequence int, student string) int64 {
	sub := models.Submission{
		ActivityID:  td.activityID(t, kind, sequence),
		StudentID:   student,
		FileRef:     "uploads/test.pdf",
		SubmittedAt: td.now.Unix(),
	}
	require.NoError(t, td.store.UpsertSubmission(&sub))

	var id int64
	err := td.store.DB.Get(&id,
		"SELECT id FROM submissions WHERE activity_id = $1 AND student_id = $2",
		sub.ActivityID, sub.StudentID,
	)
	require.NoError(t, err)
	return id
}

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		log.Println("Skipping Postgres integration tests. Use -short=false to run them.")
		os.Exit(0)
	}
	log.Println("Starting Postgres store tests...")
	code := m.Run()
	log.Println("Finished Postgres store tests")
	os.Exit(code)
}

func TestOfferingQueries(t *testing.T) {
	td, cleanup := setupTestData(t)
	defer cleanup()

	t.Run("get existing offering", func(t *testing.T) {
		offering, err := td.store.GetOffering(7)
		require.NoError(t, err)
		require.NotNil(t, offering)
		assert.Equal(t, int64(3), offering.ClassID)
		assert.Equal(t, "Mathematics", offering.Subject)
		assert.Equal(t, "ana.silva", offering.TeacherID)
	})

	t.Run("get non-existent offering", func(t *testing.T) {
		offering, err := td.store.GetOffering(999)
		require.NoError(t, err)
		assert.Nil(t, offering)
	})

	t.Run("enrollment check", func(t *testing.T) {
		enrolled, err := td.store.IsEnrolled("joao.ferreira", 3)
		require.NoError(t, err)
		assert.True(t, enrolled)

		enrolled, err = td.store.IsEnrolled("not.exists", 3)
		require.NoError(t, err)
		assert.False(t, enrolled)
	})
}

func TestSubmissionGrading(t *testing.T) {
	td, cleanup := setupTestData(t)
	defer cleanup()

	submissionID := td.submit(t, models.KindExam, 1, "joao.ferreira")

	t.Run("grade within max score", func(t *testing.T) {
		sub, err := td.store.GradeSubmission(submissionID, 8.5, "bom trabalho")
		require.NoError(t, err)
		require.NotNil(t, sub.Grade)
		assert.InDelta(t, 8.5, *sub.Grade, 1e-9)
		require.NotNil(t, sub.GradedAt)
	})

	t.Run("grade above max score is rejected", func(t *testing.T) {
		_, err := td.store.GradeSubmission(submissionID, 10.5, "")
		assert.Error(t, err)
	})

	t.Run("resubmission clears grade and feedback", func(t *testing.T) {
		td.submit(t, models.KindExam, 1, "joao.ferreira")

		items, err := td.store.GetGradedItems("joao.ferreira", 7)
		require.NoError(t, err)
		assert.Empty(t, items)
	})
}

func TestGetGradedItems(t *testing.T) {
	td, cleanup := setupTestData(t)
	defer cleanup()

	_, err := td.store.GradeSubmission(td.submit(t, models.KindExam, 1, "joao.ferreira"), 8, "")
	require.NoError(t, err)
	_, err = td.store.GradeSubmission(td.submit(t, models.KindAssignment, 3, "joao.ferreira"), 9, "")
	require.NoError(t, err)
	td.submit(t, models.KindAssignment, 1, "joao.ferreira")
	td.submit(t, models.KindExam, 2, "maria.souza")

	items, err := td.store.GetGradedItems("joao.ferreira", 7)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, models.KindAssignment, items[0].Kind)
	assert.Equal(t, 3, items[0].Sequence)
	assert.Equal(t, models.KindExam, items[1].Kind)
	assert.Equal(t, 1, items[1].Sequence)
}

func TestGradeRecordOperations(t *testing.T) {
	td, cleanup := setupTestData(t)
	defer cleanup()

	record := models.GradeRecord{
		StudentID:  "joao.ferreira",
		OfferingID: 7,
		FinalGrade: 7.3,
		Attendance: 90,
	}

	t.Run("upsert and get", func(t *testing.T) {
		require.NoError(t, td.store.UpsertGradeRecord(record))

		got, err := td.store.GetGradeRecord("joao.ferreira", 7)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.InDelta(t, 7.3, got.FinalGrade, 1e-9)
	})

	t.Run("upsert again overwrites", func(t *testing.T) {
		record.FinalGrade = 8.1
		require.NoError(t, td.store.UpsertGradeRecord(record))

		got, err := td.store.GetGradeRecord("joao.ferreira", 7)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.InDelta(t, 8.1, got.FinalGrade, 1e-9)
	})

	t.Run("list student records joins subject", func(t *testing.T) {
		require.NoError(t, td.store.UpsertGradeRecord(models.GradeRecord{
			StudentID:  "joao.ferreira",
			OfferingID: 8,
			FinalGrade: 9.0,
			Attendance: 92,
		}))

		records, err := td.store.ListStudentRecords("joao.ferreira")
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "History", records[0].Subject)
		assert.Equal(t, "Mathematics", records[1].Subject)
	})
}
