package grading

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/escolab/boletim/internal/models"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Close() error {
	return nil
}

func (m *MockStore) ApplyMigrations(dir string) error {
	return nil
}

func (m *MockStore) GetOffering(offeringID int64) (*models.Offering, error) {
	args := m.Called(offeringID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Offering), args.Error(1)
}

func (m *MockStore) ListTeacherOfferings(teacherID string) ([]models.Offering, error) {
	args := m.Called(teacherID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Offering), args.Error(1)
}

func (m *MockStore) IsEnrolled(studentID string, classID int64) (bool, error) {
	args := m.Called(studentID, classID)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) CreateActivity(activity *models.Activity) error {
	return nil
}

func (m *MockStore) FindActivity(offeringID int64, kind models.ActivityKind, sequence int) (*models.Activity, error) {
	return nil, nil
}

func (m *MockStore) UpsertSubmission(submission *models.Submission) error {
	return nil
}

func (m *MockStore) GradeSubmission(submissionID int64, grade float64, feedback string) (*models.Submission, error) {
	return nil, nil
}

func (m *MockStore) GetGradedItems(studentID string, offeringID int64) ([]models.GradedItem, error) {
	args := m.Called(studentID, offeringID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.GradedItem), args.Error(1)
}

func (m *MockStore) GetGradeRecord(studentID string, offeringID int64) (*models.GradeRecord, error) {
	args := m.Called(studentID, offeringID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GradeRecord), args.Error(1)
}

func (m *MockStore) UpsertGradeRecord(record models.GradeRecord) error {
	args := m.Called(record)
	return args.Error(0)
}

func (m *MockStore) ListOfferingRecords(offeringID int64) ([]models.GradeRecord, error) {
	args := m.Called(offeringID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.GradeRecord), args.Error(1)
}

func (m *MockStore) ListStudentRecords(studentID string) ([]models.StudentRecord, error) {
	args := m.Called(studentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.StudentRecord), args.Error(1)
}

var mathOffering = &models.Offering{ID: 7, ClassID: 3, Subject: "Mathematics", TeacherID: "ana.silva"}

func completeItems(p1, p2, t1, t2, t3 float64) []models.GradedItem {
	return items(baseItems(p1, p2, t1, t2, t3))
}

func TestManager_Close(t *testing.T) {
	t.Run("approved student persists the final grade", func(t *testing.T) {
		st := new(MockStore)
		manager := NewManager(st, DefaultRules())

		st.On("GetOffering", int64(7)).Return(mathOffering, nil).Once()
		st.On("IsEnrolled", "joao.ferreira", int64(3)).Return(true, nil).Once()
		st.On("GetGradedItems", "joao.ferreira", int64(7)).
			Return(completeItems(8, 6, 7, 8, 9), nil).Once()
		st.On("UpsertGradeRecord", models.GradeRecord{
			StudentID:  "joao.ferreira",
			OfferingID: 7,
			FinalGrade: 7.3,
			Attendance: 90,
		}).Return(nil).Once()

		result, err := manager.Close("joao.ferreira", 7, 90)
		require.NoError(t, err)
		assert.Equal(t, StatusApproved, result.Status)
		assert.InDelta(t, 7.3, result.Record.FinalGrade, 1e-9)
		st.AssertExpectations(t)
	})

	t.Run("close is idempotent", func(t *testing.T) {
		st := new(MockStore)
		manager := NewManager(st, DefaultRules())

		st.On("GetOffering", int64(7)).Return(mathOffering, nil).Twice()
		st.On("IsEnrolled", "joao.ferreira", int64(3)).Return(true, nil).Twice()
		st.On("GetGradedItems", "joao.ferreira", int64(7)).
			Return(completeItems(8, 6, 7, 8, 9), nil).Twice()
		st.On("UpsertGradeRecord", mock.AnythingOfType("models.GradeRecord")).Return(nil).Twice()

		first, err := manager.Close("joao.ferreira", 7, 90)
		require.NoError(t, err)
		second, err := manager.Close("joao.ferreira", 7, 90)
		require.NoError(t, err)

		assert.Equal(t, first.Record, second.Record)
		assert.Equal(t, first.Status, second.Status)
		st.AssertExpectations(t)
	})

	t.Run("base incomplete blocks and reports missing labels", func(t *testing.T) {
		st := new(MockStore)
		manager := NewManager(st, DefaultRules())

		st.On("GetOffering", int64(7)).Return(mathOffering, nil).Once()
		st.On("IsEnrolled", "joao.ferreira", int64(3)).Return(true, nil).Once()
		st.On("GetGradedItems", "joao.ferreira", int64(7)).
			Return(items(map[Slot]float64{SlotExamOne: 8, SlotExamTwo: 7}), nil).Once()

		_, err := manager.Close("joao.ferreira", 7, 90)

		var baseErr *BaseIncompleteError
		require.ErrorAs(t, err, &baseErr)
		assert.Equal(t, []string{"T1", "T2", "T3"}, baseErr.Missing)
		st.AssertNotCalled(t, "UpsertGradeRecord", mock.Anything)
	})

	t.Run("make-up required blocks without persisting", func(t *testing.T) {
		st := new(MockStore)
		manager := NewManager(st, DefaultRules())

		st.On("GetOffering", int64(7)).Return(mathOffering, nil).Once()
		st.On("IsEnrolled", "joao.ferreira", int64(3)).Return(true, nil).Once()
		st.On("GetGradedItems", "joao.ferreira", int64(7)).
			Return(completeItems(4, 4, 5, 5, 5), nil).Once()

		_, err := manager.Close("joao.ferreira", 7, 80)

		var makeUpErr *MakeUpRequiredError
		require.ErrorAs(t, err, &makeUpErr)
		assert.Equal(t, "4.30", makeUpErr.FinalGrade.StringFixed(2))
		st.AssertNotCalled(t, "UpsertGradeRecord", mock.Anything)
	})

	t.Run("make-up present persists the post-recovery grade", func(t *testing.T) {
		st := new(MockStore)
		manager := NewManager(st, DefaultRules())

		graded := completeItems(4, 4, 5, 5, 5)
		graded = append(graded, models.GradedItem{Kind: models.KindExam, Sequence: 3, Grade: 8})

		st.On("GetOffering", int64(7)).Return(mathOffering, nil).Once()
		st.On("IsEnrolled", "joao.ferreira", int64(3)).Return(true, nil).Once()
		st.On("GetGradedItems", "joao.ferreira", int64(7)).Return(graded, nil).Once()
		st.On("UpsertGradeRecord", models.GradeRecord{
			StudentID:  "joao.ferreira",
			OfferingID: 7,
			FinalGrade: 6.15,
			Attendance: 80,
		}).Return(nil).Once()

		result, err := manager.Close("joao.ferreira", 7, 80)
		require.NoError(t, err)
		assert.Equal(t, StatusApprovedAfterMakeUp, result.Status)
		st.AssertExpectations(t)
	})

	t.Run("attendance failure persists the base average", func(t *testing.T) {
		st := new(MockStore)
		manager := NewManager(st, DefaultRules())

		// make-up graded 10, but attendance failure records the base average
		graded := completeItems(4, 4, 5, 5, 5)
		graded = append(graded, models.GradedItem{Kind: models.KindExam, Sequence: 3, Grade: 10})

		st.On("GetOffering", int64(7)).Return(mathOffering, nil).Once()
		st.On("IsEnrolled", "joao.ferreira", int64(3)).Return(true, nil).Once()
		st.On("GetGradedItems", "joao.ferreira", int64(7)).Return(graded, nil).Once()
		st.On("UpsertGradeRecord", models.GradeRecord{
			StudentID:  "joao.ferreira",
			OfferingID: 7,
			FinalGrade: 4.3,
			Attendance: 60,
		}).Return(nil).Once()

		result, err := manager.Close("joao.ferreira", 7, 60)
		require.NoError(t, err)
		assert.Equal(t, StatusFailedAttendance, result.Status)
		st.AssertExpectations(t)
	})

	t.Run("attendance failure with high grades still records them", func(t *testing.T) {
		st := new(MockStore)
		manager := NewManager(st, DefaultRules())

		st.On("GetOffering", int64(7)).Return(mathOffering, nil).Once()
		st.On("IsEnrolled", "joao.ferreira", int64(3)).Return(true, nil).Once()
		st.On("GetGradedItems", "joao.ferreira", int64(7)).
			Return(completeItems(9, 9, 9, 9, 9), nil).Once()
		st.On("UpsertGradeRecord", models.GradeRecord{
			StudentID:  "joao.ferreira",
			OfferingID: 7,
			FinalGrade: 9,
			Attendance: 60,
		}).Return(nil).Once()

		result, err := manager.Close("joao.ferreira", 7, 60)
		require.NoError(t, err)
		assert.Equal(t, StatusFailedAttendance, result.Status)
		st.AssertExpectations(t)
	})

	t.Run("not enrolled blocks", func(t *testing.T) {
		st := new(MockStore)
		manager := NewManager(st, DefaultRules())

		st.On("GetOffering", int64(7)).Return(mathOffering, nil).Once()
		st.On("IsEnrolled", "joao.ferreira", int64(3)).Return(false, nil).Once()

		_, err := manager.Close("joao.ferreira", 7, 90)
		assert.True(t, errors.Is(err, ErrNotEnrolled))
		st.AssertNotCalled(t, "GetGradedItems", mock.Anything, mock.Anything)
	})

	t.Run("attendance out of range is rejected", func(t *testing.T) {
		manager := NewManager(new(MockStore), DefaultRules())

		_, err := manager.Close("joao.ferreira", 7, 101)
		var validationErr ValidationError
		assert.ErrorAs(t, err, &validationErr)
		assert.Equal(t, "attendance", validationErr.Field)
	})
}

func TestManager_SyncFromGrading(t *testing.T) {
	t.Run("no record means no-op", func(t *testing.T) {
		st := new(MockStore)
		manager := NewManager(st, DefaultRules())

		st.On("GetGradeRecord", "joao.ferreira", int64(7)).Return(nil, nil).Once()

		sync, err := manager.SyncFromGrading("joao.ferreira", 7)
		require.NoError(t, err)
		assert.False(t, sync.Synced)
		st.AssertNotCalled(t, "UpsertGradeRecord", mock.Anything)
	})

	t.Run("base incomplete means no-op", func(t *testing.T) {
		st := new(MockStore)
		manager := NewManager(st, DefaultRules())

		st.On("GetGradeRecord", "joao.ferreira", int64(7)).
			Return(&models.GradeRecord{StudentID: "joao.ferreira", OfferingID: 7, FinalGrade: 7, Attendance: 90}, nil).Once()
		st.On("GetGradedItems", "joao.ferreira", int64(7)).
			Return(items(map[Slot]float64{SlotExamOne: 8}), nil).Once()

		sync, err := manager.SyncFromGrading("joao.ferreira", 7)
		require.NoError(t, err)
		assert.False(t, sync.Synced)
		assert.Equal(t, "base incomplete, nothing to sync", sync.Reason)
		st.AssertNotCalled(t, "UpsertGradeRecord", mock.Anything)
	})

	t.Run("updates grade and keeps attendance", func(t *testing.T) {
		st := new(MockStore)
		manager := NewManager(st, DefaultRules())

		st.On("GetGradeRecord", "joao.ferreira", int64(7)).
			Return(&models.GradeRecord{StudentID: "joao.ferreira", OfferingID: 7, FinalGrade: 5, Attendance: 88}, nil).Once()
		st.On("GetGradedItems", "joao.ferreira", int64(7)).
			Return(completeItems(8, 6, 7, 8, 9), nil).Once()
		st.On("UpsertGradeRecord", models.GradeRecord{
			StudentID:  "joao.ferreira",
			OfferingID: 7,
			FinalGrade: 7.3,
			Attendance: 88,
		}).Return(nil).Once()

		sync, err := manager.SyncFromGrading("joao.ferreira", 7)
		require.NoError(t, err)
		assert.True(t, sync.Synced)
		st.AssertExpectations(t)
	})

	t.Run("applies post-recovery grade when make-up exists", func(t *testing.T) {
		st := new(MockStore)
		manager := NewManager(st, DefaultRules())

		graded := completeItems(4, 4, 5, 5, 5)
		graded = append(graded, models.GradedItem{Kind: models.KindExam, Sequence: 3, Grade: 8})

		st.On("GetGradeRecord", "joao.ferreira", int64(7)).
			Return(&models.GradeRecord{StudentID: "joao.ferreira", OfferingID: 7, FinalGrade: 4.3, Attendance: 80}, nil).Once()
		st.On("GetGradedItems", "joao.ferreira", int64(7)).Return(graded, nil).Once()
		st.On("UpsertGradeRecord", models.GradeRecord{
			StudentID:  "joao.ferreira",
			OfferingID: 7,
			FinalGrade: 6.15,
			Attendance: 80,
		}).Return(nil).Once()

		sync, err := manager.SyncFromGrading("joao.ferreira", 7)
		require.NoError(t, err)
		assert.True(t, sync.Synced)
		st.AssertExpectations(t)
	})
}

func TestManager_Visibility(t *testing.T) {
	t.Run("student reads only own records", func(t *testing.T) {
		st := new(MockStore)
		manager := NewManager(st, DefaultRules())

		_, err := manager.ListStudent(Actor{ID: "maria.souza", Role: RoleStudent}, "joao.ferreira")
		assert.True(t, errors.Is(err, ErrPermissionDenied))

		st.On("ListStudentRecords", "maria.souza").Return([]models.StudentRecord{}, nil).Once()
		_, err = manager.ListStudent(Actor{ID: "maria.souza", Role: RoleStudent}, "maria.souza")
		assert.NoError(t, err)
	})

	t.Run("student cannot list an offering", func(t *testing.T) {
		manager := NewManager(new(MockStore), DefaultRules())

		_, err := manager.ListOffering(Actor{ID: "maria.souza", Role: RoleStudent}, 7)
		assert.True(t, errors.Is(err, ErrPermissionDenied))
	})

	t.Run("teacher lists only assigned offerings", func(t *testing.T) {
		st := new(MockStore)
		manager := NewManager(st, DefaultRules())

		st.On("GetOffering", int64(7)).Return(mathOffering, nil).Twice()

		_, err := manager.ListOffering(Actor{ID: "carlos.lima", Role: RoleTeacher}, 7)
		assert.True(t, errors.Is(err, ErrPermissionDenied))

		st.On("ListOfferingRecords", int64(7)).Return([]models.GradeRecord{}, nil).Once()
		_, err = manager.ListOffering(Actor{ID: "ana.silva", Role: RoleTeacher}, 7)
		assert.NoError(t, err)
	})

	t.Run("teacher student listing drops unassigned offerings", func(t *testing.T) {
		st := new(MockStore)
		manager := NewManager(st, DefaultRules())

		st.On("ListStudentRecords", "joao.ferreira").Return([]models.StudentRecord{
			{StudentID: "joao.ferreira", OfferingID: 7, Subject: "Mathematics", FinalGrade: 7.3, Attendance: 90},
			{StudentID: "joao.ferreira", OfferingID: 8, Subject: "History", FinalGrade: 8.5, Attendance: 92},
		}, nil).Once()
		st.On("ListTeacherOfferings", "ana.silva").Return([]models.Offering{*mathOffering}, nil).Once()

		records, err := manager.ListStudent(Actor{ID: "ana.silva", Role: RoleTeacher}, "joao.ferreira")
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, int64(7), records[0].OfferingID)
		st.AssertExpectations(t)
	})

	t.Run("teacher with no assignments sees nothing", func(t *testing.T) {
		st := new(MockStore)
		manager := NewManager(st, DefaultRules())

		st.On("ListStudentRecords", "joao.ferreira").Return([]models.StudentRecord{
			{StudentID: "joao.ferreira", OfferingID: 7, Subject: "Mathematics", FinalGrade: 7.3, Attendance: 90},
		}, nil).Once()
		st.On("ListTeacherOfferings", "carlos.lima").Return([]models.Offering{}, nil).Once()

		records, err := manager.ListStudent(Actor{ID: "carlos.lima", Role: RoleTeacher}, "joao.ferreira")
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("admin sees everything", func(t *testing.T) {
		st := new(MockStore)
		manager := NewManager(st, DefaultRules())

		st.On("ListOfferingRecords", int64(7)).Return([]models.GradeRecord{}, nil).Once()
		_, err := manager.ListOffering(Actor{ID: "root", Role: RoleAdmin}, 7)
		assert.NoError(t, err)

		st.On("ListStudentRecords", "joao.ferreira").Return([]models.StudentRecord{
			{StudentID: "joao.ferreira", OfferingID: 7, Subject: "Mathematics", FinalGrade: 7.3, Attendance: 90},
			{StudentID: "joao.ferreira", OfferingID: 8, Subject: "History", FinalGrade: 8.5, Attendance: 92},
		}, nil).Once()
		records, err := manager.ListStudent(Actor{ID: "root", Role: RoleAdmin}, "joao.ferreira")
		require.NoError(t, err)
		assert.Len(t, records, 2)
		st.AssertNotCalled(t, "ListTeacherOfferings", mock.Anything)
	})
}

func TestManager_AuthorizeOffering(t *testing.T) {
	t.Run("admin passes", func(t *testing.T) {
		manager := NewManager(new(MockStore), DefaultRules())
		assert.NoError(t, manager.AuthorizeOffering(Actor{ID: "root", Role: RoleAdmin}, 7))
	})

	t.Run("assigned teacher passes", func(t *testing.T) {
		st := new(MockStore)
		manager := NewManager(st, DefaultRules())

		st.On("GetOffering", int64(7)).Return(mathOffering, nil).Once()
		assert.NoError(t, manager.AuthorizeOffering(Actor{ID: "ana.silva", Role: RoleTeacher}, 7))
	})

	t.Run("unassigned teacher is rejected", func(t *testing.T) {
		st := new(MockStore)
		manager := NewManager(st, DefaultRules())

		st.On("GetOffering", int64(7)).Return(mathOffering, nil).Once()
		err := manager.AuthorizeOffering(Actor{ID: "carlos.lima", Role: RoleTeacher}, 7)
		assert.True(t, errors.Is(err, ErrPermissionDenied))
	})

	t.Run("student is rejected", func(t *testing.T) {
		manager := NewManager(new(MockStore), DefaultRules())
		err := manager.AuthorizeOffering(Actor{ID: "joao.ferreira", Role: RoleStudent}, 7)
		assert.True(t, errors.Is(err, ErrPermissionDenied))
	})
}
