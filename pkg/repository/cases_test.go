package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/logger"
	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/types"
)

func newCaseRepo(t *testing.T) (*CaseRepository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewCaseRepository(db, logger.New("error")), mock
}

func caseColumns() []string {
	return []string{
		"id", "patient_id", "patient_name", "image_url", "description", "status",
		"doctor_feedback", "doctor_name", "reply_timestamp",
		"has_unread_for_doctor", "has_unread_for_patient", "modality", "tags", "created_at",
	}
}

func messageColumns() []string {
	return []string{"id", "sender_id", "sender_name", "sender_role", "text", "timestamp"}
}

func TestList_DoctorViewQueriesAllCases(t *testing.T) {
	repo, mock := newCaseRepo(t)

	createdAt := time.Date(2026, 1, 5, 9, 30, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT (.+) FROM medical_cases ORDER BY created_at DESC`).
		WillReturnRows(sqlmock.NewRows(caseColumns()).
			AddRow("c1", "patient-1", "张三", nil, "头痛三天", "pending",
				nil, nil, nil, true, false, "MRI", "{neuro}", createdAt))
	mock.ExpectQuery(`SELECT (.+) FROM case_messages WHERE case_id = \$1`).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows(messageColumns()))

	cases, err := repo.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, cases, 1)

	mc := cases[0]
	assert.Equal(t, "c1", mc.ID)
	assert.Equal(t, "2026/01/05 09:30", mc.Timestamp)
	assert.Equal(t, types.ModalityMRI, mc.Modality)
	assert.Equal(t, []string{"neuro"}, []string(mc.Tags))
	assert.True(t, mc.HasUnreadForDoctor)
	assert.Equal(t, types.SyncStateSynced, mc.SyncState)
	assert.NotNil(t, mc.Messages)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestList_PatientViewFiltersByPatientID(t *testing.T) {
	repo, mock := newCaseRepo(t)

	mock.ExpectQuery(`SELECT (.+) FROM medical_cases WHERE patient_id = \$1 ORDER BY created_at DESC`).
		WithArgs("patient-1").
		WillReturnRows(sqlmock.NewRows(caseColumns()))

	cases, err := repo.List(context.Background(), "patient-1")
	require.NoError(t, err)
	assert.Empty(t, cases)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByID_LoadsMessageThread(t *testing.T) {
	repo, mock := newCaseRepo(t)

	createdAt := time.Date(2026, 1, 5, 9, 30, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT (.+) FROM medical_cases WHERE id = \$1`).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows(caseColumns()).
			AddRow("c1", "patient-1", "张三", nil, "头痛三天", "completed",
				"建议进一步检查", "李医生", "2026/01/05 10:00", false, true, nil, "{}", createdAt))
	mock.ExpectQuery(`SELECT (.+) FROM case_messages WHERE case_id = \$1`).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows(messageColumns()).
			AddRow("m1", "doctor-1", "李医生", "DOCTOR", "还有别的症状吗", "09:45"))

	mc, err := repo.GetByID(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, types.CaseCompleted, mc.Status)
	assert.Equal(t, "建议进一步检查", mc.DoctorFeedback)
	require.Len(t, mc.Messages, 1)
	assert.Equal(t, types.RoleDoctor, mc.Messages[0].SenderRole)
	assert.Equal(t, types.SyncStateSynced, mc.Messages[0].SyncState)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByID_MissingCaseIsNotFound(t *testing.T) {
	repo, mock := newCaseRepo(t)

	mock.ExpectQuery(`SELECT (.+) FROM medical_cases WHERE id = \$1`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(caseColumns()))

	_, err := repo.GetByID(context.Background(), "ghost")
	require.Error(t, err)

	appErr, ok := err.(*types.AppError)
	require.True(t, ok)
	assert.Equal(t, types.ErrorTypeNotFound, appErr.Type)
	assert.Equal(t, "病例不存在", appErr.Message)
}

func TestCreate_FormatsReturnedTimestamp(t *testing.T) {
	repo, mock := newCaseRepo(t)

	createdAt := time.Date(2026, 1, 5, 9, 30, 0, 0, time.UTC)
	mock.ExpectQuery(`INSERT INTO medical_cases`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(createdAt))

	mc := &types.MedicalCase{
		ID:                 "c1",
		PatientID:          "patient-1",
		PatientName:        "张三",
		Description:        "头痛三天",
		Status:             types.CasePending,
		HasUnreadForDoctor: true,
		Modality:           types.ModalityMRI,
		Tags:               []string{"neuro"},
	}

	require.NoError(t, repo.Create(context.Background(), mc))
	assert.Equal(t, "2026/01/05 09:30", mc.Timestamp)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddMessage_PatientMessageFlagsDoctor(t *testing.T) {
	repo, mock := newCaseRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO case_messages`).
		WithArgs("m1", "c1", "patient-1", "张三", "PATIENT", "您好", "09:30").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE medical_cases SET has_unread_for_doctor = \$1, has_unread_for_patient = \$2 WHERE id = \$3`).
		WithArgs(true, false, "c1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.AddMessage(context.Background(), "c1", &types.CaseMessage{
		ID:         "m1",
		SenderID:   "patient-1",
		SenderName: "张三",
		SenderRole: types.RolePatient,
		Text:       "您好",
		Timestamp:  "09:30",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddMessage_DoctorMessageFlagsPatient(t *testing.T) {
	repo, mock := newCaseRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO case_messages`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE medical_cases SET has_unread_for_doctor = \$1, has_unread_for_patient = \$2 WHERE id = \$3`).
		WithArgs(false, true, "c1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.AddMessage(context.Background(), "c1", &types.CaseMessage{
		ID:         "m2",
		SenderID:   "doctor-1",
		SenderRole: types.RoleDoctor,
		Text:       "请按时复诊",
		Timestamp:  "10:00",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetUnread_TargetsRoleColumn(t *testing.T) {
	repo, mock := newCaseRepo(t)

	mock.ExpectExec(`UPDATE medical_cases SET has_unread_for_doctor = \$1 WHERE id = \$2`).
		WithArgs(false, "c1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetUnread(context.Background(), "c1", types.RoleDoctor, false))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetUnread_MissingCaseIsNotFound(t *testing.T) {
	repo, mock := newCaseRepo(t)

	mock.ExpectExec(`UPDATE medical_cases SET has_unread_for_patient = \$1 WHERE id = \$2`).
		WithArgs(false, "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetUnread(context.Background(), "ghost", types.RolePatient, false)
	require.Error(t, err)

	appErr, ok := err.(*types.AppError)
	require.True(t, ok)
	assert.Equal(t, types.ErrorTypeNotFound, appErr.Type)
}

func TestSetDiagnosis_GuardsOnPendingStatus(t *testing.T) {
	repo, mock := newCaseRepo(t)

	mock.ExpectExec(`UPDATE medical_cases`).
		WithArgs("建议进一步检查", "李医生", "2026/01/05 10:00", "c1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetDiagnosis(context.Background(), "c1", "建议进一步检查", "李医生", "2026/01/05 10:00"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetDiagnosis_CompletedCaseNeverReverts(t *testing.T) {
	repo, mock := newCaseRepo(t)

	// Zero rows affected means the case was already completed
	mock.ExpectExec(`UPDATE medical_cases`).
		WithArgs("二次诊断", "李医生", "2026/01/05 11:00", "c1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetDiagnosis(context.Background(), "c1", "二次诊断", "李医生", "2026/01/05 11:00")
	require.Error(t, err)

	appErr, ok := err.(*types.AppError)
	require.True(t, ok)
	assert.Equal(t, types.ErrorTypeConflict, appErr.Type)
	assert.Equal(t, "CASE_NOT_PENDING", appErr.Code)
}
