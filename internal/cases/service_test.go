package cases

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/logger"
	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/types"
)

// MockCaseRepository is a mock implementation of CaseRepositoryInterface
type MockCaseRepository struct {
	mock.Mock
}

func (m *MockCaseRepository) List(ctx context.Context, patientID string) ([]*types.MedicalCase, error) {
	args := m.Called(ctx, patientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*types.MedicalCase), args.Error(1)
}

func (m *MockCaseRepository) GetByID(ctx context.Context, caseID string) (*types.MedicalCase, error) {
	args := m.Called(ctx, caseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.MedicalCase), args.Error(1)
}

func (m *MockCaseRepository) Create(ctx context.Context, c *types.MedicalCase) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockCaseRepository) AddMessage(ctx context.Context, caseID string, msg *types.CaseMessage) error {
	args := m.Called(ctx, caseID, msg)
	return args.Error(0)
}

func (m *MockCaseRepository) SetUnread(ctx context.Context, caseID string, role types.UserRole, unread bool) error {
	args := m.Called(ctx, caseID, role, unread)
	return args.Error(0)
}

func (m *MockCaseRepository) SetDiagnosis(ctx context.Context, caseID, feedback, doctorName, replyTimestamp string) error {
	args := m.Called(ctx, caseID, feedback, doctorName, replyTimestamp)
	return args.Error(0)
}

// fakeImageStore records saves without touching the filesystem
type fakeImageStore struct {
	saved int
	fail  bool
}

func (s *fakeImageStore) Save(ctx context.Context, caseID, filename string, data []byte) (string, error) {
	if s.fail {
		return "", assert.AnError
	}
	s.saved++
	return "/images/" + caseID + ".png", nil
}

func setupCaseService() (*Service, *MockCaseRepository, *fakeImageStore) {
	repo := &MockCaseRepository{}
	images := &fakeImageStore{}
	return NewService(repo, images, logger.New("error")), repo, images
}

func patientUser() *types.UserProfile {
	return &types.UserProfile{ID: "patient-1", Name: "张三", Role: types.RolePatient}
}

func doctorUser() *types.UserProfile {
	return &types.UserProfile{ID: "doctor-1", Name: "李医生", Role: types.RoleDoctor}
}

func storedCase(id, patientID string) *types.MedicalCase {
	return &types.MedicalCase{
		ID:          id,
		PatientID:   patientID,
		PatientName: "张三",
		Description: "头痛三天",
		Status:      types.CasePending,
		Messages:    []types.CaseMessage{},
	}
}

func TestListCases_PatientScopedToOwnCases(t *testing.T) {
	service, repo, _ := setupCaseService()

	repo.On("List", mock.Anything, "patient-1").Return([]*types.MedicalCase{storedCase("c1", "patient-1")}, nil)

	cases, err := service.ListCases(context.Background(), patientUser())
	require.NoError(t, err)
	assert.Len(t, cases, 1)
	repo.AssertCalled(t, "List", mock.Anything, "patient-1")
}

func TestListCases_DoctorSeesAll(t *testing.T) {
	service, repo, _ := setupCaseService()

	repo.On("List", mock.Anything, "").Return([]*types.MedicalCase{
		storedCase("c1", "patient-1"),
		storedCase("c2", "patient-2"),
	}, nil)

	cases, err := service.ListCases(context.Background(), doctorUser())
	require.NoError(t, err)
	assert.Len(t, cases, 2)
}

func TestGetCase_PatientCannotReadOthersCase(t *testing.T) {
	service, repo, _ := setupCaseService()

	repo.On("GetByID", mock.Anything, "c1").Return(storedCase("c1", "patient-2"), nil)

	_, err := service.GetCase(context.Background(), patientUser(), "c1")
	require.Error(t, err)

	appErr, ok := err.(*types.AppError)
	require.True(t, ok)
	assert.Equal(t, types.ErrorTypeAuthorization, appErr.Type)
	assert.Equal(t, "无权访问此病例", appErr.Message)
}

func TestGetCase_ReadClearsViewerUnreadFlag(t *testing.T) {
	service, repo, _ := setupCaseService()

	mc := storedCase("c1", "patient-1")
	mc.HasUnreadForDoctor = true
	repo.On("GetByID", mock.Anything, "c1").Return(mc, nil)
	repo.On("SetUnread", mock.Anything, "c1", types.RoleDoctor, false).Return(nil).Once()

	result, err := service.GetCase(context.Background(), doctorUser(), "c1")
	require.NoError(t, err)
	assert.False(t, result.HasUnreadForDoctor)
	repo.AssertExpectations(t)
}

func TestGetCase_NoUnreadNoWrite(t *testing.T) {
	service, repo, _ := setupCaseService()

	repo.On("GetByID", mock.Anything, "c1").Return(storedCase("c1", "patient-1"), nil)

	_, err := service.GetCase(context.Background(), doctorUser(), "c1")
	require.NoError(t, err)
	repo.AssertNotCalled(t, "SetUnread", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateCase_DoctorForbidden(t *testing.T) {
	service, _, _ := setupCaseService()

	_, err := service.CreateCase(context.Background(), doctorUser(), &types.CreateCaseInput{Description: "x"})
	require.Error(t, err)

	appErr, ok := err.(*types.AppError)
	require.True(t, ok)
	assert.Equal(t, "只有患者可以创建病例", appErr.Message)
}

func TestCreateCase_InitialFlagsFavorDoctor(t *testing.T) {
	service, repo, images := setupCaseService()

	repo.On("Create", mock.Anything, mock.AnythingOfType("*types.MedicalCase")).Return(nil)

	created, err := service.CreateCase(context.Background(), patientUser(), &types.CreateCaseInput{
		Description: "头痛三天",
		ImageName:   "scan.png",
		ImageData:   []byte{1, 2, 3},
	})
	require.NoError(t, err)

	assert.Equal(t, "patient-1", created.PatientID)
	assert.Equal(t, types.CasePending, created.Status)
	assert.True(t, created.HasUnreadForDoctor)
	assert.False(t, created.HasUnreadForPatient)
	assert.NotEmpty(t, created.ImageURL)
	assert.Equal(t, 1, images.saved)
}

func TestCreateCase_ImageFailureStillCreatesCase(t *testing.T) {
	service, repo, images := setupCaseService()
	images.fail = true

	repo.On("Create", mock.Anything, mock.AnythingOfType("*types.MedicalCase")).Return(nil)

	created, err := service.CreateCase(context.Background(), patientUser(), &types.CreateCaseInput{
		Description: "头痛三天",
		ImageName:   "scan.png",
		ImageData:   []byte{1, 2, 3},
	})
	require.NoError(t, err)
	assert.Empty(t, created.ImageURL)
}

func TestSendMessage_PatientScopedToOwnCase(t *testing.T) {
	service, repo, _ := setupCaseService()

	repo.On("GetByID", mock.Anything, "c1").Return(storedCase("c1", "patient-2"), nil)

	_, err := service.SendMessage(context.Background(), patientUser(), "c1", "您好")
	require.Error(t, err)
}

func TestSendMessage_StampsSenderAndTime(t *testing.T) {
	service, repo, _ := setupCaseService()

	repo.On("GetByID", mock.Anything, "c1").Return(storedCase("c1", "patient-1"), nil)
	repo.On("AddMessage", mock.Anything, "c1", mock.AnythingOfType("*types.CaseMessage")).Return(nil)

	msg, err := service.SendMessage(context.Background(), patientUser(), "c1", "您好")
	require.NoError(t, err)

	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "patient-1", msg.SenderID)
	assert.Equal(t, types.RolePatient, msg.SenderRole)
	assert.Equal(t, "您好", msg.Text)
	assert.Regexp(t, `^\d{2}:\d{2}$`, msg.Timestamp)
}

func TestSubmitDiagnosis_PatientForbidden(t *testing.T) {
	service, _, _ := setupCaseService()

	_, err := service.SubmitDiagnosis(context.Background(), patientUser(), "c1", "建议进一步检查")
	require.Error(t, err)

	appErr, ok := err.(*types.AppError)
	require.True(t, ok)
	assert.Equal(t, "只有医生可以提交诊断", appErr.Message)
}

func TestSubmitDiagnosis_RecordsFeedbackAndReturnsCase(t *testing.T) {
	service, repo, _ := setupCaseService()

	completed := storedCase("c1", "patient-1")
	completed.Status = types.CaseCompleted
	completed.DoctorFeedback = "建议进一步检查"

	repo.On("SetDiagnosis", mock.Anything, "c1", "建议进一步检查", "李医生", mock.AnythingOfType("string")).Return(nil)
	repo.On("GetByID", mock.Anything, "c1").Return(completed, nil)

	result, err := service.SubmitDiagnosis(context.Background(), doctorUser(), "c1", "建议进一步检查")
	require.NoError(t, err)
	assert.Equal(t, types.CaseCompleted, result.Status)
	assert.Equal(t, "建议进一步检查", result.DoctorFeedback)
}

func TestSubmitDiagnosis_AlreadyCompletedSurfacesConflict(t *testing.T) {
	service, repo, _ := setupCaseService()

	repo.On("SetDiagnosis", mock.Anything, "c1", "二次诊断", "李医生", mock.AnythingOfType("string")).
		Return(types.NewConflictError("CASE_NOT_PENDING", "病例已完成诊断"))

	_, err := service.SubmitDiagnosis(context.Background(), doctorUser(), "c1", "二次诊断")
	require.Error(t, err)

	appErr, ok := err.(*types.AppError)
	require.True(t, ok)
	assert.Equal(t, types.ErrorTypeConflict, appErr.Type)
}

func TestMarkAsRead_DelegatesForCallerRole(t *testing.T) {
	service, repo, _ := setupCaseService()

	repo.On("SetUnread", mock.Anything, "c1", types.RolePatient, false).Return(nil)

	assert.NoError(t, service.MarkAsRead(context.Background(), patientUser(), "c1"))
	repo.AssertExpectations(t)
}
