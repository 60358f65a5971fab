package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/internal/localcache"
	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/logger"
	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/types"
)

// MockRemoteCaseService is a mock implementation of RemoteCaseService
type MockRemoteCaseService struct {
	mock.Mock
}

func (m *MockRemoteCaseService) ListCases(ctx context.Context) ([]*types.MedicalCase, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*types.MedicalCase), args.Error(1)
}

func (m *MockRemoteCaseService) CreateCase(ctx context.Context, input *types.CreateCaseInput) (*types.MedicalCase, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.MedicalCase), args.Error(1)
}

func (m *MockRemoteCaseService) SendMessage(ctx context.Context, caseID, text string) (*types.CaseMessage, error) {
	args := m.Called(ctx, caseID, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.CaseMessage), args.Error(1)
}

func (m *MockRemoteCaseService) SubmitDiagnosis(ctx context.Context, caseID, feedback string) (*types.MedicalCase, error) {
	args := m.Called(ctx, caseID, feedback)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.MedicalCase), args.Error(1)
}

func (m *MockRemoteCaseService) MarkAsRead(ctx context.Context, caseID string) error {
	args := m.Called(ctx, caseID)
	return args.Error(0)
}

// memoryStore is an in-memory LocalStore for tests
type memoryStore struct {
	entries map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{entries: make(map[string][]byte)}
}

func (s *memoryStore) Get(key string) ([]byte, bool) {
	value, ok := s.entries[key]
	return value, ok
}

func (s *memoryStore) Set(key string, value []byte) error {
	s.entries[key] = value
	return nil
}

func (s *memoryStore) Remove(key string) error {
	delete(s.entries, key)
	return nil
}

func setupCoordinator() (*Coordinator, *MockRemoteCaseService, *memoryStore) {
	remote := &MockRemoteCaseService{}
	store := newMemoryStore()
	coordinator := NewCoordinator(remote, store, logger.New("error"))
	return coordinator, remote, store
}

func patientSession() *types.UserProfile {
	return &types.UserProfile{ID: "patient-1", Name: "张三", Role: types.RolePatient}
}

func doctorSession() *types.UserProfile {
	return &types.UserProfile{ID: "doctor-1", Name: "李医生", Role: types.RoleDoctor}
}

func remoteCase(id string) *types.MedicalCase {
	return &types.MedicalCase{
		ID:          id,
		PatientID:   "patient-1",
		PatientName: "张三",
		Description: "desc " + id,
		Status:      types.CasePending,
		Messages:    []types.CaseMessage{},
		SyncState:   types.SyncStateSynced,
	}
}

func TestRefresh_ReplacesStateAndMirrors(t *testing.T) {
	coordinator, remote, store := setupCoordinator()

	remote.On("ListCases", mock.Anything).Return([]*types.MedicalCase{remoteCase("c1"), remoteCase("c2")}, nil).Once()
	coordinator.Refresh(context.Background())

	assert.Len(t, coordinator.Snapshot(), 2)

	// A shorter list on the next poll replaces state wholesale
	remote.On("ListCases", mock.Anything).Return([]*types.MedicalCase{remoteCase("c2")}, nil).Once()
	coordinator.Refresh(context.Background())

	snapshot := coordinator.Snapshot()
	assert.Len(t, snapshot, 1)
	assert.Equal(t, "c2", snapshot[0].ID)

	var mirrored []*types.MedicalCase
	assert.True(t, localcache.GetJSON(store, localcache.KeyCaseList, &mirrored))
	assert.Len(t, mirrored, 1)
}

func TestRefresh_FallsBackToCacheOnNetworkError(t *testing.T) {
	coordinator, remote, store := setupCoordinator()

	// Seed the cache as if mirrored by an earlier successful refresh
	assert.NoError(t, localcache.SetJSON(store, localcache.KeyCaseList, []*types.MedicalCase{remoteCase("c1")}))

	remote.On("ListCases", mock.Anything).Return(nil, &types.NetworkError{Op: "list_cases", Cause: errors.New("connection refused")}).Once()
	coordinator.Refresh(context.Background())

	snapshot := coordinator.Snapshot()
	assert.Len(t, snapshot, 1)
	assert.Equal(t, "c1", snapshot[0].ID)
}

func TestRefresh_FailureWithEmptyCacheLeavesStateUntouched(t *testing.T) {
	coordinator, remote, store := setupCoordinator()

	remote.On("ListCases", mock.Anything).Return([]*types.MedicalCase{remoteCase("c1")}, nil).Once()
	coordinator.Refresh(context.Background())

	// Cache is wiped behind the coordinator's back and the next poll fails
	assert.NoError(t, store.Remove(localcache.KeyCaseList))
	remote.On("ListCases", mock.Anything).Return(nil, &types.ServerError{Op: "list_cases", StatusCode: 500}).Once()
	coordinator.Refresh(context.Background())

	// In-memory state from the earlier success survives
	assert.Len(t, coordinator.Snapshot(), 1)
}

func TestRefresh_PreservesCaseIdentityAcrossPolls(t *testing.T) {
	coordinator, remote, _ := setupCoordinator()

	remote.On("ListCases", mock.Anything).Return([]*types.MedicalCase{remoteCase("c1")}, nil).Once()
	coordinator.Refresh(context.Background())

	held := coordinator.Case("c1")
	assert.NotNil(t, held)

	updated := remoteCase("c1")
	updated.Status = types.CaseCompleted
	remote.On("ListCases", mock.Anything).Return([]*types.MedicalCase{updated}, nil).Once()
	coordinator.Refresh(context.Background())

	// The held pointer sees the new contents
	assert.Same(t, held, coordinator.Case("c1"))
	assert.Equal(t, types.CaseCompleted, held.Status)
}

func TestCreateCase_RemoteSuccessPrepends(t *testing.T) {
	coordinator, remote, _ := setupCoordinator()
	coordinator.SetSession(patientSession())

	remote.On("ListCases", mock.Anything).Return([]*types.MedicalCase{remoteCase("c1")}, nil).Once()
	coordinator.Refresh(context.Background())

	input := &types.CreateCaseInput{Description: "头痛三天"}
	created := remoteCase("c2")
	created.Description = "头痛三天"
	remote.On("CreateCase", mock.Anything, input).Return(created, nil).Once()

	result := coordinator.CreateCase(context.Background(), input)
	assert.Equal(t, types.SyncStateSynced, result.SyncState)

	snapshot := coordinator.Snapshot()
	assert.Len(t, snapshot, 2)
	assert.Equal(t, "c2", snapshot[0].ID)
}

func TestCreateCase_FailureSynthesizesLocalCase(t *testing.T) {
	coordinator, remote, store := setupCoordinator()
	coordinator.SetSession(patientSession())

	input := &types.CreateCaseInput{
		Description: "头痛三天",
		ImageName:   "scan.png",
		ImageData:   []byte{0x89, 0x50, 0x4e, 0x47},
	}
	remote.On("CreateCase", mock.Anything, input).Return(nil, &types.NetworkError{Op: "create_case", Cause: errors.New("no route to host")}).Once()

	created := coordinator.CreateCase(context.Background(), input)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "patient-1", created.PatientID)
	assert.Equal(t, "张三", created.PatientName)
	assert.Equal(t, "头痛三天", created.Description)
	assert.Equal(t, types.CasePending, created.Status)
	assert.True(t, created.HasUnreadForDoctor)
	assert.False(t, created.HasUnreadForPatient)
	assert.Equal(t, types.SyncStateLocalOnly, created.SyncState)
	assert.Contains(t, created.ImageURL, "data:image/png;base64,")

	// Synthesized case lands at the head of the list and in the cache
	snapshot := coordinator.Snapshot()
	assert.Len(t, snapshot, 1)
	assert.Same(t, created, snapshot[0])

	var mirrored []*types.MedicalCase
	assert.True(t, localcache.GetJSON(store, localcache.KeyCaseList, &mirrored))
	assert.Len(t, mirrored, 1)
	assert.Equal(t, created.ID, mirrored[0].ID)
}

func TestSendMessage_FlipsUnreadToOppositeRole(t *testing.T) {
	coordinator, remote, _ := setupCoordinator()
	coordinator.SetSession(patientSession())

	remote.On("ListCases", mock.Anything).Return([]*types.MedicalCase{remoteCase("c1")}, nil).Once()
	coordinator.Refresh(context.Background())

	sent := &types.CaseMessage{
		ID:         "m1",
		SenderID:   "patient-1",
		SenderName: "张三",
		SenderRole: types.RolePatient,
		Text:       "还有别的症状吗",
		Timestamp:  "09:30",
		SyncState:  types.SyncStateSynced,
	}
	remote.On("SendMessage", mock.Anything, "c1", "还有别的症状吗").Return(sent, nil).Once()

	coordinator.SendMessage(context.Background(), "c1", "还有别的症状吗")

	mc := coordinator.Case("c1")
	assert.Len(t, mc.Messages, 1)
	assert.True(t, mc.HasUnreadForDoctor)
	assert.False(t, mc.HasUnreadForPatient)
}

func TestSendMessage_FailureSynthesizesLocalMessage(t *testing.T) {
	coordinator, remote, _ := setupCoordinator()
	coordinator.SetSession(doctorSession())

	remote.On("ListCases", mock.Anything).Return([]*types.MedicalCase{remoteCase("c1")}, nil).Once()
	coordinator.Refresh(context.Background())

	remote.On("SendMessage", mock.Anything, "c1", "请按时复诊").Return(nil, &types.ServerError{Op: "send_message", StatusCode: 502}).Once()

	msg := coordinator.SendMessage(context.Background(), "c1", "请按时复诊")

	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "doctor-1", msg.SenderID)
	assert.Equal(t, types.RoleDoctor, msg.SenderRole)
	assert.Equal(t, types.SyncStateLocalOnly, msg.SyncState)

	mc := coordinator.Case("c1")
	assert.Len(t, mc.Messages, 1)
	assert.True(t, mc.HasUnreadForPatient)
	assert.False(t, mc.HasUnreadForDoctor)
}

func TestSubmitDiagnosis_RemoteSuccessUpdatesInPlace(t *testing.T) {
	coordinator, remote, _ := setupCoordinator()
	coordinator.SetSession(doctorSession())

	seeded := remoteCase("c1")
	seeded.Messages = []types.CaseMessage{{ID: "m1", Text: "hi"}}
	remote.On("ListCases", mock.Anything).Return([]*types.MedicalCase{seeded}, nil).Once()
	coordinator.Refresh(context.Background())

	held := coordinator.Case("c1")

	updated := remoteCase("c1")
	updated.Status = types.CaseCompleted
	updated.DoctorFeedback = "建议进一步检查"
	updated.DoctorName = "李医生"
	updated.ReplyTimestamp = "2026/01/05 10:00"
	updated.HasUnreadForPatient = true
	updated.Messages = nil
	remote.On("SubmitDiagnosis", mock.Anything, "c1", "建议进一步检查").Return(updated, nil).Once()

	result := coordinator.SubmitDiagnosis(context.Background(), "c1", "建议进一步检查")

	assert.Same(t, held, result)
	assert.Equal(t, types.CaseCompleted, held.Status)
	assert.Equal(t, "建议进一步检查", held.DoctorFeedback)
	assert.Equal(t, "李医生", held.DoctorName)
	assert.True(t, held.HasUnreadForPatient)
	// The message thread survives the server payload omitting it
	assert.Len(t, held.Messages, 1)
}

func TestSubmitDiagnosis_FailureAppliesTransitionLocally(t *testing.T) {
	coordinator, remote, _ := setupCoordinator()
	coordinator.SetSession(doctorSession())

	remote.On("ListCases", mock.Anything).Return([]*types.MedicalCase{remoteCase("c1")}, nil).Once()
	coordinator.Refresh(context.Background())

	remote.On("SubmitDiagnosis", mock.Anything, "c1", "建议进一步检查").Return(nil, &types.NetworkError{Op: "submit_diagnosis", Cause: errors.New("timeout")}).Once()

	result := coordinator.SubmitDiagnosis(context.Background(), "c1", "建议进一步检查")

	assert.Equal(t, types.CaseCompleted, result.Status)
	assert.Equal(t, "建议进一步检查", result.DoctorFeedback)
	assert.Equal(t, "李医生", result.DoctorName)
	assert.NotEmpty(t, result.ReplyTimestamp)
	assert.True(t, result.HasUnreadForPatient)
	assert.Equal(t, types.SyncStateLocalOnly, result.SyncState)
}

func TestMarkAsRead_ClearsLocallyEvenWhenRemoteFails(t *testing.T) {
	coordinator, remote, _ := setupCoordinator()
	coordinator.SetSession(doctorSession())

	seeded := remoteCase("c1")
	seeded.HasUnreadForDoctor = true
	remote.On("ListCases", mock.Anything).Return([]*types.MedicalCase{seeded}, nil).Once()
	coordinator.Refresh(context.Background())

	remote.On("MarkAsRead", mock.Anything, "c1").Return(&types.NetworkError{Op: "mark_as_read", Cause: errors.New("unreachable")})

	coordinator.MarkAsRead(context.Background(), "c1", types.RoleDoctor)
	assert.False(t, coordinator.Case("c1").HasUnreadForDoctor)

	// Idempotent: a second clear on an already-clear flag is harmless
	coordinator.MarkAsRead(context.Background(), "c1", types.RoleDoctor)
	assert.False(t, coordinator.Case("c1").HasUnreadForDoctor)
}

func TestSession_RecoversFromCacheAfterRestart(t *testing.T) {
	coordinator, _, store := setupCoordinator()
	coordinator.SetSession(patientSession())

	// A fresh coordinator over the same store sees the cached session
	restarted := NewCoordinator(&MockRemoteCaseService{}, store, logger.New("error"))
	session := restarted.Session()
	assert.NotNil(t, session)
	assert.Equal(t, "patient-1", session.ID)
	assert.Equal(t, types.RolePatient, session.Role)

	restarted.ClearSession()
	assert.Nil(t, restarted.Session())
}
