package localcache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/logger"
	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/types"
)

func newTestStore(t *testing.T) *FileStore {
	store, err := NewFileStore(t.TempDir(), logger.New("error"))
	require.NoError(t, err)
	return store
}

func TestFileStore_RoundTrip(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Set(KeyActiveTab, []byte(`"cases"`)))

	value, ok := store.Get(KeyActiveTab)
	assert.True(t, ok)
	assert.Equal(t, `"cases"`, string(value))
}

func TestFileStore_MissingKeyIsAbsent(t *testing.T) {
	store := newTestStore(t)

	_, ok := store.Get("neverWritten")
	assert.False(t, ok)
}

func TestFileStore_RemoveIsIdempotent(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Set(KeySelectedCase, []byte(`"c1"`)))
	assert.NoError(t, store.Remove(KeySelectedCase))

	_, ok := store.Get(KeySelectedCase)
	assert.False(t, ok)

	// Removing a missing entry is not an error
	assert.NoError(t, store.Remove(KeySelectedCase))
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	log := logger.New("error")

	store, err := NewFileStore(dir, log)
	require.NoError(t, err)
	require.NoError(t, SetJSON(store, KeyCurrentUser, &types.UserProfile{ID: "u1", Name: "张三", Role: types.RolePatient}))

	reopened, err := NewFileStore(dir, log)
	require.NoError(t, err)

	var profile types.UserProfile
	assert.True(t, GetJSON(reopened, KeyCurrentUser, &profile))
	assert.Equal(t, "u1", profile.ID)
	assert.Equal(t, "张三", profile.Name)
	assert.Equal(t, types.RolePatient, profile.Role)
}

func TestGetJSON_CaseListSurvivesFieldForField(t *testing.T) {
	store := newTestStore(t)

	original := []*types.MedicalCase{
		{
			ID:          "1715000000000000000",
			PatientID:   "patient-1",
			PatientName: "张三",
			ImageURL:    "data:image/png;base64,iVBOR",
			Description: "头痛三天",
			Timestamp:   "2026/01/05 09:30",
			Status:      types.CasePending,
			Messages: []types.CaseMessage{
				{
					ID:         "m1",
					SenderID:   "doctor-1",
					SenderName: "李医生",
					SenderRole: types.RoleDoctor,
					Text:       "还有别的症状吗",
					Timestamp:  "09:45",
					SyncState:  types.SyncStateSynced,
				},
			},
			HasUnreadForDoctor: true,
			Modality:           types.ModalityMRI,
			Tags:               []string{"neuro"},
			SyncState:          types.SyncStateLocalOnly,
		},
	}

	require.NoError(t, SetJSON(store, KeyCaseList, original))

	var restored []*types.MedicalCase
	require.True(t, GetJSON(store, KeyCaseList, &restored))
	require.Len(t, restored, 1)
	assert.Equal(t, original[0], restored[0])
}

func TestGetJSON_CorruptedEntryIsAbsent(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Set(KeyCaseList, []byte("{truncated")))

	var cases []*types.MedicalCase
	assert.False(t, GetJSON(store, KeyCaseList, &cases))
}

func TestFileStore_SanitizesKeysToSingleFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, logger.New("error"))
	require.NoError(t, err)

	require.NoError(t, store.Set("../escape", []byte("x")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, dir, filepath.Dir(filepath.Join(dir, entries[0].Name())))
}
