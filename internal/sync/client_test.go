package sync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/config"
	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/logger"
	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/types"
)

func newTestClient(baseURL string) *Client {
	cfg := &config.SyncConfig{
		BaseURL:       baseURL,
		ReadTimeout:   5,
		UploadTimeout: 30,
	}
	return NewClient(cfg, logger.New("error"))
}

func TestListCases_SendsBearerTokenAndMarksSynced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/cases", r.URL.Path)
		assert.Equal(t, "Bearer token-123", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode([]*types.MedicalCase{
			{ID: "c1", Messages: []types.CaseMessage{{ID: "m1"}}},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	client.SetToken("token-123")

	cases, err := client.ListCases(context.Background())
	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Equal(t, types.SyncStateSynced, cases[0].SyncState)
	assert.Equal(t, types.SyncStateSynced, cases[0].Messages[0].SyncState)
}

func TestCreateCase_SendsMultipartForm(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/cases", r.URL.Path)

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "头痛三天", r.FormValue("description"))
		assert.Equal(t, "MRI", r.FormValue("modality"))
		assert.Equal(t, "neuro,urgent", r.FormValue("tags"))

		file, header, err := r.FormFile("image")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "scan.png", header.Filename)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(&types.MedicalCase{ID: "c1", Description: "头痛三天"})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	created, err := client.CreateCase(context.Background(), &types.CreateCaseInput{
		Description: "头痛三天",
		Modality:    types.ModalityMRI,
		Tags:        []string{"neuro", "urgent"},
		ImageName:   "scan.png",
		ImageData:   []byte{1, 2, 3},
	})

	require.NoError(t, err)
	assert.Equal(t, "c1", created.ID)
	assert.Equal(t, types.SyncStateSynced, created.SyncState)
}

func TestDo_UnreachableBackendYieldsNetworkError(t *testing.T) {
	// Nothing listens on this address
	client := newTestClient("http://127.0.0.1:1")

	_, err := client.ListCases(context.Background())
	require.Error(t, err)

	var netErr *types.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, "list_cases", netErr.Op)
	assert.NotNil(t, netErr.Cause)
}

func TestDo_NonSuccessStatusYieldsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{"message": "无权访问此病例"})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.SubmitDiagnosis(context.Background(), "c1", "feedback")
	require.Error(t, err)

	var srvErr *types.ServerError
	require.ErrorAs(t, err, &srvErr)
	assert.Equal(t, "submit_diagnosis", srvErr.Op)
	assert.Equal(t, http.StatusForbidden, srvErr.StatusCode)
	assert.Equal(t, "无权访问此病例", srvErr.Message)
}

func TestDo_CancelledContextYieldsNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := newTestClient(server.URL)
	err := client.MarkAsRead(ctx, "c1")
	require.Error(t, err)

	var netErr *types.NetworkError
	assert.ErrorAs(t, err, &netErr)
}

func TestDo_MalformedBodyYieldsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.ListCases(context.Background())
	require.Error(t, err)

	var srvErr *types.ServerError
	assert.ErrorAs(t, err, &srvErr)
}

func TestMarkAsRead_UsesPatchWithoutBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/api/cases/c1/read", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	assert.NoError(t, client.MarkAsRead(context.Background(), "c1"))
}
