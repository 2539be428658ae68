package handlers

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/webhooks/v6/github"
	gogithub "github.com/google/go-github/v72/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argus-sec/argus/internal/bundle"
	"github.com/argus-sec/argus/internal/clients"
	"github.com/argus-sec/argus/internal/services"
	"github.com/argus-sec/argus/internal/storage"
	"github.com/argus-sec/argus/internal/testutils"
)

func newTestWebhookHandler(
	t *testing.T,
	githubClient clients.GitHubClientInterface,
) (*WebhookHandler, *storage.MemoryDataPlane) {
	t.Helper()

	logger := testutils.NewTestLogger()
	store := storage.NewMemoryDataPlane()
	loader := bundle.NewLoader(logger)
	intel := services.NewIntelService(services.NewStaticIntelProvider(), logger)
	pipeline := services.NewPipelineService(store, loader, intel, logger)

	handler, err := NewWebhookHandler(logger, pipeline, loader, githubClient)
	require.NoError(t, err)

	return handler, store
}

func bundleZip(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer

	zw := zip.NewWriter(&buf)

	files := map[string][]byte{
		"sbom.cdx.json": testutils.CycloneDXDocument(),
		"scan.sarif":    testutils.SarifDocument(),
	}
	for name, content := range files {
		f, err := zw.Create(name)
		require.NoError(t, err)
		_, err = f.Write(content)
		require.NoError(t, err)
	}

	require.NoError(t, zw.Close())

	return buf.Bytes()
}

func workflowRunEvent(action, conclusion string) github.WorkflowRunPayload {
	var event github.WorkflowRunPayload

	event.Action = action
	event.WorkflowRun.ID = 128
	event.WorkflowRun.Conclusion = conclusion
	event.Repository.Name = "payment-service"
	event.Repository.Owner.Login = "acme"

	return event
}

func TestNewWebhookHandler(t *testing.T) {
	handler, _ := newTestWebhookHandler(t, clients.NewMockGitHubClient())

	assert.NotNil(t, handler)
	assert.NotNil(t, handler.hook)
	assert.NotNil(t, handler.pipeline)
}

func TestHandleWorkflowRunEvent_IgnoresIncompleteRuns(t *testing.T) {
	tests := []struct {
		name       string
		action     string
		conclusion string
	}{
		{"requested run", "requested", ""},
		{"in progress run", "in_progress", ""},
		{"failed run", "completed", "failure"},
		{"cancelled run", "completed", "cancelled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockClient := clients.NewMockGitHubClient()
			handler, _ := newTestWebhookHandler(t, mockClient)

			err := handler.handleWorkflowRunEvent(
				context.Background(),
				workflowRunEvent(tt.action, tt.conclusion),
			)
			require.NoError(t, err)

			assert.Empty(t, mockClient.ListWorkflowArtifactsCalls)
		})
	}
}

func TestHandleWorkflowRunEvent_AcquiresArtifacts(t *testing.T) {
	archive := bundleZip(t)

	mockClient := clients.NewMockGitHubClient()
	mockClient.ListWorkflowArtifactsFunc = func(_ context.Context, _, _ string, _ int64) ([]*gogithub.Artifact, error) {
		return []*gogithub.Artifact{
			{
				ID:   gogithub.Ptr(int64(7)),
				Name: gogithub.Ptr("security-bundle"),
			},
		}, nil
	}
	mockClient.DownloadArtifactFunc = func(_ context.Context, _, _ string, _ int64) ([]byte, error) {
		return archive, nil
	}

	handler, store := newTestWebhookHandler(t, mockClient)

	err := handler.handleWorkflowRunEvent(
		context.Background(),
		workflowRunEvent("completed", "success"),
	)
	require.NoError(t, err)

	require.Len(t, mockClient.ListWorkflowArtifactsCalls, 1)
	assert.Equal(t, "acme", mockClient.ListWorkflowArtifactsCalls[0].Owner)
	assert.Equal(t, int64(128), mockClient.ListWorkflowArtifactsCalls[0].WorkflowID)
	require.Len(t, mockClient.DownloadArtifactCalls, 1)
	assert.Equal(t, int64(7), mockClient.DownloadArtifactCalls[0].ArtifactID)

	ctx := context.Background()
	for _, index := range []storage.Index{
		storage.IndexArtifacts,
		storage.IndexFindings,
		storage.IndexSBOM,
	} {
		count, err := store.CountRecords(ctx, index)
		require.NoError(t, err)
		assert.Positive(t, count, "index %s should hold records", index)
	}
}

func TestHandleWorkflowRunEvent_SkipsExpiredArtifacts(t *testing.T) {
	mockClient := clients.NewMockGitHubClient()
	mockClient.ListWorkflowArtifactsFunc = func(_ context.Context, _, _ string, _ int64) ([]*gogithub.Artifact, error) {
		return []*gogithub.Artifact{
			{
				ID:      gogithub.Ptr(int64(7)),
				Name:    gogithub.Ptr("security-bundle"),
				Expired: gogithub.Ptr(true),
			},
		}, nil
	}

	handler, _ := newTestWebhookHandler(t, mockClient)

	err := handler.handleWorkflowRunEvent(
		context.Background(),
		workflowRunEvent("completed", "success"),
	)
	require.NoError(t, err)

	assert.Empty(t, mockClient.DownloadArtifactCalls)
}

func TestHandleWorkflowRunEvent_DownloadFailure(t *testing.T) {
	mockClient := clients.NewMockGitHubClient()
	mockClient.ListWorkflowArtifactsFunc = func(_ context.Context, _, _ string, _ int64) ([]*gogithub.Artifact, error) {
		return []*gogithub.Artifact{
			{
				ID:   gogithub.Ptr(int64(7)),
				Name: gogithub.Ptr("security-bundle"),
			},
		}, nil
	}
	mockClient.SetDownloadArtifactError(assert.AnError)

	handler, _ := newTestWebhookHandler(t, mockClient)

	err := handler.handleWorkflowRunEvent(
		context.Background(),
		workflowRunEvent("completed", "success"),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "security-bundle")
}

func TestHandleWebhook_UnsupportedEvent(t *testing.T) {
	handler, _ := newTestWebhookHandler(t, clients.NewMockGitHubClient())

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{}`))
	req.Header.Set("X-GitHub-Event", "push")
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	handler.HandleWebhook(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
