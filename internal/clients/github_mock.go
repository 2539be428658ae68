package clients

import (
	"context"

	"github.com/google/go-github/v72/github"
)

// MockGitHubClient is a mock implementation of GitHubClientInterface for testing.
// It allows tests to verify service logic without making real GitHub API calls.
type MockGitHubClient struct {
	// ListWorkflowArtifactsFunc allows customizing the ListWorkflowArtifacts behavior
	ListWorkflowArtifactsFunc func(ctx context.Context, owner, repo string, workflowID int64) ([]*github.Artifact, error)

	// DownloadArtifactFunc allows customizing the DownloadArtifact behavior
	DownloadArtifactFunc func(ctx context.Context, owner, repo string, artifactID int64) ([]byte, error)

	// Call tracking for verification
	ListWorkflowArtifactsCalls []ListWorkflowArtifactsCall
	DownloadArtifactCalls      []DownloadArtifactCall
}

// Call tracking structs
type ListWorkflowArtifactsCall struct {
	Owner      string
	Repo       string
	WorkflowID int64
}

type DownloadArtifactCall struct {
	Owner      string
	Repo       string
	ArtifactID int64
}

// NewMockGitHubClient creates a new mock GitHub client with default implementations.
func NewMockGitHubClient() *MockGitHubClient {
	return &MockGitHubClient{
		ListWorkflowArtifactsCalls: make([]ListWorkflowArtifactsCall, 0),
		DownloadArtifactCalls:      make([]DownloadArtifactCall, 0),
	}
}

// ListWorkflowArtifacts implements GitHubClientInterface.
func (m *MockGitHubClient) ListWorkflowArtifacts(ctx context.Context, owner, repo string, workflowID int64) ([]*github.Artifact, error) {
	// Track the call
	m.ListWorkflowArtifactsCalls = append(m.ListWorkflowArtifactsCalls, ListWorkflowArtifactsCall{
		Owner:      owner,
		Repo:       repo,
		WorkflowID: workflowID,
	})

	// Use custom function if provided, otherwise return empty list
	if m.ListWorkflowArtifactsFunc != nil {
		return m.ListWorkflowArtifactsFunc(ctx, owner, repo, workflowID)
	}

	return []*github.Artifact{}, nil
}

// DownloadArtifact implements GitHubClientInterface.
func (m *MockGitHubClient) DownloadArtifact(ctx context.Context, owner, repo string, artifactID int64) ([]byte, error) {
	// Track the call
	m.DownloadArtifactCalls = append(m.DownloadArtifactCalls, DownloadArtifactCall{
		Owner:      owner,
		Repo:       repo,
		ArtifactID: artifactID,
	})

	// Use custom function if provided, otherwise return empty data
	if m.DownloadArtifactFunc != nil {
		return m.DownloadArtifactFunc(ctx, owner, repo, artifactID)
	}

	return []byte{}, nil
}

// SetListWorkflowArtifactsError configures the mock to return an error for ListWorkflowArtifacts calls.
func (m *MockGitHubClient) SetListWorkflowArtifactsError(err error) {
	m.ListWorkflowArtifactsFunc = func(ctx context.Context, owner, repo string, workflowID int64) ([]*github.Artifact, error) {
		return nil, err
	}
}

// SetDownloadArtifactError configures the mock to return an error for DownloadArtifact calls.
func (m *MockGitHubClient) SetDownloadArtifactError(err error) {
	m.DownloadArtifactFunc = func(ctx context.Context, owner, repo string, artifactID int64) ([]byte, error) {
		return nil, err
	}
}

// Reset clears all call tracking data.
func (m *MockGitHubClient) Reset() {
	m.ListWorkflowArtifactsCalls = make([]ListWorkflowArtifactsCall, 0)
	m.DownloadArtifactCalls = make([]DownloadArtifactCall, 0)
}

// Compile-time check to ensure MockGitHubClient implements GitHubClientInterface
var _ GitHubClientInterface = (*MockGitHubClient)(nil)
