package clients

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v72/github"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// GitHubClientInterface is the slice of the GitHub API the acquisition flow
// needs: discovering and downloading workflow artifacts.
type GitHubClientInterface interface {
	ListWorkflowArtifacts(ctx context.Context, owner, repo string, workflowID int64) ([]*github.Artifact, error)
	DownloadArtifact(ctx context.Context, owner, repo string, artifactID int64) ([]byte, error)
}

type GitHubClient struct {
	client *github.Client
}

// GitHubAppConfig holds the configuration for GitHub App authentication
type GitHubAppConfig struct {
	AppID          int64
	InstallationID int64
	PrivateKey     []byte
	BaseURL        string
	UploadURL      string
}

// NewGitHubClient initializes a new unauthenticated GitHub client.
func NewGitHubClient(ctx context.Context) *GitHubClient {
	return &GitHubClient{
		client: github.NewClient(nil),
	}
}

// NewGitHubAppClient initializes a new GitHub client for GitHub App authentication.
func NewGitHubAppClient(ctx context.Context, config GitHubAppConfig) (*GitHubClient, error) {
	// Create a GitHub app transport
	transport, err := ghinstallation.New(
		otelhttp.NewTransport(http.DefaultTransport), // Wrap the default transport with OpenTelemetry instrumentation
		config.AppID,
		config.InstallationID,
		config.PrivateKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub app transport: %w", err)
	}

	httpClient := &http.Client{Transport: transport}
	client := github.NewClient(httpClient)

	if config.BaseURL != "" {
		uploadURL := config.UploadURL
		if uploadURL == "" {
			uploadURL = config.BaseURL
		}

		client, err = client.WithEnterpriseURLs(config.BaseURL, uploadURL)
		if err != nil {
			return nil, fmt.Errorf("failed to set enterprise URLs: %w", err)
		}
	}

	return &GitHubClient{
		client: client,
	}, nil
}

// Authenticate authenticates the GitHub client using a personal access token.
func (c *GitHubClient) Authenticate(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("authentication token is required")
	}

	c.client = github.NewTokenClient(ctx, token)

	return nil
}

// ListWorkflowArtifacts lists all artifacts for a given workflow run in a repository.
func (c *GitHubClient) ListWorkflowArtifacts(ctx context.Context, owner, repo string, workflowID int64) ([]*github.Artifact, error) {
	var allArtifacts []*github.Artifact

	opts := &github.ListOptions{
		Page:    1,
		PerPage: 100,
	}

	for {
		artifacts, resp, err := c.client.Actions.ListWorkflowRunArtifacts(ctx, owner, repo, workflowID, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list workflow artifacts: %w", err)
		}

		allArtifacts = append(allArtifacts, artifacts.Artifacts...)

		if resp.NextPage == 0 {
			break
		}

		opts.Page = resp.NextPage
	}

	return allArtifacts, nil
}

// DownloadArtifact downloads a specific artifact by its ID from a workflow run.
func (c *GitHubClient) DownloadArtifact(ctx context.Context, owner, repo string, artifactID int64) ([]byte, error) {
	const maxArtifactSize = 100 * 1024 * 1024 // 100 MB limit

	// Get artifact metadata to check size
	artifact, _, err := c.client.Actions.GetArtifact(ctx, owner, repo, artifactID)
	if err != nil {
		return nil, fmt.Errorf("failed to get artifact metadata: %w", err)
	}

	if artifact.GetSizeInBytes() > maxArtifactSize {
		return nil, fmt.Errorf("artifact size exceeds maximum limit of %d bytes", maxArtifactSize)
	}

	// Download the artifact
	url, _, err := c.client.Actions.DownloadArtifact(ctx, owner, repo, artifactID, 2)
	if err != nil {
		return nil, fmt.Errorf("failed to download artifact: %w", err)
	}

	// Use a clean HTTP client for downloading (Azure blob storage doesn't need GitHub auth)
	httpClient := &http.Client{
		Timeout: 60 * time.Second,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to perform download request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download artifact: received status code %d", resp.StatusCode)
	}

	// Limit reader to prevent excessive memory usage
	limitedReader := io.LimitReader(resp.Body, maxArtifactSize)

	content, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact content: %w", err)
	}

	return content, nil
}
