// Package gcp resolves secret references from GCP Secret Manager.
//
// Config values like github.token_secret and llm.api_key_secret name
// Secret Manager entries instead of embedding credentials in the config
// file. A reference is either a full resource path
// (projects/P/secrets/S[/versions/V]) or a bare secret name resolved
// against the ambient project.
package gcp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/option"
)

// SecretResolver resolves a secret reference to its plaintext value.
type SecretResolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
	Close() error
}

// Resolver fetches secrets from GCP Secret Manager.
type Resolver struct {
	client    *secretmanager.Client
	projectID string
}

// NewResolver creates a Secret Manager backed resolver. The project ID
// comes from the environment or, on GCP, the metadata server; it is only
// needed for bare secret names, so failure to determine it is not fatal.
func NewResolver(ctx context.Context, opts ...option.ClientOption) (*Resolver, error) {
	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create secret manager client: %w", err)
	}
	projectID, _ := detectProjectID(ctx)
	return &Resolver{client: client, projectID: projectID}, nil
}

// Resolve fetches the secret named by ref and returns its payload with
// surrounding whitespace trimmed.
func (r *Resolver) Resolve(ctx context.Context, ref string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	name, err := r.normalize(ref)
	if err != nil {
		return "", err
	}

	result, err := r.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: name,
	})
	if err != nil {
		return "", fmt.Errorf("failed to access secret %s: %w", name, err)
	}
	return strings.TrimSpace(string(result.Payload.Data)), nil
}

// Close releases the underlying client.
func (r *Resolver) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// normalize expands a secret reference into a full version resource name.
func (r *Resolver) normalize(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("secret reference is empty")
	}
	if strings.HasPrefix(ref, "projects/") {
		if strings.Contains(ref, "/versions/") {
			return ref, nil
		}
		if strings.Contains(ref, "/secrets/") {
			return ref + "/versions/latest", nil
		}
		return "", fmt.Errorf("malformed secret reference %q", ref)
	}
	if strings.Contains(ref, "/") {
		return "", fmt.Errorf("malformed secret reference %q", ref)
	}
	if r.projectID == "" {
		return "", fmt.Errorf("secret %q needs a project: set GOOGLE_CLOUD_PROJECT or use a full resource path", ref)
	}
	return fmt.Sprintf("projects/%s/secrets/%s/versions/latest", r.projectID, ref), nil
}

// detectProjectID looks up the GCP project from the environment, then the
// metadata server (available on GCE, Cloud Run, GKE).
func detectProjectID(ctx context.Context) (string, error) {
	for _, env := range []string{"GOOGLE_CLOUD_PROJECT", "GCP_PROJECT", "GCLOUD_PROJECT"} {
		if id := os.Getenv(env); id != "" {
			return id, nil
		}
	}
	return projectIDFromMetadata(ctx)
}

func projectIDFromMetadata(ctx context.Context) (string, error) {
	const metadataURL = "http://metadata.google.internal/computeMetadata/v1/project/project-id"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, metadataURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create metadata request: %w", err)
	}
	req.Header.Set("Metadata-Flavor", "Google")

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to query metadata server: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("metadata server returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read metadata response: %w", err)
	}
	id := strings.TrimSpace(string(body))
	if id == "" {
		return "", fmt.Errorf("metadata server returned empty project ID")
	}
	return id, nil
}
