// internal/infra/secret/secret_sm.go
package secret

import (
	"context"
	"errors"
	"fmt"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	secretmanagerpb "cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

var (
	ErrNotConfigured = errors.New("secret: secret manager not configured")
	ErrEmptyPayload  = errors.New("secret: empty payload")
)

// ProviderSM reads secrets from Google Secret Manager.
type ProviderSM struct {
	SM        *secretmanager.Client
	ProjectID string
	Version   string // default "latest"
}

// Get returns the trimmed payload of secretID.
// secretID may also be a full resource name ("projects/.../secrets/.../versions/...").
func (p *ProviderSM) Get(ctx context.Context, secretID string) (string, error) {
	if p == nil || p.SM == nil {
		return "", ErrNotConfigured
	}
	name, err := VersionName(p.ProjectID, secretID, p.Version)
	if err != nil {
		return "", err
	}

	resp, err := p.SM.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		return "", fmt.Errorf("secret: AccessSecretVersion failed (%s): %w", name, err)
	}
	if resp == nil || resp.Payload == nil {
		return "", fmt.Errorf("%w (%s)", ErrEmptyPayload, name)
	}
	v := strings.TrimSpace(string(resp.Payload.Data))
	if v == "" {
		return "", fmt.Errorf("%w (%s)", ErrEmptyPayload, name)
	}
	return v, nil
}

// VersionName builds the secret version resource name.
func VersionName(projectID, secretID, version string) (string, error) {
	sid := strings.TrimSpace(secretID)
	if sid == "" {
		return "", errors.New("secret: secretID is empty")
	}
	if strings.HasPrefix(sid, "projects/") {
		if !strings.Contains(sid, "/versions/") {
			sid += "/versions/" + versionOrLatest(version)
		}
		return sid, nil
	}

	prj := strings.TrimSpace(projectID)
	if prj == "" {
		return "", errors.New("secret: projectID is empty")
	}
	return "projects/" + prj + "/secrets/" + sid + "/versions/" + versionOrLatest(version), nil
}

func versionOrLatest(v string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return "latest"
}
