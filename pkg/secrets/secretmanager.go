package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

// Accessor reads the payload of a secret version by resource name.
type Accessor interface {
	Access(ctx context.Context, name string) ([]byte, error)
}

// OverlayConfig selects which environment keys are resolved from Secret Manager.
//
// Each key is either a bare environment name ("DB_PASSWORD"), resolved to
// projects/<project>/secrets/db-password/versions/latest, or an explicit
// mapping ("DB_PASSWORD=projects/p/secrets/pg/versions/3").
type OverlayConfig struct {
	Enabled   bool
	ProjectID string
	Keys      []string
	Overwrite bool
	Timeout   time.Duration
}

// OverlayResult reports what the overlay did.
type OverlayResult struct {
	Loaded  []string
	Skipped []string
	Failed  map[string]error
}

// Apply resolves the configured keys and exports them into the process
// environment. Keys that already have a value are skipped unless Overwrite is
// set. Per-key failures are collected rather than aborting the whole overlay.
func Apply(ctx context.Context, cfg OverlayConfig, accessor Accessor) (OverlayResult, error) {
	result := OverlayResult{Failed: map[string]error{}}
	if !cfg.Enabled {
		return result, nil
	}
	if accessor == nil {
		return result, errors.New("secret manager accessor is nil")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	for _, raw := range cfg.Keys {
		envKey, name, err := resolveName(raw, cfg.ProjectID)
		if err != nil {
			result.Failed[raw] = err
			continue
		}
		if !cfg.Overwrite && os.Getenv(envKey) != "" {
			result.Skipped = append(result.Skipped, envKey)
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, timeout)
		payload, err := accessor.Access(callCtx, name)
		cancel()
		if err != nil {
			result.Failed[envKey] = err
			continue
		}

		if err := os.Setenv(envKey, strings.TrimRight(string(payload), "\r\n")); err != nil {
			result.Failed[envKey] = err
			continue
		}
		result.Loaded = append(result.Loaded, envKey)
	}

	return result, nil
}

func resolveName(raw, projectID string) (string, string, error) {
	raw = strings.TrimSpace(raw)
	if key, name, ok := strings.Cut(raw, "="); ok {
		key, name = strings.TrimSpace(key), strings.TrimSpace(name)
		if key == "" || name == "" {
			return "", "", fmt.Errorf("invalid secret mapping %q", raw)
		}
		return key, name, nil
	}
	if raw == "" {
		return "", "", errors.New("empty secret key")
	}
	if projectID == "" {
		return "", "", fmt.Errorf("project id required to resolve secret for %s", raw)
	}
	secretID := strings.ReplaceAll(strings.ToLower(raw), "_", "-")
	return raw, fmt.Sprintf("projects/%s/secrets/%s/versions/latest", projectID, secretID), nil
}

// ManagerAccessor reads secrets through the Secret Manager API.
type ManagerAccessor struct {
	client *secretmanager.Client
}

// NewManagerAccessor creates an accessor using application default credentials.
func NewManagerAccessor(ctx context.Context) (*ManagerAccessor, error) {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create secret manager client: %w", err)
	}
	return &ManagerAccessor{client: client}, nil
}

// Access implements Accessor.
func (a *ManagerAccessor) Access(ctx context.Context, name string) ([]byte, error) {
	resp, err := a.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		return nil, fmt.Errorf("access %s: %w", name, err)
	}
	return resp.GetPayload().GetData(), nil
}

// Close releases the underlying client.
func (a *ManagerAccessor) Close() error {
	return a.client.Close()
}
