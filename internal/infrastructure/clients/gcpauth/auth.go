package gcpauth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// CloudPlatformScope is the scope needed by the Vertex AI and data agent APIs
const CloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// NewHTTPClient returns an HTTP client that adds a bearer token to every request.
// A non-empty staticToken is used as is, otherwise application default credentials are used.
func NewHTTPClient(ctx context.Context, staticToken string, timeout time.Duration) (*http.Client, error) {
	var source oauth2.TokenSource
	if staticToken != "" {
		source = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: staticToken, TokenType: "Bearer"})
	} else {
		creds, err := google.FindDefaultCredentials(ctx, CloudPlatformScope)
		if err != nil {
			return nil, fmt.Errorf("failed to find default credentials: %w", err)
		}
		source = creds.TokenSource
	}

	client := oauth2.NewClient(context.WithoutCancel(ctx), source)
	client.Timeout = timeout
	return client, nil
}
