// Package google syncs Drive, Calendar and Gmail as one umbrella
// provider, each with its own cursor, grounded on the chained-call
// Drive service usage in the workspace Google adapter. Requests go
// through golang.org/x/oauth2's client, which refreshes the access token
// when it is missing or expired; a 401 response is returned as an error,
// with no refresh and no retry (pkg/provider/oauth is not used here).
package google

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/drive/v3"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/minnahq/minna/pkg/provider"
)

// Provider implements provider.SyncProvider for the Google Workspace
// umbrella (Drive + Calendar + Gmail).
type Provider struct {
	oauthConfig *oauth2.Config

	// endpoint overrides the API base URL; set by tests to point the
	// generated clients at an httptest server instead of Google.
	endpoint string
}

// New builds the umbrella provider. oauthConfig may be nil, in which
// case tokens are refreshed against Google's public OAuth endpoints with
// an empty client id and secret.
func New(oauthConfig *oauth2.Config) *Provider {
	return &Provider{oauthConfig: oauthConfig}
}

func (p *Provider) Name() string        { return "google_workspace" }
func (p *Provider) DisplayName() string { return "Google Workspace" }

func (p *Provider) Discover(sc provider.SyncContext) (any, error) {
	svc, err := p.driveService(sc)
	if err != nil {
		return nil, err
	}
	about, err := svc.About.Get().Fields("user").Context(sc.Context).Do()
	if err != nil {
		return nil, fmt.Errorf("google about.get: %w", err)
	}
	return about.User, nil
}

func (p *Provider) Sync(sc provider.SyncContext, sinceDays int, mode provider.Mode) (provider.SyncSummary, error) {
	total := provider.SyncSummary{Provider: p.Name(), UpdatedAt: time.Now().UTC()}

	drive, err := p.syncDrive(sc, sinceDays, mode)
	if err != nil {
		return total, fmt.Errorf("drive sync: %w", err)
	}
	cal, err := p.syncCalendar(sc, sinceDays, mode)
	if err != nil {
		return total, fmt.Errorf("calendar sync: %w", err)
	}
	gm, err := p.syncGmail(sc, sinceDays, mode)
	if err != nil {
		return total, fmt.Errorf("gmail sync: %w", err)
	}

	total.ItemsScanned = drive.ItemsScanned + cal.ItemsScanned + gm.ItemsScanned
	total.DocumentsProcessed = drive.DocumentsProcessed + cal.DocumentsProcessed + gm.DocumentsProcessed
	total.APICalls = drive.APICalls + cal.APICalls + gm.APICalls
	return total, nil
}

// tokenSource resolves a Google OAuth token from the secret store and
// wraps it so the framework's HTTP client transparently refreshes it.
func (p *Provider) tokenSource(sc provider.SyncContext) (oauth2.TokenSource, error) {
	refreshToken, err := sc.Secrets.Get(sc.Context, "google_refresh_token")
	if err != nil {
		return nil, err
	}
	cfg := p.oauthConfig
	if cfg == nil {
		cfg = &oauth2.Config{Endpoint: googleEndpoint()}
	}
	tok := &oauth2.Token{RefreshToken: refreshToken}
	return cfg.TokenSource(context.Background(), tok), nil
}

func googleEndpoint() oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:  "https://accounts.google.com/o/oauth2/auth",
		TokenURL: "https://oauth2.googleapis.com/token",
	}
}

func (p *Provider) httpClientOption(sc provider.SyncContext) (option.ClientOption, error) {
	ts, err := p.tokenSource(sc)
	if err != nil {
		return nil, err
	}
	return option.WithHTTPClient(oauth2.NewClient(sc.Context, ts)), nil
}

func (p *Provider) clientOptions(sc provider.SyncContext) ([]option.ClientOption, error) {
	opt, err := p.httpClientOption(sc)
	if err != nil {
		return nil, err
	}
	opts := []option.ClientOption{opt}
	if p.endpoint != "" {
		opts = append(opts, option.WithEndpoint(p.endpoint))
	}
	return opts, nil
}

func (p *Provider) driveService(sc provider.SyncContext) (*drive.Service, error) {
	opts, err := p.clientOptions(sc)
	if err != nil {
		return nil, err
	}
	return drive.NewService(sc.Context, opts...)
}

func (p *Provider) calendarService(sc provider.SyncContext) (*calendar.Service, error) {
	opts, err := p.clientOptions(sc)
	if err != nil {
		return nil, err
	}
	return calendar.NewService(sc.Context, opts...)
}

func (p *Provider) gmailService(sc provider.SyncContext) (*gmail.Service, error) {
	opts, err := p.clientOptions(sc)
	if err != nil {
		return nil, err
	}
	return gmail.NewService(sc.Context, opts...)
}
