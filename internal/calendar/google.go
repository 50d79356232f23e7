package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/avast/retry-go/v4"
	"github.com/clambin/calendar-hvac/internal/registry"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"log/slog"
	"net/http"
	"os"
	"time"
)

const maxResults = 2500

var _ Source = &GoogleSource{}

// GoogleSource retrieves events from Google Calendar. Recurring events are expanded into single events.
type GoogleSource struct {
	service    *gcal.Service
	location   *time.Location
	logger     *slog.Logger
	attempts   uint
	retryDelay time.Duration
}

func NewGoogleSource(ctx context.Context, loc *time.Location, logger *slog.Logger, opts ...option.ClientOption) (*GoogleSource, error) {
	service, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("calendar service: %w", err)
	}
	return &GoogleSource{
		service:    service,
		location:   loc,
		logger:     logger,
		attempts:   3,
		retryDelay: time.Second,
	}, nil
}

// GoogleHTTPClient returns an HTTP client authorized with the stored user token. The access token is refreshed
// automatically when it expires. Requests are sent through base.
func GoogleHTTPClient(ctx context.Context, credentialsFile, tokenFile string, base *http.Client) (*http.Client, error) {
	credentials, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("google credentials: %w", err)
	}
	cfg, err := google.ConfigFromJSON(credentials, gcal.CalendarReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("google credentials: %w", err)
	}
	token, err := readToken(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("google token: %w", err)
	}
	if base != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	}
	return oauth2.NewClient(ctx, cfg.TokenSource(ctx, token)), nil
}

func (g *GoogleSource) Events(ctx context.Context, cal registry.Calendar, from, to time.Time) ([]Event, error) {
	var items []*gcal.Event
	err := retry.Do(func() error {
		items = items[:0]
		return g.service.Events.List(cal.Identity).
			TimeMin(from.Format(time.RFC3339)).
			TimeMax(to.Format(time.RFC3339)).
			SingleEvents(true).
			OrderBy("startTime").
			MaxResults(maxResults).
			Pages(ctx, func(page *gcal.Events) error {
				items = append(items, page.Items...)
				return nil
			})
	},
		retry.Context(ctx),
		retry.Attempts(g.attempts),
		retry.Delay(g.retryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool { return errors.Is(classify(err), ErrTransient) }),
		retry.OnRetry(func(n uint, err error) {
			g.logger.Debug("retrying calendar download", "calendar", cal, "attempt", n+1, "err", err)
		}),
	)
	if err != nil {
		return nil, classify(err)
	}

	events := convertEvents(items, cal, g.location, g.logger)
	g.logger.Debug("events downloaded", "calendar", cal, "events", len(events))
	return events, nil
}

func classify(err error) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	switch {
	case rateLimited(apiErr):
		return fmt.Errorf("%w: %w", ErrTransient, err)
	case apiErr.Code == http.StatusForbidden || apiErr.Code == http.StatusNotFound:
		return fmt.Errorf("%w: %w", ErrPermission, err)
	case apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %w", ErrTransient, err)
	default:
		return err
	}
}

// rateLimited reports whether Google rejected the request because of a quota. Google Calendar reports these as 403
// rather than 429.
func rateLimited(apiErr *googleapi.Error) bool {
	for _, item := range apiErr.Errors {
		switch item.Reason {
		case "rateLimitExceeded", "userRateLimitExceeded":
			return true
		}
	}
	return false
}

func readToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var token oauth2.Token
	if err = json.NewDecoder(f).Decode(&token); err != nil {
		return nil, err
	}
	return &token, nil
}
