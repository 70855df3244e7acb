// Package schedapi is the HTTP client for the clinic scheduling backend. The
// backend owns slot computation, conflict detection and persistence; this
// client only shapes requests, classifies failures and validates response
// shapes before they reach the cache.
package schedapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/harborview-health/clinic-scheduling/internal/observability/metrics"
	"github.com/harborview-health/clinic-scheduling/internal/timeslot"
	"github.com/harborview-health/clinic-scheduling/pkg/logging"
)

var tracer = otel.Tracer("clinicsched.internal.schedapi")

var validate = validator.New(validator.WithRequiredStructEnabled())

const (
	defaultTimeout     = 20 * time.Second
	defaultMaxAttempts = 3
	defaultBaseDelay   = 250 * time.Millisecond
)

// Client calls the scheduling backend REST API.
type Client struct {
	baseURL    string
	apiKey     string
	clinicID   int64
	httpClient *http.Client
	logger     *logging.Logger
	metrics    *metrics.SchedulingMetrics

	maxAttempts int
	baseDelay   time.Duration
}

// Config holds configuration for the scheduling API client.
type Config struct {
	BaseURL  string
	APIKey   string
	ClinicID int64
	Timeout  time.Duration

	// Retry policy for read calls. The booking mutation is always a single
	// attempt.
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration

	Logger  *logging.Logger
	Metrics *metrics.SchedulingMetrics
}

// New creates a scheduling API client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("schedapi: BaseURL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxAttempts := cfg.RetryMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	baseDelay := cfg.RetryBaseDelay
	if baseDelay <= 0 {
		baseDelay = defaultBaseDelay
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		clinicID:    cfg.ClinicID,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger.Component("schedapi"),
		metrics:     cfg.Metrics,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
	}, nil
}

// GetSlots fetches bookable starts for one practitioner, appointment type and
// date. A 404 means the practitioner does not offer the type and yields an
// empty slot list, not an error. Malformed intervals are dropped.
func (c *Client) GetSlots(ctx context.Context, req SlotsRequest) ([]timeslot.Interval, error) {
	query := url.Values{}
	query.Set("date", req.Date)
	query.Set("appointment_type_id", strconv.FormatInt(req.AppointmentTypeID, 10))
	if req.ExcludeEventID > 0 {
		query.Set("exclude_event_id", strconv.FormatInt(req.ExcludeEventID, 10))
	}

	var out SlotsResponse
	path := fmt.Sprintf("/api/v1/practitioners/%d/slots", req.PractitionerID)
	err := c.do(ctx, "slots", http.MethodGet, path, query, nil, &out, true)
	if err != nil {
		if apiErr, ok := AsAPIError(err); ok && apiErr.NotFound() {
			return []timeslot.Interval{}, nil
		}
		return nil, err
	}
	return sanitizeSlots(out.AvailableSlots), nil
}

// BatchSlots fetches slot lists for several dates in one round trip. The
// caller must not invoke this with an empty date list.
func (c *Client) BatchSlots(ctx context.Context, req BatchSlotsRequest) (*BatchSlotsResponse, error) {
	if len(req.Dates) == 0 {
		return nil, fmt.Errorf("schedapi: batch slots requires at least one date")
	}
	var out BatchSlotsResponse
	path := fmt.Sprintf("/api/v1/practitioners/%d/slots/batch", req.PractitionerID)
	if err := c.do(ctx, "batch-slots", http.MethodPost, path, nil, req, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateAppointment performs the booking mutation. It is never retried:
// retrying a booking risks a duplicate appointment.
func (c *Client) CreateAppointment(ctx context.Context, req CreateAppointmentRequest) (*Appointment, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("schedapi: invalid appointment draft: %w", err)
	}
	var out CreateAppointmentResponse
	if err := c.do(ctx, "create-appointment", http.MethodPost, "/api/v1/appointments", nil, req, &out, false); err != nil {
		return nil, err
	}
	if out.Appointment.ID == 0 {
		return nil, fmt.Errorf("schedapi: create appointment returned empty appointment")
	}
	appt := out.Appointment
	return &appt, nil
}

// Calendar fetches events and default schedules for a set of practitioners or
// resources over a date window.
func (c *Client) Calendar(ctx context.Context, req CalendarRequest) (*CalendarResponse, error) {
	var out CalendarResponse
	if err := c.do(ctx, "calendar", http.MethodPost, "/api/v1/calendar", nil, req, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResourceAvailability checks which resources are free for a concrete window.
// A 404 yields an empty result, mirroring GetSlots.
func (c *Client) ResourceAvailability(ctx context.Context, req ResourceAvailabilityRequest) (*ResourceAvailabilityResponse, error) {
	var out ResourceAvailabilityResponse
	err := c.do(ctx, "resource-availability", http.MethodPost, "/api/v1/resources/availability", nil, req, &out, true)
	if err != nil {
		if apiErr, ok := AsAPIError(err); ok && apiErr.NotFound() {
			return &ResourceAvailabilityResponse{AvailableResources: []Resource{}}, nil
		}
		return nil, err
	}
	return &out, nil
}

// PatientAppointments fetches one patient's appointment list.
func (c *Client) PatientAppointments(ctx context.Context, patientID int64) (*PatientAppointmentsResponse, error) {
	var out PatientAppointmentsResponse
	path := fmt.Sprintf("/api/v1/patients/%d/appointments", patientID)
	if err := c.do(ctx, "patient-appointments", http.MethodGet, path, nil, nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, endpoint, method, path string, query url.Values, body, out any, retry bool) error {
	ctx, span := tracer.Start(ctx, "schedapi."+endpoint)
	defer span.End()
	span.SetAttributes(attribute.String("clinicsched.endpoint", endpoint))

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("schedapi: marshal request: %w", err)
		}
	}

	endpointURL := c.baseURL + path
	if len(query) > 0 {
		endpointURL += "?" + query.Encode()
	}

	maxAttempts := 1
	if retry {
		maxAttempts = c.maxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleepCtx(ctx, c.baseDelay<<(attempt-2)); err != nil {
				return err
			}
			c.logger.Debug("retrying read call", "endpoint", endpoint, "attempt", attempt)
		}

		err := c.doOnce(ctx, endpoint, method, endpointURL, payload, out)
		if err == nil {
			return nil
		}
		lastErr = err

		if apiErr, ok := AsAPIError(err); ok && !apiErr.Transient() {
			span.RecordError(err)
			return err
		}
		if ctx.Err() != nil {
			return fmt.Errorf("schedapi: %s: %w", endpoint, ctx.Err())
		}
	}
	span.RecordError(lastErr)
	return lastErr
}

func (c *Client) doOnce(ctx context.Context, endpoint, method, endpointURL string, payload []byte, out any) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpointURL, reader)
	if err != nil {
		return fmt.Errorf("schedapi: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if c.clinicID > 0 {
		req.Header.Set("X-Clinic-Id", strconv.FormatInt(c.clinicID, 10))
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.ObserveFetchLatency(endpoint, time.Since(started).Seconds())
	if err != nil {
		return fmt.Errorf("schedapi: %s: http request: %w", endpoint, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("schedapi: %s: read response: %w", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := string(respBody)
		if len(msg) > 300 {
			msg = msg[:300]
		}
		return &APIError{StatusCode: resp.StatusCode, Endpoint: endpoint, Body: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("schedapi: %s: unmarshal response: %w", endpoint, err)
	}
	if err := validate.Struct(out); err != nil {
		return fmt.Errorf("schedapi: %s: invalid response shape: %w", endpoint, err)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func sanitizeSlots(slots []timeslot.Interval) []timeslot.Interval {
	out := make([]timeslot.Interval, 0, len(slots))
	for _, s := range slots {
		if !s.Valid() {
			continue
		}
		out = append(out, s)
	}
	return out
}
