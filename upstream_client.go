package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
)

// RescueClient talks to the rescue-reports API. The server owns every
// report; this client only creates, lists and advances them.
type RescueClient struct {
	BaseURL string
	HTTP    *http.Client
}

type upstreamErrorBody struct {
	Error string `json:"error"`
}

// CreateReport posts a multipart create request. The idempotency key is
// generated per draft attempt so a retried create cannot duplicate the
// report on the server.
func (c *RescueClient) CreateReport(ctx context.Context, draft ReportDraft, loc LocationResolution, idempotencyKey string) (*CreateReportResult, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	fields := map[string]string{
		"description":    draft.Description,
		"reporter_name":  draft.ReporterName,
		"reporter_phone": draft.ReporterPhone,
	}
	if loc.State == DeviceResolved || loc.State == ManualResolved {
		fields["latitude"] = formatCoordinate(loc.Lat)
		fields["longitude"] = formatCoordinate(loc.Lng)
		if loc.Label != "" {
			fields["location_name"] = loc.Label
		}
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, &SubmissionError{Message: err.Error()}
		}
	}

	if draft.Photo != nil {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="photo"; filename=%q`, draft.Photo.Name))
		header.Set("Content-Type", draft.Photo.MimeType)
		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, &SubmissionError{Message: err.Error()}
		}
		if _, err := part.Write(draft.Photo.Bytes); err != nil {
			return nil, &SubmissionError{Message: err.Error()}
		}
	}

	if err := writer.Close(); err != nil {
		return nil, &SubmissionError{Message: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/reports", body)
	if err != nil {
		return nil, &SubmissionError{Message: err.Error()}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if idempotencyKey != "" {
		req.Header.Set("X-Idempotency-Key", idempotencyKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &SubmissionError{Message: fmt.Sprintf("rescue API unreachable: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &SubmissionError{
			StatusCode: resp.StatusCode,
			Message:    upstreamErrorMessage(resp.Body, resp.StatusCode),
		}
	}

	var result CreateReportResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &SubmissionError{Message: fmt.Sprintf("invalid create response: %v", err)}
	}
	return &result, nil
}

// ListReports fetches the ordered report list. A non-2xx status, a
// transport failure or a non-array body all surface as LoadError.
func (c *RescueClient) ListReports(ctx context.Context, onlyOpen bool) ([]Report, error) {
	u := c.BaseURL + "/api/reports"
	if onlyOpen {
		u += "?onlyOpen=true"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &LoadError{Message: err.Error()}
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &LoadError{Message: fmt.Sprintf("rescue API unreachable: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &LoadError{Message: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}

	var reports []Report
	if err := json.NewDecoder(resp.Body).Decode(&reports); err != nil {
		return nil, &LoadError{Message: fmt.Sprintf("invalid list response: %v", err)}
	}
	return reports, nil
}

// UpdateReportStatus sends a partial status update for a single report.
func (c *RescueClient) UpdateReportStatus(ctx context.Context, id int, status string) error {
	payload, err := json.Marshal(map[string]string{"status": status})
	if err != nil {
		return &StatusUpdateError{Message: err.Error()}
	}

	u := fmt.Sprintf("%s/api/reports/%d/status", c.BaseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, u, bytes.NewReader(payload))
	if err != nil {
		return &StatusUpdateError{Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return &StatusUpdateError{Message: fmt.Sprintf("rescue API unreachable: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusUpdateError{
			StatusCode: resp.StatusCode,
			Message:    upstreamErrorMessage(resp.Body, resp.StatusCode),
		}
	}
	return nil
}

// upstreamErrorMessage prefers the response body's error field, falling
// back to a generic status-code message.
func upstreamErrorMessage(body io.Reader, statusCode int) string {
	raw, _ := io.ReadAll(io.LimitReader(body, 64*1024))
	var decoded upstreamErrorBody
	if err := json.Unmarshal(raw, &decoded); err == nil && strings.TrimSpace(decoded.Error) != "" {
		return decoded.Error
	}
	return fmt.Sprintf("HTTP %d", statusCode)
}

func formatCoordinate(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
