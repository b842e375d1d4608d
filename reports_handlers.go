package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// requestLocationProvider adapts coordinates the browser already
// obtained from its geolocation API into the LocationProvider
// capability: the "device" fix is whatever the request carried.
type requestLocationProvider struct {
	lat, lng float64
}

func (p requestLocationProvider) CurrentPosition(ctx context.Context) (Position, error) {
	return Position{Lat: p.lat, Lng: p.lng, ObservedAt: time.Now()}, nil
}

func parseOptionalCoordinate(c *gin.Context, field string) (*float64, error) {
	raw := strings.TrimSpace(c.PostForm(field))
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, &ValidationError{Message: fmt.Sprintf("Invalid %s.", field)}
	}
	return &value, nil
}

func parsePhotoUpload(c *gin.Context) (*PhotoUpload, error) {
	fileHeader, err := c.FormFile("photo")
	if err != nil {
		return nil, nil // photo is optional
	}

	opened, err := fileHeader.Open()
	if err != nil {
		return nil, &ValidationError{Message: "Could not read photo upload."}
	}
	defer opened.Close()

	data, err := io.ReadAll(io.LimitReader(opened, maxUploadBytes+1))
	if err != nil {
		return nil, &ValidationError{Message: "Could not read photo upload."}
	}
	if len(data) > maxUploadBytes {
		return nil, &ValidationError{Message: "Photo exceeds upload size limit."}
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	mimeType = strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	if _, ok := allowedImageTypes[mimeType]; !ok {
		return nil, &ValidationError{Message: "Photo mime type is not supported."}
	}

	name := strings.TrimSpace(fileHeader.Filename)
	if name == "" {
		name = "photo.jpg"
	}
	return &PhotoUpload{Name: name, MimeType: mimeType, Bytes: data}, nil
}

// createReportHandler drives one compose-submit cycle: build the draft
// from the form, run the location fallback chain, then hand off to the
// submission controller.
func (a *App) createReportHandler(c *gin.Context) {
	now := time.Now().UTC()
	if !a.checkRateLimit("report:"+c.ClientIP(), reportRateLimitRequests, reportRateLimitWindow, now) {
		writeAPIError(c, &apiError{Status: http.StatusTooManyRequests, Code: "rate_limited", Message: "Too many reports from this IP. Please retry later."})
		return
	}

	if err := c.Request.ParseMultipartForm(32 << 20); err != nil {
		writeAPIError(c, &apiError{Status: http.StatusBadRequest, Code: "invalid_multipart", Message: "Invalid multipart form"})
		return
	}

	photo, err := parsePhotoUpload(c)
	if err != nil {
		writeAPIError(c, apiErrorFor(err))
		return
	}

	draft := ReportDraft{
		Description:   c.PostForm("description"),
		ReporterName:  c.PostForm("reporter_name"),
		ReporterPhone: c.PostForm("reporter_phone"),
		Photo:         photo,
	}

	deviceLat, err := parseOptionalCoordinate(c, "latitude")
	if err != nil {
		writeAPIError(c, apiErrorFor(err))
		return
	}
	deviceLng, err := parseOptionalCoordinate(c, "longitude")
	if err != nil {
		writeAPIError(c, apiErrorFor(err))
		return
	}
	manualLat, err := parseOptionalCoordinate(c, "manual_latitude")
	if err != nil {
		writeAPIError(c, apiErrorFor(err))
		return
	}
	manualLng, err := parseOptionalCoordinate(c, "manual_longitude")
	if err != nil {
		writeAPIError(c, apiErrorFor(err))
		return
	}

	var provider LocationProvider
	if deviceLat != nil && deviceLng != nil {
		provider = requestLocationProvider{lat: *deviceLat, lng: *deviceLng}
	}
	resolver := NewLocationResolver(provider, a.geocoder, a.log)

	locationName := strings.TrimSpace(c.PostForm("location_name"))
	if provider != nil {
		if locationName != "" {
			// the browser already reverse-geocoded; skip the second lookup
			resolver.geocoder = nil
		}
		if err := resolver.ResolveByDevice(c.Request.Context()); err != nil {
			a.log.Warn("device location rejected", "err", err)
		}
	}
	if !resolver.Resolved() && manualLat != nil && manualLng != nil {
		if err := resolver.SetManual(*manualLat, *manualLng); err != nil {
			writeAPIError(c, apiErrorFor(err))
			return
		}
	}
	resolver.SetLabel(locationName)

	result, err := a.submissions.Submit(c.Request.Context(), draft, resolver)
	if err != nil {
		writeAPIError(c, apiErrorFor(err))
		return
	}

	response := gin.H{
		"id":           result.Report.ID,
		"message":      result.Report.Message,
		"user_message": result.UserMessage,
	}
	if result.Report.AssignedNGO != nil {
		response["assigned_ngo"] = *result.Report.AssignedNGO
	}
	if result.Report.DistanceKM != nil {
		response["distance_km"] = *result.Report.DistanceKM
	}
	c.JSON(http.StatusCreated, response)
}

func (a *App) listReportsHandler(c *gin.Context) {
	filter := ReportsFilter(strings.TrimSpace(c.Query("filter")))
	if filter == "" {
		filter = FilterAll
	}
	if !validReportsFilter(filter) {
		writeAPIError(c, &apiError{Status: http.StatusBadRequest, Code: "invalid_filter", Message: fmt.Sprintf("Unknown filter %q", filter)})
		return
	}

	reports, err := a.registry.Refresh(c.Request.Context(), filter)
	if err != nil {
		writeAPIError(c, apiErrorFor(err))
		return
	}
	c.JSON(http.StatusOK, reports)
}

func (a *App) updateStatusHandler(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		writeAPIError(c, &apiError{Status: http.StatusBadRequest, Code: "invalid_id", Message: "Invalid report ID"})
		return
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		writeAPIError(c, &apiError{Status: http.StatusBadRequest, Code: "invalid_payload", Message: "Invalid payload"})
		return
	}

	if err := a.registry.UpdateStatus(c.Request.Context(), id, body.Status); err != nil {
		writeAPIError(c, apiErrorFor(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// reverseGeocodeHandler gives the submission form a label preview for a
// device fix. Always answers 200: a geocoder failure degrades to the
// coordinate string, it never blocks the flow.
func (a *App) reverseGeocodeHandler(c *gin.Context) {
	lat, err := strconv.ParseFloat(strings.TrimSpace(c.Query("lat")), 64)
	if err != nil {
		writeAPIError(c, &apiError{Status: http.StatusBadRequest, Code: "invalid_location", Message: "Invalid latitude"})
		return
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(c.Query("lng")), 64)
	if err != nil {
		writeAPIError(c, &apiError{Status: http.StatusBadRequest, Code: "invalid_location", Message: "Invalid longitude"})
		return
	}

	result, err := a.geocoder.Geocode(c.Request.Context(), lat, lng)
	if err != nil || result == nil || result.Label == "" {
		if err != nil {
			a.log.Warn("reverse geocoding failed", "lat", lat, "lng", lng, "err", err)
		}
		c.JSON(http.StatusOK, gin.H{"label": coordinateLabel(lat, lng), "source": "coordinates"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"label": result.Label, "source": "nominatim"})
}
