package main

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-pdf/fpdf"
)

// operatorExportHandler streams the registry's current report snapshot
// as a CSV or PDF attachment. Exports are built in memory from the
// cache; hitting the list endpoint first keeps them fresh.
func (a *App) operatorExportHandler(c *gin.Context) {
	session, err := getOperatorSession(c)
	if err != nil {
		writeAPIError(c, &apiError{Status: http.StatusUnauthorized, Code: "unauthorized", Message: "Operator session required"})
		return
	}

	format := strings.ToLower(strings.TrimSpace(c.Query("format")))
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "pdf" {
		writeAPIError(c, &apiError{Status: http.StatusBadRequest, Code: "invalid_format", Message: "Format must be csv or pdf"})
		return
	}

	snapshot := a.registry.Reports()
	if len(snapshot) == 0 {
		refreshed, err := a.registry.RefreshCurrent(c.Request.Context())
		if err != nil {
			writeAPIError(c, apiErrorFor(err))
			return
		}
		snapshot = refreshed
	}

	baseName := fmt.Sprintf("pawrescue-reports-%s", time.Now().UTC().Format("2006-01-02"))
	a.log.Info("export generated", "format", format, "rows", len(snapshot), "operator", session.Email)

	switch format {
	case "pdf":
		data, err := buildReportsPDF(snapshot, string(a.registry.Filter()))
		if err != nil {
			writeAPIError(c, &apiError{Status: http.StatusInternalServerError, Code: "export_failed", Message: "Could not build PDF export"})
			return
		}
		c.Header("Content-Type", "application/pdf")
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", baseName+".pdf"))
		_, _ = c.Writer.Write(data)
	default:
		data, err := buildReportsCSV(snapshot)
		if err != nil {
			writeAPIError(c, &apiError{Status: http.StatusInternalServerError, Code: "export_failed", Message: "Could not build CSV export"})
			return
		}
		c.Header("Content-Type", "text/csv; charset=utf-8")
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", baseName+".csv"))
		_, _ = c.Writer.Write(data)
	}
}

func buildReportsCSV(reports []Report) ([]byte, error) {
	buffer := bytes.NewBuffer(nil)
	writer := csv.NewWriter(buffer)
	headers := []string{"id", "created_at", "status", "description", "reporter_name", "reporter_phone", "latitude", "longitude", "assigned_ngo", "distance_km"}
	if err := writer.Write(headers); err != nil {
		return nil, err
	}
	for _, report := range reports {
		lat, lng := "", ""
		if report.Latitude != nil {
			lat = formatCoordinate(*report.Latitude)
		}
		if report.Longitude != nil {
			lng = formatCoordinate(*report.Longitude)
		}
		ngo := ""
		if report.AssignedNGO != nil {
			ngo = *report.AssignedNGO
		}
		distance := ""
		if report.DistanceKM != nil {
			distance = strconv.FormatFloat(*report.DistanceKM, 'f', -1, 64)
		}
		row := []string{
			strconv.Itoa(report.ID),
			report.CreatedAt,
			report.Status,
			report.Description,
			report.ReporterName,
			report.ReporterPhone,
			lat,
			lng,
			ngo,
			distance,
		}
		if err := writer.Write(row); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

func buildReportsPDF(reports []Report, filter string) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 16)
	pdf.Cell(0, 10, "PawRescue Reports")

	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 8, fmt.Sprintf("Generated: %s", time.Now().UTC().Format(time.RFC3339)))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Filter: %s", filter))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Total reports: %d", len(reports)))
	pdf.Ln(10)

	statusCounts := map[string]int{}
	for _, report := range reports {
		statusCounts[report.Status]++
	}

	pdf.SetFont("Helvetica", "B", 11)
	pdf.Cell(0, 8, "Status distribution")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 10)
	statusKeys := make([]string, 0, len(statusCounts))
	for key := range statusCounts {
		statusKeys = append(statusKeys, key)
	}
	sort.Slice(statusKeys, func(i, j int) bool { return statusCounts[statusKeys[i]] > statusCounts[statusKeys[j]] })
	for _, key := range statusKeys {
		pdf.Cell(0, 6, fmt.Sprintf("- %s: %d", key, statusCounts[key]))
		pdf.Ln(6)
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.Cell(0, 8, "Reports")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 9)
	for _, report := range reports {
		location := ""
		if report.Latitude != nil && report.Longitude != nil {
			location = " @ " + coordinateLabel(*report.Latitude, *report.Longitude)
		}
		pdf.Cell(0, 5, fmt.Sprintf("#%d [%s] %s%s", report.ID, report.Status, shortDescription(report.Description), location))
		pdf.Ln(5)
	}

	buffer := bytes.NewBuffer(nil)
	if err := pdf.Output(buffer); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// shortDescription clamps a description to one PDF line. Cuts on rune
// boundaries, not bytes.
func shortDescription(description string) string {
	runes := []rune(description)
	if len(runes) <= 80 {
		return description
	}
	return string(runes[:77]) + "..."
}
