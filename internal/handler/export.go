package handler

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"

	"github.com/tripplanner/backend/internal/domain"
)

// csvHeaders defines the column names written as the first row of any CSV export.
var csvHeaders = []string{
	"itinerary_id", "title", "day", "theme", "order_index",
	"stop_id", "stop_name", "description", "duration_minutes",
}

// GetExport handles GET /itinerary/{id}/export.
// It returns one row per stop, in day then stop order.
// Use ?format=csv to receive CSV; default is JSON.
func (s *Server) GetExport(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	format := r.URL.Query().Get("format")
	if format != "" && format != "csv" && format != "json" {
		s.writeError(w, r, badRequest(`format must be "csv" or "json"`))
		return
	}

	rows, err := s.export.Export(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if format == "csv" {
		buf := buildCSV(rows)
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="itinerary-%s.csv"`, id))
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		w.WriteHeader(http.StatusOK)
		_, _ = buf.WriteTo(w)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// buildCSV encodes rows as CSV behind a header row.
func buildCSV(rows []domain.ExportRow) *bytes.Buffer {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	//nolint:errcheck // bytes.Buffer.Write never returns an error.
	w.Write(csvHeaders)
	for _, r := range rows {
		//nolint:errcheck
		w.Write(rowToCSVRecord(r))
	}
	w.Flush()
	return &buf
}

// rowToCSVRecord encodes a domain.ExportRow as a flat string slice.
func rowToCSVRecord(r domain.ExportRow) []string {
	return []string{
		r.ItineraryID,
		r.Title,
		strconv.Itoa(r.Day),
		r.Theme,
		strconv.Itoa(r.OrderIndex),
		r.StopID,
		r.StopName,
		r.Description,
		strconv.Itoa(r.DurationMinutes),
	}
}
