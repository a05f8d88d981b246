package domain

// ExportRow is one flattened stop of an itinerary, used by the CSV/JSON
// export. Rows are emitted in day order, then stop order.
type ExportRow struct {
	ItineraryID     string `json:"itinerary_id"`
	Title           string `json:"title"`
	Day             int    `json:"day"`
	Theme           string `json:"theme,omitempty"`
	OrderIndex      int    `json:"order_index"`
	StopID          string `json:"stop_id"`
	StopName        string `json:"stop_name"`
	Description     string `json:"description"`
	DurationMinutes int    `json:"duration_minutes"`
}

// ExportRows flattens the itinerary into one row per stop.
func (it Itinerary) ExportRows() []ExportRow {
	rows := make([]ExportRow, 0)
	for _, day := range it.Days {
		for _, stop := range day.Stops {
			rows = append(rows, ExportRow{
				ItineraryID:     it.ID.String(),
				Title:           it.Title,
				Day:             day.Number,
				Theme:           day.Theme,
				OrderIndex:      stop.OrderIndex,
				StopID:          stop.ID,
				StopName:        stop.Name,
				Description:     stop.Description,
				DurationMinutes: stop.DurationMinutes,
			})
		}
	}
	return rows
}
