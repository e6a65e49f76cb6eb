// Package export renders a persisted import's purchase list for download.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"cratelink/internal/db"
	"cratelink/pkg/vendors"
)

// Supported output formats.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
	FormatText = "txt"
)

// Row is one purchase option in the rendered export.
type Row struct {
	OrderIndex   int     `json:"orderIndex"`
	Track        string  `json:"track"`
	Artists      string  `json:"artists"`
	Vendor       string  `json:"vendor"`
	Price        *string `json:"price"`
	Availability string  `json:"availability"`
	URL          string  `json:"url"`
}

// ContentType returns the MIME type for a format, or "" when the format is
// not supported.
func ContentType(format string) string {
	switch format {
	case FormatCSV:
		return "text/csv"
	case FormatJSON:
		return "application/json"
	case FormatText:
		return "text/plain; charset=utf-8"
	default:
		return ""
	}
}

// BuildRows flattens an import into purchase rows, one per offer, in playlist
// order. With a non-empty selection only the selected tracks are included;
// tracks without offers contribute nothing.
func BuildRows(record *db.ImportRecord, selectedTrackIDs []string) []Row {
	var selected map[string]struct{}
	if len(selectedTrackIDs) > 0 {
		selected = make(map[string]struct{}, len(selectedTrackIDs))
		for _, id := range selectedTrackIDs {
			selected[id] = struct{}{}
		}
	}

	rows := []Row{}
	for i := range record.Tracks {
		track := &record.Tracks[i]
		if selected != nil {
			if _, ok := selected[track.ID]; !ok {
				continue
			}
		}

		for _, offer := range track.Offers {
			rows = append(rows, Row{
				OrderIndex:   track.OrderIndex,
				Track:        track.Name,
				Artists:      track.Artists,
				Vendor:       offer.Vendor.DisplayName,
				Price:        formatPrice(offer.PriceValue, offer.CurrencyCode),
				Availability: offer.Availability,
				URL:          offer.ExternalURL,
			})
		}
	}
	return rows
}

// Render writes the rows in the requested format. An unsupported format
// returns an error before anything is written.
func Render(w io.Writer, format string, playlistName string, rows []Row) error {
	switch format {
	case FormatCSV:
		return renderCSV(w, rows)
	case FormatJSON:
		return renderJSON(w, playlistName, rows)
	case FormatText:
		return renderText(w, playlistName, rows)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

func renderCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"order", "track", "artists", "vendor", "price", "availability", "url"}); err != nil {
		return err
	}
	for _, row := range rows {
		price := ""
		if row.Price != nil {
			price = *row.Price
		}
		record := []string{
			strconv.Itoa(row.OrderIndex),
			row.Track,
			row.Artists,
			row.Vendor,
			price,
			row.Availability,
			row.URL,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func renderJSON(w io.Writer, playlistName string, rows []Row) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Playlist string `json:"playlist"`
		Offers   []Row  `json:"offers"`
	}{Playlist: playlistName, Offers: rows})
}

func renderText(w io.Writer, playlistName string, rows []Row) error {
	if _, err := fmt.Fprintf(w, "Purchase list: %s\n\n", playlistName); err != nil {
		return err
	}
	for _, row := range rows {
		price := "price unknown"
		if row.Price != nil {
			price = *row.Price
		}
		if _, err := fmt.Fprintf(w, "%d. %s - %s\n   %s (%s, %s)\n   %s\n",
			row.OrderIndex+1, row.Artists, row.Track,
			row.Vendor, price, row.Availability, row.URL); err != nil {
			return err
		}
	}
	return nil
}

func formatPrice(value *float64, currencyCode string) *string {
	if value == nil {
		return nil
	}
	price := vendors.FormatPrice(*value, currencyCode)
	return &price
}
