package backtest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05", "01/02/2006"}

// LoadPriceCSV reads a Date/Close price file. Header names are matched
// case-insensitively; "Adj Close" is used when "Close" is absent. Rows with
// an empty close are skipped.
func LoadPriceCSV(r io.Reader) (PriceSeries, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return PriceSeries{}, fmt.Errorf("failed to read CSV header: %w", err)
	}

	dateCol, closeCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "date", "datetime", "timestamp":
			dateCol = i
		case "close":
			closeCol = i
		case "adj close", "adj_close", "adjclose":
			if closeCol < 0 {
				closeCol = i
			}
		}
	}
	if dateCol < 0 || closeCol < 0 {
		return PriceSeries{}, errors.New("CSV must have date and close columns")
	}

	var series PriceSeries
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return PriceSeries{}, fmt.Errorf("failed to read CSV line %d: %w", line, err)
		}

		raw := strings.TrimSpace(row[closeCol])
		if raw == "" || strings.EqualFold(raw, "null") {
			continue
		}
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return PriceSeries{}, fmt.Errorf("invalid close on line %d: %w", line, err)
		}
		date, err := parseDate(row[dateCol])
		if err != nil {
			return PriceSeries{}, fmt.Errorf("invalid date on line %d: %w", line, err)
		}

		series.Index = append(series.Index, date)
		series.Values = append(series.Values, price)
	}
	return series, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}
