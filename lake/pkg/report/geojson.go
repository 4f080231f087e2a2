package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/petrodata/prodlake/lake/pkg/dataset"
)

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

type Feature struct {
	Type       string         `json:"type"`
	Geometry   Point          `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

type Point struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

type GeoJSONOptions struct {
	LongitudeColumn string
	LatitudeColumn  string
	// ExcludeLongitude drops the longitude column from properties. The latitude column is always
	// dropped.
	ExcludeLongitude bool
}

// BuildFeatureCollection makes one Point feature per row at [longitude, latitude]. Rows whose
// coordinates do not parse are skipped and counted.
func BuildFeatureCollection(t *dataset.Table, opts GeoJSONOptions) (*FeatureCollection, int, error) {
	if opts.LongitudeColumn == "" {
		opts.LongitudeColumn = "longitude"
	}
	if opts.LatitudeColumn == "" {
		opts.LatitudeColumn = "latitude"
	}
	lonIdx, err := t.ColumnIndex(opts.LongitudeColumn)
	if err != nil {
		return nil, 0, err
	}
	latIdx, err := t.ColumnIndex(opts.LatitudeColumn)
	if err != nil {
		return nil, 0, err
	}

	fc := &FeatureCollection{Type: "FeatureCollection", Features: make([]Feature, 0, t.Len())}
	skipped := 0
	for _, row := range t.Rows {
		lon, errLon := strconv.ParseFloat(strings.TrimSpace(row[lonIdx]), 64)
		lat, errLat := strconv.ParseFloat(strings.TrimSpace(row[latIdx]), 64)
		if errLon != nil || errLat != nil || !finite(lon) || !finite(lat) {
			skipped++
			continue
		}

		props := make(map[string]any, len(t.Columns))
		for i, col := range t.Columns {
			if i == latIdx || (opts.ExcludeLongitude && i == lonIdx) {
				continue
			}
			props[col] = propertyValue(row[i])
		}
		fc.Features = append(fc.Features, Feature{
			Type:       "Feature",
			Geometry:   Point{Type: "Point", Coordinates: [2]float64{lon, lat}},
			Properties: props,
		})
	}
	return fc, skipped, nil
}

// propertyValue types a cell: integers and floats become numbers, empty becomes null.
func propertyValue(cell string) any {
	s := strings.TrimSpace(cell)
	if s == "" {
		return nil
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
		return v
	}
	return cell
}

func WriteGeoJSON(w io.Writer, fc *FeatureCollection) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(fc); err != nil {
		return fmt.Errorf("failed to encode geojson: %w", err)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
