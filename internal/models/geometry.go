package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkb"
	"github.com/twpayne/go-geom/encoding/wkt"
)

const wgs84SRID = 4326

// GeoPoint is a GeoJSON Point ([lng, lat]) stored as PostGIS GEOGRAPHY(Point, 4326).
type GeoPoint struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

func NewGeoPoint(loc LocationData) *GeoPoint {
	return &GeoPoint{
		Type:        "Point",
		Coordinates: []float64{loc.Longitude, loc.Latitude},
	}
}

func (g *GeoPoint) toGeom() (*geom.Point, error) {
	if len(g.Coordinates) != 2 {
		return nil, fmt.Errorf("point needs 2 coordinates, got %d", len(g.Coordinates))
	}
	return geom.NewPointFlat(geom.XY, g.Coordinates).SetSRID(wgs84SRID), nil
}

// Value renders EWKT, e.g. "SRID=4326;POINT(77.209 28.6139)", for ST_GeogFromText.
func (g *GeoPoint) Value() (driver.Value, error) {
	if g == nil || g.Type == "" {
		return nil, nil
	}

	point, err := g.toGeom()
	if err != nil {
		return nil, err
	}

	wktString, err := wkt.Marshal(point)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal to WKT: %w", err)
	}

	return fmt.Sprintf("SRID=%d;%s", point.SRID(), wktString), nil
}

// Scan expects WKB as produced by ST_AsBinary.
func (g *GeoPoint) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to scan GeoPoint: expected []byte, got %T", value)
	}

	geometry, err := wkb.Unmarshal(bytes)
	if err != nil {
		return fmt.Errorf("failed to unmarshal WKB: %w", err)
	}

	point, ok := geometry.(*geom.Point)
	if !ok {
		return fmt.Errorf("scanned geometry is not a Point")
	}

	g.Type = "Point"
	g.Coordinates = []float64{point.X(), point.Y()}
	return nil
}

// ClaimsFeatureCollection renders the map view: one feature per claim and, when
// known, the farmer's own position.
func ClaimsFeatureCollection(claims []ClaimRecord, self *LocationData) ([]byte, error) {
	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(claims)+1)}

	if self != nil {
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       "self",
			Geometry: geom.NewPointFlat(geom.XY, []float64{self.Longitude, self.Latitude}),
			Properties: map[string]interface{}{
				"kind":  "farmer",
				"label": "You are here",
			},
		})
	}

	for _, c := range claims {
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       c.ID,
			Geometry: geom.NewPointFlat(geom.XY, []float64{c.Lng, c.Lat}),
			Properties: map[string]interface{}{
				"kind":    "claim",
				"disease": c.Disease,
				"status":  c.Status,
				"date":    c.Date,
				"amount":  c.Amount,
			},
		})
	}

	return json.Marshal(&fc)
}
