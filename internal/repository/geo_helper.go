package repository

import (
	"github.com/paulmach/orb"

	"MeetPoint-App/internal/domain/model"
)

// GeoPoint PostGIS POINT 型の JSON 表現
type GeoPoint struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"` // [longitude, latitude]
}

// LatLngToGeoPoint model.LatLng を PostGIS POINT 形式に変換
func LatLngToGeoPoint(latlng model.LatLng) *GeoPoint {
	point := orb.Point{latlng.Lng, latlng.Lat}

	return &GeoPoint{
		Type:        "Point",
		Coordinates: []float64{point.Lon(), point.Lat()},
	}
}

// GeoPointToLatLng PostGIS POINT を model.LatLng に変換
func GeoPointToLatLng(geoPoint *GeoPoint) model.LatLng {
	if geoPoint == nil || len(geoPoint.Coordinates) < 2 {
		return model.LatLng{}
	}

	point := orb.Point{geoPoint.Coordinates[0], geoPoint.Coordinates[1]}

	return model.LatLng{
		Lat: point.Lat(),
		Lng: point.Lon(),
	}
}

// SearchRegionBound 検索領域から境界ボックスを作成する
// 緯度1度 ≈ 111km の近似で半径をパディングに変換する
func SearchRegionBound(region model.SearchRegion) orb.Bound {
	center := orb.Point{region.Center.Lng, region.Center.Lat}

	bound := orb.Bound{Min: center, Max: center}
	padding := region.RadiusMeters / 111000.0
	return bound.Pad(padding)
}
