package helper

import (
	"errors"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"MeetPoint-App/internal/domain/model"
)

// ErrEmptyInput 地点が1件も与えられなかった場合のエラー
var ErrEmptyInput = errors.New("no coordinates supplied")

const (
	// 検索半径の導出パラメータ
	radiusScaleFactor = 0.7
	minSearchRadiusKm = 5.0
	maxSearchRadiusKm = 20.0
)

// Midpoint は全地点の算術平均による中間地点を計算する
// 平面近似であり球面幾何学的には正確ではないが、下流の半径・ズーム計算が
// この式に合わせて調整されているため意図的にこのままとする
func Midpoint(coords []model.LatLng) (model.LatLng, error) {
	if len(coords) == 0 {
		return model.LatLng{}, ErrEmptyInput
	}

	var sumLat, sumLng float64
	for _, c := range coords {
		sumLat += c.Lat
		sumLng += c.Lng
	}

	n := float64(len(coords))
	return model.LatLng{
		Lat: sumLat / n,
		Lng: sumLng / n,
	}, nil
}

// HaversineDistance は2地点間の大圏距離をメートルで返す
func HaversineDistance(a, b model.LatLng) float64 {
	p1 := orb.Point{a.Lng, a.Lat}
	p2 := orb.Point{b.Lng, b.Lat}
	return geo.DistanceHaversine(p1, p2)
}

// MaxPairwiseDistance は全地点ペアの最大距離をメートルで返す
// O(n²)だが地点数は5件以下を想定しているため問題にならない
func MaxPairwiseDistance(coords []model.LatLng) float64 {
	var max float64
	for i := 0; i < len(coords); i++ {
		for j := i + 1; j < len(coords); j++ {
			if d := HaversineDistance(coords[i], coords[j]); d > max {
				max = d
			}
		}
	}
	return max
}

// DerivedMaxRadiusKm は地点間の最大距離から検索半径の上限（km）を導出する
// clamp(maxPairwiseMeters/1000 * 0.7, 5, 20)
// 地点が1件の場合はペア距離が0のため定数5kmになる
func DerivedMaxRadiusKm(maxPairwiseMeters float64) float64 {
	radius := maxPairwiseMeters / 1000.0 * radiusScaleFactor
	if radius < minSearchRadiusKm {
		return minSearchRadiusKm
	}
	if radius > maxSearchRadiusKm {
		return maxSearchRadiusKm
	}
	return radius
}
