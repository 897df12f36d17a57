package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"

	"MeetPoint-App/internal/domain/model"
	domainRepo "MeetPoint-App/internal/domain/repository"
	"MeetPoint-App/internal/infrastructure/database"
)

// SupabasePlacesRepository はSupabase REST経由でpoisミラーテーブルを検索する実装
type SupabasePlacesRepository struct {
	client *database.SupabaseClient
}

func NewSupabasePlacesRepository(client *database.SupabaseClient) domainRepo.PlaceSearchProvider {
	return &SupabasePlacesRepository{
		client: client,
	}
}

// supabasePlaceRow Supabaseのpoisテーブルの行
type supabasePlaceRow struct {
	Name       string    `json:"name"`
	Location   *GeoPoint `json:"location"`
	Categories []string  `json:"categories"`
	Address    *string   `json:"address,omitempty"`
}

// SearchText は検索語の部分一致でスポットを検索する
// PostgREST側では地理演算ができないため、半径相当の絞り込みは取得後に
// 境界ボックスで行う（厳密な距離フィルタはPlaceRegistry側の責務）
func (r *SupabasePlacesRepository) SearchText(ctx context.Context, term string, region model.SearchRegion) ([]*model.SearchResult, error) {
	var rows []supabasePlaceRow
	data, _, err := r.client.GetClient().From("pois").
		Select("name, location, categories, address", "exact", false).
		Ilike("name", "%"+term+"%").
		Limit(10, "").
		Execute()

	if err != nil {
		return nil, fmt.Errorf("検索語 %q のPOIデータ取得失敗: %w", term, err)
	}

	if err := json.Unmarshal([]byte(data), &rows); err != nil {
		return nil, fmt.Errorf("POIデータのJSONアンマーシャル失敗: %w", err)
	}

	bound := SearchRegionBound(region)

	var results []*model.SearchResult
	for _, row := range rows {
		coord := GeoPointToLatLng(row.Location)
		if !bound.Contains(orb.Point{coord.Lng, coord.Lat}) {
			continue
		}

		result := &model.SearchResult{
			Name:       row.Name,
			Coordinate: coord,
			Types:      row.Categories,
		}
		if row.Address != nil {
			result.Address = *row.Address
		}
		results = append(results, result)
	}

	return results, nil
}
