package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"MeetPoint-App/internal/domain/model"
	domainRepo "MeetPoint-App/internal/domain/repository"
	"MeetPoint-App/internal/infrastructure/database"
)

// PostgresPlacesRepository はPostGISのpoisミラーテーブルを検索プロバイダとして使う実装
// 外部API無しでのローカル検索やオフライン動作確認に使用する
type PostgresPlacesRepository struct {
	client *database.PostgreSQLClient
}

func NewPostgresPlacesRepository(client *database.PostgreSQLClient) domainRepo.PlaceSearchProvider {
	return &PostgresPlacesRepository{
		client: client,
	}
}

// placeRow PostGISクエリの結果を受け取るための構造体
type placeRow struct {
	Name       string
	Location   string
	Categories string
	Address    sql.NullString
}

// ToSearchResult placeRowをmodel.SearchResultに変換
func (pr *placeRow) ToSearchResult() (*model.SearchResult, error) {
	var location GeoPoint
	if err := json.Unmarshal([]byte(pr.Location), &location); err != nil {
		return nil, fmt.Errorf("location JSONBパースエラー: %w", err)
	}

	var categories []string
	if err := json.Unmarshal([]byte(pr.Categories), &categories); err != nil {
		return nil, fmt.Errorf("categories JSONBパースエラー: %w", err)
	}

	result := &model.SearchResult{
		Name:       pr.Name,
		Coordinate: GeoPointToLatLng(&location),
		Types:      categories,
	}
	if pr.Address.Valid {
		result.Address = pr.Address.String
	}

	return result, nil
}

// SearchText は検索語の部分一致とST_DWithinによる半径絞り込みでスポットを検索する
func (r *PostgresPlacesRepository) SearchText(ctx context.Context, term string, region model.SearchRegion) ([]*model.SearchResult, error) {
	query := `
		SELECT name, location, categories, address
		FROM pois
		WHERE (name ILIKE '%' || $1 || '%' OR categories::text ILIKE '%' || $1 || '%')
		AND ST_DWithin(
			location_geog,
			ST_SetSRID(ST_MakePoint($2, $3), 4326)::geography,
			$4
		)
		ORDER BY ST_Distance(
			location_geog,
			ST_SetSRID(ST_MakePoint($2, $3), 4326)::geography
		)
		LIMIT 10`

	rows, err := r.client.DB.QueryContext(ctx, query,
		term, region.Center.Lng, region.Center.Lat, region.RadiusMeters)
	if err != nil {
		return nil, fmt.Errorf("検索語 %q のPOIデータ取得失敗: %w", term, err)
	}
	defer rows.Close()

	var results []*model.SearchResult
	for rows.Next() {
		var row placeRow
		if err := rows.Scan(&row.Name, &row.Location, &row.Categories, &row.Address); err != nil {
			return nil, fmt.Errorf("POIデータスキャンエラー: %w", err)
		}

		result, err := row.ToSearchResult()
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("POIデータの走査に失敗: %w", err)
	}

	return results, nil
}
