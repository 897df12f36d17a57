package maps

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"MeetPoint-App/internal/domain/model"
	"MeetPoint-App/internal/domain/repository"
)

// GooglePlacesProvider はGoogle Places Text Search APIを使用したスポット検索の実装
type GooglePlacesProvider struct {
	apiKey     string
	httpClient *http.Client
}

// NewGooglePlacesProvider は新しいプロバイダを生成する
func NewGooglePlacesProvider(apiKey string) *GooglePlacesProvider {
	return &GooglePlacesProvider{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// SearchText はフリーテキスト検索語で指定領域内のスポットを検索する
// スロットリング時は repository.ErrProviderThrottled を返す
func (g *GooglePlacesProvider) SearchText(ctx context.Context, term string, region model.SearchRegion) ([]*model.SearchResult, error) {
	reqURL := g.buildURL(term, region)

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエストの作成に失敗: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("APIリクエストに失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, repository.ErrProviderThrottled
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("APIからエラーステータスが返されました: %s", resp.Status)
	}

	var apiResp googlePlacesResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("JSONのパースに失敗: %w", err)
	}

	switch apiResp.Status {
	case "OK":
		// 続行
	case "ZERO_RESULTS":
		return []*model.SearchResult{}, nil
	case "OVER_QUERY_LIMIT":
		return nil, repository.ErrProviderThrottled
	default:
		return nil, fmt.Errorf("APIからエラーが返されました: %s (%s)", apiResp.Status, apiResp.ErrorMessage)
	}

	results := make([]*model.SearchResult, 0, len(apiResp.Results))
	for _, r := range apiResp.Results {
		results = append(results, &model.SearchResult{
			Name: r.Name,
			Coordinate: model.LatLng{
				Lat: r.Geometry.Location.Lat,
				Lng: r.Geometry.Location.Lng,
			},
			Types:   r.Types,
			Address: r.FormattedAddress,
		})
	}
	return results, nil
}

func (g *GooglePlacesProvider) buildURL(term string, region model.SearchRegion) string {
	baseURL := "https://maps.googleapis.com/maps/api/place/textsearch/json"
	params := url.Values{}
	params.Set("query", term)
	params.Set("location", fmt.Sprintf("%f,%f", region.Center.Lat, region.Center.Lng))
	params.Set("radius", fmt.Sprintf("%.0f", region.RadiusMeters))
	params.Set("language", "ja")
	params.Set("key", g.apiKey)

	return fmt.Sprintf("%s?%s", baseURL, params.Encode())
}

// --- Google Places APIのレスポンスをパースするための構造体 ---

type googlePlacesResponse struct {
	Results      []placeResult `json:"results"`
	Status       string        `json:"status"`
	ErrorMessage string        `json:"error_message,omitempty"`
}
type placeResult struct {
	Name             string        `json:"name"`
	Geometry         placeGeometry `json:"geometry"`
	Types            []string      `json:"types"`
	FormattedAddress string        `json:"formatted_address"`
}
type placeGeometry struct {
	Location placeLocation `json:"location"`
}
type placeLocation struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}
