package maps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"MeetPoint-App/internal/domain/model"
	"MeetPoint-App/internal/domain/repository"
)

// GoogleDirectionsProvider はGoogle Maps Directions APIを使用した移動時間取得の実装
type GoogleDirectionsProvider struct {
	apiKey     string
	httpClient *http.Client
}

// NewGoogleDirectionsProvider は新しいプロバイダを生成する
func NewGoogleDirectionsProvider(apiKey string) *GoogleDirectionsProvider {
	return &GoogleDirectionsProvider{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// EstimateDuration はGoogle Maps Directions APIを呼び出して移動時間を取得する
// スロットリング時は repository.ErrProviderThrottled を返す
func (g *GoogleDirectionsProvider) EstimateDuration(ctx context.Context, from, to model.LatLng, mode model.TravelMode) (time.Duration, error) {
	// 1. APIリクエストURLを構築
	reqURL := g.buildURL(from, to, mode)

	// 2. HTTPリクエストを作成・実行
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return 0, fmt.Errorf("リクエストの作成に失敗: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("APIリクエストに失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return 0, repository.ErrProviderThrottled
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("APIからエラーステータスが返されました: %s", resp.Status)
	}

	// 3. JSONレスポンスをパース
	var apiResp googleRouteResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return 0, fmt.Errorf("JSONのパースに失敗: %w", err)
	}

	// OVER_QUERY_LIMITはリトライ可能なスロットリングとして区別する
	if apiResp.Status == "OVER_QUERY_LIMIT" {
		return 0, repository.ErrProviderThrottled
	}
	if apiResp.Status != "OK" || len(apiResp.Routes) == 0 {
		return 0, errors.New("APIから有効なルートが返されませんでした")
	}

	// 4. 全legの所要時間を合算して返す
	firstRoute := apiResp.Routes[0]
	var totalDurationSec int
	for _, leg := range firstRoute.Legs {
		totalDurationSec += leg.Duration.Value
	}

	return time.Duration(totalDurationSec) * time.Second, nil
}

func (g *GoogleDirectionsProvider) buildURL(from, to model.LatLng, mode model.TravelMode) string {
	baseURL := "https://maps.googleapis.com/maps/api/directions/json"
	params := url.Values{}
	params.Set("origin", fmt.Sprintf("%f,%f", from.Lat, from.Lng))
	params.Set("destination", fmt.Sprintf("%f,%f", to.Lat, to.Lng))
	params.Set("mode", string(mode))
	params.Set("language", "ja")
	params.Set("key", g.apiKey)

	return fmt.Sprintf("%s?%s", baseURL, params.Encode())
}

// --- Google Maps APIのレスポンスをパースするための構造体 ---

type googleRouteResponse struct {
	Routes       []route `json:"routes"`
	Status       string  `json:"status"`
	ErrorMessage string  `json:"error_message,omitempty"`
}
type route struct {
	Legs []leg `json:"legs"`
}
type leg struct {
	Duration duration `json:"duration"`
}
type duration struct {
	Value int `json:"value"` // seconds
}
