package model

// LatLng 緯度経度を表す基本的な型（中間地点計算・経路検索などで使用）
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// UserLocation 待ち合わせに参加する地点を表すモデル
// リスト内の順序はインデックスベースのラベリングと移動時間の紐付けに使用されるため重要
type UserLocation struct {
	ID                string `json:"id"`                  // ユニークな地点ID
	DisplayName       string `json:"display_name"`        // 表示名（住所・施設名など）
	Coordinate        LatLng `json:"coordinate"`          // 位置情報
	IsCurrentLocation bool   `json:"is_current_location"` // 現在地から追加されたかどうか
}

// SearchRegion 検索対象の中心と半径を表す
type SearchRegion struct {
	Center       LatLng  `json:"center"`
	RadiusMeters float64 `json:"radius_meters"`
}

// SessionState セッションの可変状態（Coordinatorが所有する）
type SessionState struct {
	Locations         []UserLocation `json:"locations"`
	Midpoint          *LatLng        `json:"midpoint,omitempty"`
	SearchRadiusKm    float64        `json:"search_radius_km"`
	MaxSearchRadiusKm float64        `json:"max_search_radius_km"`
	SelectedCategory  *Category      `json:"selected_category,omitempty"`
	SearchText        string         `json:"search_text"`
}

// ResultSnapshot プレゼンテーション層へ公開する検索結果のスナップショット
type ResultSnapshot struct {
	Places       []*Place `json:"places"`
	IsSearching  bool     `json:"is_searching"`
	ErrorMessage string   `json:"error_message,omitempty"`
}
