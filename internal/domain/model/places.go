package model

// Category スポットのカテゴリを表す型
type Category string

const (
	CategoryRestaurant Category = "restaurant"
	CategoryCafe       Category = "cafe"
	CategoryBar        Category = "bar"
	CategoryPark       Category = "park"
	CategoryOther      Category = "other"
)

// TravelTime ある地点からスポットまでの移動時間（分）
// 未取得のモードはnilのまま保持する
type TravelTime struct {
	DrivingMinutes *int `json:"driving_minutes,omitempty"`
	WalkingMinutes *int `json:"walking_minutes,omitempty"`
}

// Place 検索で発見されたスポットを表すモデル
// IDは重複排除と移動時間更新の識別キーとして使用される
type Place struct {
	ID                   string              `json:"id"`                     // ユニークなスポットID
	Name                 string              `json:"name"`                   // スポット名
	Coordinate           LatLng              `json:"coordinate"`             // 位置情報
	Category             Category            `json:"category"`               // カテゴリ
	Street               string              `json:"street,omitempty"`       // 住所（番地・通り）
	Locality             string              `json:"locality,omitempty"`     // 住所（市区町村）
	DistanceFromMidpoint float64             `json:"distance_from_midpoint"` // 中間地点からの距離（メートル）
	TravelTimes          map[int]*TravelTime `json:"travel_times"`           // 地点インデックス -> 移動時間
}

// TravelTimeFor 指定インデックスの移動時間を取得する（なければ生成する）
func (p *Place) TravelTimeFor(locationIndex int) *TravelTime {
	if p.TravelTimes == nil {
		p.TravelTimes = make(map[int]*TravelTime)
	}
	if tt, ok := p.TravelTimes[locationIndex]; ok {
		return tt
	}
	tt := &TravelTime{}
	p.TravelTimes[locationIndex] = tt
	return tt
}

// SearchResult 検索プロバイダから返される生の検索結果
type SearchResult struct {
	Name       string   `json:"name"`
	Coordinate LatLng   `json:"coordinate"`
	Types      []string `json:"types"`   // プロバイダ側のカテゴリメタデータ
	Address    string   `json:"address"` // 住所文字列（"通り, 市区町村" 形式を想定）
}
