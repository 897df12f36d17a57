package model

// TravelMode 経路検索の移動手段
type TravelMode string

const (
	TravelModeDriving TravelMode = "driving"
	TravelModeWalking TravelMode = "walking"
)

// DirectionJob 移動時間取得のための1件のリクエストを表す
// DirectionSchedulerによって一度だけ消費される（スロットリング時は末尾に再投入される）
type DirectionJob struct {
	PlaceID string     `json:"place_id"`
	From    LatLng     `json:"from"`
	To      LatLng     `json:"to"`
	Mode    TravelMode `json:"mode"`
}
