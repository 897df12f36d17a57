package service

import (
	"log"
	"sort"
	"strings"

	"MeetPoint-App/internal/domain/model"
)

// PlaceRegistry は発見済みスポットの正規化されたコレクションを所有する
// 重複排除・半径フィルタ・距離昇順ソートを担当する
// 全ての変更はCoordinator経由で直列化されるため内部ロックは持たない
type PlaceRegistry struct {
	places []*model.Place
	index  map[string]*model.Place
}

// NewPlaceRegistry は新しいPlaceRegistryインスタンスを作成する
func NewPlaceRegistry() *PlaceRegistry {
	return &PlaceRegistry{
		places: []*model.Place{},
		index:  make(map[string]*model.Place),
	}
}

// Merge は検索バッチを既存コレクションに統合する
// IDによる重複排除（先勝ち。後着の重複は上書きせず破棄）と半径フィルタを適用し、
// 中間地点からの距離昇順でソートした全件を返す
func (r *PlaceRegistry) Merge(newPlaces []*model.Place, radiusMeters float64) []*model.Place {
	for _, place := range newPlaces {
		if place == nil {
			continue
		}
		if _, exists := r.index[place.ID]; exists {
			continue
		}
		if place.DistanceFromMidpoint > radiusMeters {
			continue
		}
		r.index[place.ID] = place
		r.places = append(r.places, place)
	}

	// 既存エントリにも半径フィルタを再適用する
	filtered := r.places[:0]
	for _, place := range r.places {
		if place.DistanceFromMidpoint <= radiusMeters {
			filtered = append(filtered, place)
		} else {
			delete(r.index, place.ID)
		}
	}
	r.places = filtered

	sort.SliceStable(r.places, func(i, j int) bool {
		return r.places[i].DistanceFromMidpoint < r.places[j].DistanceFromMidpoint
	})

	return r.Snapshot()
}

// Narrow は検索半径の縮小時に既存コレクションを絞り込む
// 新しい半径を超えるエントリを除外し、残った全件を距離昇順で返す
func (r *PlaceRegistry) Narrow(radiusMeters float64) []*model.Place {
	return r.Merge(nil, radiusMeters)
}

// Filter はテキストとカテゴリでスナップショットを絞り込む純粋関数
// テキストは名前・カテゴリ名・住所への大文字小文字を区別しない部分一致、
// または同義語テーブル経由のカテゴリ一致で判定する
// カテゴリフィルタはテキストフィルタとANDで結合される
func (r *PlaceRegistry) Filter(text string, category *model.Category) []*model.Place {
	snapshot := r.Snapshot()

	if category != nil {
		filtered := make([]*model.Place, 0, len(snapshot))
		for _, place := range snapshot {
			if place.Category == *category {
				filtered = append(filtered, place)
			}
		}
		snapshot = filtered
	}

	text = strings.TrimSpace(strings.ToLower(text))
	if text == "" {
		return snapshot
	}

	synonymCategories := model.TextFilterSynonyms[text]

	filtered := make([]*model.Place, 0, len(snapshot))
	for _, place := range snapshot {
		if matchesText(place, text) || matchesSynonym(place, synonymCategories) {
			filtered = append(filtered, place)
		}
	}
	return filtered
}

func matchesText(place *model.Place, text string) bool {
	if strings.Contains(strings.ToLower(place.Name), text) {
		return true
	}
	if strings.Contains(strings.ToLower(string(place.Category)), text) {
		return true
	}
	if strings.Contains(strings.ToLower(model.GetCategoryJapaneseName(place.Category)), text) {
		return true
	}
	if strings.Contains(strings.ToLower(place.Street), text) {
		return true
	}
	if strings.Contains(strings.ToLower(place.Locality), text) {
		return true
	}
	return false
}

func matchesSynonym(place *model.Place, categories []model.Category) bool {
	for _, c := range categories {
		if place.Category == c {
			return true
		}
	}
	return false
}

// ApplyTravelTime は指定スポットの移動時間を冪等に更新する
// 半径フィルタで除外済みのスポットに対する更新は想定内のレースのため、
// エラーにせずログのみ残して無視する
func (r *PlaceRegistry) ApplyTravelTime(placeID string, locationIndex int, mode model.TravelMode, minutes int) {
	place, ok := r.index[placeID]
	if !ok {
		log.Printf("⚠️ 移動時間の更新対象スポットが見つかりません（除外済みの可能性）: %s", placeID)
		return
	}

	tt := place.TravelTimeFor(locationIndex)
	switch mode {
	case model.TravelModeDriving:
		tt.DrivingMinutes = &minutes
	case model.TravelModeWalking:
		tt.WalkingMinutes = &minutes
	}
}

// Reset は全スポットをクリアする（新しい検索世代の開始時に呼ばれる）
func (r *PlaceRegistry) Reset() {
	r.places = []*model.Place{}
	r.index = make(map[string]*model.Place)
}

// Snapshot は現在のコレクションのコピーを返す
func (r *PlaceRegistry) Snapshot() []*model.Place {
	snapshot := make([]*model.Place, len(r.places))
	copy(snapshot, r.places)
	return snapshot
}

// Len は現在のスポット数を返す
func (r *PlaceRegistry) Len() int {
	return len(r.places)
}
