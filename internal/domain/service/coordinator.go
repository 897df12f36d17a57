package service

import (
	"log"
	"sync"
	"time"

	"MeetPoint-App/internal/domain/helper"
	"MeetPoint-App/internal/domain/model"
	"MeetPoint-App/internal/domain/repository"
)

const (
	defaultSearchRadiusKm = 5.0
	debounceDelay         = 300 * time.Millisecond

	// 移動時間リクエストのコスト制御ティア
	maxDirectionPlaces        = 10 // 移動時間を取得するスポット数の上限
	maxDirectionPlacesCrowded = 5  // 地点が3つ以上の場合の上限
	maxDirectionLocations     = 5  // 移動時間を取得する地点数の上限
	walkingLocationLimit      = 2  // 徒歩時間を取得する地点インデックスの上限
	walkingTopPlaceLimit      = 3  // 全地点の徒歩時間を取得する上位スポット数
)

// Coordinator はセッションの可変状態を所有し、2つのスケジューラを接続する
// SessionStateとPlaceRegistryの変更は全てCoordinatorのロック配下で直列化され、
// スケジューラのコールバックも直接共有状態を触らずここを経由する
type Coordinator struct {
	mu sync.Mutex

	state    model.SessionState
	registry *PlaceRegistry

	searchScheduler    *SearchScheduler
	directionScheduler *DirectionScheduler

	// 検索世代。世代が進むと古い実行の遅延コールバックはマージ時点で破棄される
	generation int

	isSearching  bool
	errorMessage string

	// この世代で既に移動時間リクエストを発行したスポットID
	requestedDirections map[string]bool

	radiusDebounce *time.Timer
	pendingRadius  float64
	textDebounce   *time.Timer

	subscribers []chan model.ResultSnapshot

	// デバウンス時間（テストから短縮できるようフィールドにしている）
	DebounceDelay time.Duration
}

// NewCoordinator は新しいCoordinatorインスタンスを作成し、経路スケジューラを起動する
func NewCoordinator(searchProvider repository.PlaceSearchProvider, directionsProvider repository.DirectionsProvider) *Coordinator {
	c := &Coordinator{
		state: model.SessionState{
			Locations:         []model.UserLocation{},
			SearchRadiusKm:    defaultSearchRadiusKm,
			MaxSearchRadiusKm: defaultSearchRadiusKm,
		},
		registry:            NewPlaceRegistry(),
		searchScheduler:     NewSearchScheduler(searchProvider),
		requestedDirections: make(map[string]bool),
		DebounceDelay:       debounceDelay,
	}
	c.directionScheduler = NewDirectionScheduler(directionsProvider, c.applyDirectionResult)
	c.directionScheduler.Start()
	return c
}

// Close はスケジューラを停止する
// キューに残ったジョブも破棄し、追撃タイマー経由のプロバイダ呼び出しを止める
func (c *Coordinator) Close() {
	c.searchScheduler.Cancel()
	c.directionScheduler.Stop()
	c.directionScheduler.Reset()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.radiusDebounce != nil {
		c.radiusDebounce.Stop()
	}
	if c.textDebounce != nil {
		c.textDebounce.Stop()
	}
	for _, ch := range c.subscribers {
		close(ch)
	}
	c.subscribers = nil
}

// AddLocation は地点を追加し、中間地点を再計算して新しい検索世代を開始する
func (c *Coordinator) AddLocation(loc model.UserLocation) {
	c.mu.Lock()
	c.state.Locations = append(c.state.Locations, loc)
	c.recomputeGeometryLocked()
	c.mu.Unlock()
}

// SetLocation は指定インデックスの地点を丸ごと置き換える
func (c *Coordinator) SetLocation(index int, loc model.UserLocation) bool {
	c.mu.Lock()
	if index < 0 || index >= len(c.state.Locations) {
		c.mu.Unlock()
		return false
	}
	c.state.Locations[index] = loc
	c.recomputeGeometryLocked()
	c.mu.Unlock()
	return true
}

// RemoveLocation は指定インデックスの地点を削除する
func (c *Coordinator) RemoveLocation(index int) bool {
	c.mu.Lock()
	if index < 0 || index >= len(c.state.Locations) {
		c.mu.Unlock()
		return false
	}
	c.state.Locations = append(c.state.Locations[:index], c.state.Locations[index+1:]...)
	c.recomputeGeometryLocked()
	c.mu.Unlock()
	return true
}

// recomputeGeometryLocked は中間地点と最大検索半径を再計算し、
// 地点が存在する場合のみ新しい検索世代を開始する（c.muを保持して呼ぶこと）
func (c *Coordinator) recomputeGeometryLocked() {
	coords := make([]model.LatLng, len(c.state.Locations))
	for i, loc := range c.state.Locations {
		coords[i] = loc.Coordinate
	}

	midpoint, err := helper.Midpoint(coords)
	if err != nil {
		// 地点が0件の場合は中間地点なしとして検索を保留する
		// 実行中の世代は打ち切り、遅延コールバックが混入しないよう世代を進める
		c.state.Midpoint = nil
		c.generation++
		c.searchScheduler.Cancel()
		c.directionScheduler.Reset()
		c.registry.Reset()
		c.isSearching = false
		c.publishLocked()
		return
	}
	c.state.Midpoint = &midpoint

	maxPairwise := helper.MaxPairwiseDistance(coords)
	c.state.MaxSearchRadiusKm = helper.DerivedMaxRadiusKm(maxPairwise)
	if c.state.SearchRadiusKm > c.state.MaxSearchRadiusKm {
		c.state.SearchRadiusKm = c.state.MaxSearchRadiusKm
	}

	c.startGenerationLocked()
}

// startGenerationLocked は新しい検索世代を開始する（c.muを保持して呼ぶこと）
// 前世代の実行はキャンセルされ、レジストリと経路キューはリセットされる
func (c *Coordinator) startGenerationLocked() {
	c.generation++
	gen := c.generation

	c.registry.Reset()
	c.directionScheduler.Reset()
	c.requestedDirections = make(map[string]bool)
	c.isSearching = true
	c.errorMessage = ""

	midpoint := *c.state.Midpoint
	region := model.SearchRegion{
		Center:       midpoint,
		RadiusMeters: c.state.SearchRadiusKm * 1000,
	}

	log.Printf("🚀 検索世代 %d 開始 (地点数: %d, 半径: %.1fkm)", gen, len(c.state.Locations), c.state.SearchRadiusKm)

	c.searchScheduler.Start(
		model.SeedSearchTerms,
		region,
		midpoint,
		func(places []*model.Place) { c.onSearchBatch(gen, places) },
		func() { c.onSearchDone(gen) },
	)
}

// onSearchBatch は検索バッチの完了を処理する
// 古い世代から遅れて届いた結果はマージせず破棄する
func (c *Coordinator) onSearchBatch(gen int, places []*model.Place) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}

	merged := c.registry.Merge(places, c.state.SearchRadiusKm*1000)
	c.enqueueDirectionJobsLocked(merged)
	c.publishLocked()
	c.mu.Unlock()
}

// onSearchDone は検索キューの枯渇を処理する
func (c *Coordinator) onSearchDone(gen int) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.isSearching = false
	c.publishLocked()
	c.mu.Unlock()
}

// enqueueDirectionJobsLocked はマージ済みスポットの上位に対して移動時間リクエストを
// 発行する（c.muを保持して呼ぶこと）
// コスト制御のティア:
//   - 対象スポットは上位10件（地点が3つ以上の場合は上位5件）
//   - 各スポットにつき全地点（最大5地点）の運転時間
//   - 徒歩時間は先頭2地点、または距離上位3件のスポットに限る
func (c *Coordinator) enqueueDirectionJobsLocked(merged []*model.Place) {
	maxPlaces := maxDirectionPlaces
	if len(c.state.Locations) > 2 {
		maxPlaces = maxDirectionPlacesCrowded
	}

	var jobs []model.DirectionJob
	for rank, place := range merged {
		if rank >= maxPlaces {
			break
		}
		if c.requestedDirections[place.ID] {
			continue
		}
		c.requestedDirections[place.ID] = true

		for locIndex, loc := range c.state.Locations {
			if locIndex >= maxDirectionLocations {
				break
			}
			jobs = append(jobs, model.DirectionJob{
				PlaceID: place.ID,
				From:    loc.Coordinate,
				To:      place.Coordinate,
				Mode:    model.TravelModeDriving,
			})
			if locIndex < walkingLocationLimit || rank < walkingTopPlaceLimit {
				jobs = append(jobs, model.DirectionJob{
					PlaceID: place.ID,
					From:    loc.Coordinate,
					To:      place.Coordinate,
					Mode:    model.TravelModeWalking,
				})
			}
		}
	}

	if len(jobs) > 0 {
		log.Printf("🧭 移動時間リクエストを%d件投入", len(jobs))
		c.directionScheduler.Enqueue(jobs)
	}
}

// applyDirectionResult は経路スケジューラからの結果をレジストリへ書き戻す
// 地点の特定は出発座標の完全一致で行い、一致しない場合はインデックス0に
// フォールバックする（座標が極端に近い場合は誤帰属しうる既知の近似）
func (c *Coordinator) applyDirectionResult(job model.DirectionJob, minutes int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	locationIndex := 0
	found := false
	for i, loc := range c.state.Locations {
		if loc.Coordinate.Lat == job.From.Lat && loc.Coordinate.Lng == job.From.Lng {
			locationIndex = i
			found = true
			break
		}
	}
	if !found {
		log.Printf("⚠️ 出発座標に一致する地点が見つからないためインデックス0を使用: %s", job.PlaceID)
	}

	c.registry.ApplyTravelTime(job.PlaceID, locationIndex, job.Mode, minutes)
	c.publishLocked()
}

// UpdateSearchRadius は検索半径を更新する（300msのデバウンス付き）
// 絞り込みで結果が残る場合は既存集合を縮小し、空になる場合はフル再検索を行う
func (c *Coordinator) UpdateSearchRadius(km float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if km > c.state.MaxSearchRadiusKm {
		km = c.state.MaxSearchRadiusKm
	}
	if km == c.state.SearchRadiusKm {
		// 確定値へ戻す操作は保留中の変更の取り消しを意味する
		if c.radiusDebounce != nil {
			c.radiusDebounce.Stop()
			c.radiusDebounce = nil
		}
		c.pendingRadius = km
		return
	}

	c.pendingRadius = km
	if c.radiusDebounce != nil {
		c.radiusDebounce.Stop()
	}
	c.radiusDebounce = time.AfterFunc(c.DebounceDelay, c.applyPendingRadius)
}

func (c *Coordinator) applyPendingRadius() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.SearchRadiusKm = c.pendingRadius
	if c.state.Midpoint == nil {
		return
	}

	remaining := c.registry.Narrow(c.state.SearchRadiusKm * 1000)
	if len(remaining) == 0 {
		log.Printf("🔄 半径変更で結果が0件になったためフル再検索を実行")
		c.startGenerationLocked()
		return
	}
	c.publishLocked()
}

// SetCategoryFilter はカテゴリフィルタを即時適用する
// 絞り込み結果が0件でレジストリ自体は空でない場合は、破壊的リセットではなく
// カテゴリ展開検索（追加実行）を起動する
func (c *Coordinator) SetCategoryFilter(category *model.Category) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.SelectedCategory = category
	c.publishLocked()
	c.expandIfFilteredEmptyLocked()
}

// SetSearchText はテキストフィルタを更新する（300msのデバウンス付き）
// テキスト変更で表示が0件になった場合もカテゴリ展開検索の対象になる
func (c *Coordinator) SetSearchText(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.textDebounce != nil {
		c.textDebounce.Stop()
	}
	c.textDebounce = time.AfterFunc(c.DebounceDelay, func() {
		c.mu.Lock()
		c.state.SearchText = text
		c.publishLocked()
		c.expandIfFilteredEmptyLocked()
		c.mu.Unlock()
	})
}

// expandIfFilteredEmptyLocked は選択中のカテゴリでの絞り込み結果が0件かつ
// レジストリ自体は空でない場合にカテゴリ展開検索を起動する（c.muを保持して呼ぶこと）
func (c *Coordinator) expandIfFilteredEmptyLocked() {
	category := c.state.SelectedCategory
	if category == nil || c.state.Midpoint == nil {
		return
	}

	filtered := c.registry.Filter(c.state.SearchText, category)
	if len(filtered) > 0 || c.registry.Len() == 0 {
		return
	}

	terms, ok := model.CategoryExpansionTerms[*category]
	if !ok {
		return
	}

	gen := c.generation
	c.isSearching = true
	midpoint := *c.state.Midpoint
	region := model.SearchRegion{
		Center:       midpoint,
		RadiusMeters: c.state.SearchRadiusKm * 1000,
	}

	c.searchScheduler.Expand(
		terms,
		region,
		midpoint,
		func(places []*model.Place) { c.onSearchBatch(gen, places) },
		func() { c.onSearchDone(gen) },
	)
}

// Results は現在のフィルタ適用済み結果スナップショットを返す
func (c *Coordinator) Results() model.ResultSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// State はセッション状態のコピーを返す
func (c *Coordinator) State() model.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := c.state
	state.Locations = append([]model.UserLocation{}, c.state.Locations...)
	return state
}

// Subscribe は結果スナップショットの更新通知チャンネルを返す
// バッファ溢れ時は最新の通知がドロップされる（次回更新で追いつく）
func (c *Coordinator) Subscribe() <-chan model.ResultSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan model.ResultSnapshot, 8)
	c.subscribers = append(c.subscribers, ch)
	return ch
}

func (c *Coordinator) snapshotLocked() model.ResultSnapshot {
	return model.ResultSnapshot{
		Places:       c.registry.Filter(c.state.SearchText, c.state.SelectedCategory),
		IsSearching:  c.isSearching,
		ErrorMessage: c.errorMessage,
	}
}

func (c *Coordinator) publishLocked() {
	snapshot := c.snapshotLocked()
	for _, ch := range c.subscribers {
		select {
		case ch <- snapshot:
		default:
		}
	}
}
