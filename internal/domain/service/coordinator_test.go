package service

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"MeetPoint-App/internal/domain/model"
)

// newTestCoordinator はタイマー類を短縮したCoordinatorを作成する
func newTestCoordinator(search *mockSearchProvider, directions *mockDirectionsProvider) *Coordinator {
	c := NewCoordinator(search, directions)
	c.DebounceDelay = 20 * time.Millisecond
	c.searchScheduler.CourtesyDelay = time.Millisecond

	// 起動済みの経路ドライバを止めて短い間隔で再起動する
	c.directionScheduler.Stop()
	c.directionScheduler.TickInterval = 10 * time.Millisecond
	c.directionScheduler.FollowUpDelay = 5 * time.Millisecond
	c.directionScheduler.BackoffDelay = 50 * time.Millisecond
	c.directionScheduler.Start()
	return c
}

func userLocation(name string, lat, lng float64) model.UserLocation {
	return model.UserLocation{
		ID:          name,
		DisplayName: name,
		Coordinate:  model.LatLng{Lat: lat, Lng: lng},
	}
}

// waitForSearchIdle は検索の完了を待つ
func waitForSearchIdle(t *testing.T, c *Coordinator) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if !c.Results().IsSearching {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("検索が時間内に完了しませんでした")
}

func TestCoordinator_MidpointAndRadiusDerivation(t *testing.T) {
	c := newTestCoordinator(&mockSearchProvider{}, &mockDirectionsProvider{})
	defer c.Close()

	c.AddLocation(userLocation("A", 0, 0))
	c.AddLocation(userLocation("B", 0, 2))
	waitForSearchIdle(t, c)

	state := c.State()
	if state.Midpoint == nil {
		t.Fatal("中間地点が計算されるべきです")
	}
	if state.Midpoint.Lat != 0 || state.Midpoint.Lng != 1 {
		t.Errorf("中間地点が(0,1)になるべきですが: %+v", state.Midpoint)
	}

	// 経度2度 ≈ 222km、0.7倍は上限20kmを超えるためクランプされる
	if state.MaxSearchRadiusKm != 20.0 {
		t.Errorf("最大半径が20kmになるべきですが: %f", state.MaxSearchRadiusKm)
	}
}

func TestCoordinator_EmptyLocationsWithholdsSearch(t *testing.T) {
	search := &mockSearchProvider{}
	c := newTestCoordinator(search, &mockDirectionsProvider{})
	defer c.Close()

	c.AddLocation(userLocation("A", 35.0, 135.7))
	waitForSearchIdle(t, c)
	c.RemoveLocation(0)

	state := c.State()
	if state.Midpoint != nil {
		t.Errorf("地点0件では中間地点がnilになるべきですが: %+v", state.Midpoint)
	}
	if c.Results().IsSearching {
		t.Error("地点0件では検索が実行されるべきではありません")
	}
}

func TestCoordinator_SearchFlow(t *testing.T) {
	search := &mockSearchProvider{
		respond: func(term string, callCount int) ([]*model.SearchResult, error) {
			return []*model.SearchResult{
				{Name: term + " Restaurant", Coordinate: model.LatLng{Lat: 35.001, Lng: 135.701}, Types: []string{"restaurant"}},
			}, nil
		},
	}
	directions := &mockDirectionsProvider{}
	c := newTestCoordinator(search, directions)
	defer c.Close()

	c.AddLocation(userLocation("A", 35.0, 135.7))
	waitForSearchIdle(t, c)

	results := c.Results()
	if len(results.Places) != len(model.SeedSearchTerms) {
		t.Errorf("各検索語から1件ずつ発見されるべきですが: %d", len(results.Places))
	}

	// 距離昇順ソートの確認
	for i := 1; i < len(results.Places); i++ {
		if results.Places[i-1].DistanceFromMidpoint > results.Places[i].DistanceFromMidpoint {
			t.Error("結果が距離昇順でソートされていません")
		}
	}

	// バッチ完了後に移動時間リクエストが発行される
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		directions.mu.Lock()
		n := len(directions.calls)
		directions.mu.Unlock()
		if n > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("移動時間リクエストが発行されるべきです")
}

func TestCoordinator_RadiusNarrowing(t *testing.T) {
	// 中心付近と約3.3km先の2種類のスポットを返す
	search := &mockSearchProvider{
		respond: func(term string, callCount int) ([]*model.SearchResult, error) {
			if term == "cafe" {
				return []*model.SearchResult{
					{Name: "Far Cafe", Coordinate: model.LatLng{Lat: 35.03, Lng: 135.7}},
				}, nil
			}
			if term == "restaurant" {
				return []*model.SearchResult{
					{Name: "Near Restaurant", Coordinate: model.LatLng{Lat: 35.0005, Lng: 135.7}, Types: []string{"restaurant"}},
				}, nil
			}
			return []*model.SearchResult{}, nil
		},
	}
	c := newTestCoordinator(search, &mockDirectionsProvider{})
	defer c.Close()

	c.AddLocation(userLocation("A", 35.0, 135.7))
	waitForSearchIdle(t, c)

	if n := len(c.Results().Places); n != 2 {
		t.Fatalf("2件発見されるべきですが: %d", n)
	}

	// 半径を1kmへ縮小すると遠いスポットが除外される
	c.UpdateSearchRadius(1.0)
	time.Sleep(100 * time.Millisecond)

	results := c.Results()
	if len(results.Places) != 1 || results.Places[0].Name != "Near Restaurant" {
		t.Errorf("絞り込み後は近いスポットのみ残るべきですが: %+v", results.Places)
	}
}

func TestCoordinator_RadiusNarrowingToEmptyTriggersFullSearch(t *testing.T) {
	search := &mockSearchProvider{
		respond: func(term string, callCount int) ([]*model.SearchResult, error) {
			if term == "cafe" {
				return []*model.SearchResult{
					{Name: "Far Cafe", Coordinate: model.LatLng{Lat: 35.03, Lng: 135.7}},
				}, nil
			}
			return []*model.SearchResult{}, nil
		},
	}
	c := newTestCoordinator(search, &mockDirectionsProvider{})
	defer c.Close()

	c.AddLocation(userLocation("A", 35.0, 135.7))
	waitForSearchIdle(t, c)

	firstWave := len(search.callLog())
	if firstWave == 0 {
		t.Fatal("初回検索が実行されるべきです")
	}

	// 全スポットが圏外になる半径へ縮小するとフル再検索が走る
	c.UpdateSearchRadius(1.0)
	time.Sleep(100 * time.Millisecond)
	waitForSearchIdle(t, c)

	if n := len(search.callLog()); n <= firstWave {
		t.Errorf("フル再検索でプロバイダ呼び出しが増えるべきですが: %d -> %d", firstWave, n)
	}
}

func TestCoordinator_CategoryExpansion(t *testing.T) {
	search := &mockSearchProvider{
		respond: func(term string, callCount int) ([]*model.SearchResult, error) {
			return []*model.SearchResult{
				{Name: "Some Coffee Stand", Coordinate: model.LatLng{Lat: 35.001, Lng: 135.7}, Types: []string{"cafe"}},
			}, nil
		},
	}
	c := newTestCoordinator(search, &mockDirectionsProvider{})
	defer c.Close()

	c.AddLocation(userLocation("A", 35.0, 135.7))
	waitForSearchIdle(t, c)

	before := c.Results()
	if len(before.Places) == 0 {
		t.Fatal("カフェが発見されるべきです")
	}

	// barで絞り込むと0件になり、展開検索が起動する
	bar := model.CategoryBar
	c.SetCategoryFilter(&bar)
	waitForSearchIdle(t, c)

	foundExpansion := false
	for _, call := range search.callLog() {
		if call == "pub" {
			foundExpansion = true
		}
	}
	if !foundExpansion {
		t.Error("barの展開検索語が検索されるべきです")
	}

	// 展開検索は追加実行であり、既存の発見済みスポットは破棄されない
	none := (*model.Category)(nil)
	c.SetCategoryFilter(none)
	if n := len(c.Results().Places); n < len(before.Places) {
		t.Errorf("展開検索で既存スポットが失われました: %d -> %d", len(before.Places), n)
	}
}

func TestCoordinator_CloseStopsDirectionRequests(t *testing.T) {
	directions := &mockDirectionsProvider{delay: 5 * time.Millisecond}
	c := newTestCoordinator(&mockSearchProvider{}, directions)

	jobs := make([]model.DirectionJob, 0, 30)
	for i := 0; i < 30; i++ {
		jobs = append(jobs, model.DirectionJob{
			PlaceID: fmt.Sprintf("p%d", i),
			Mode:    model.TravelModeDriving,
		})
	}
	c.directionScheduler.Enqueue(jobs)

	// 最初のジョブが処理されるまで待つ
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		directions.mu.Lock()
		n := len(directions.calls)
		directions.mu.Unlock()
		if n >= 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	c.Close()

	// 実行中だった1件の完了を待ってから呼び出し数を固定する
	time.Sleep(50 * time.Millisecond)
	directions.mu.Lock()
	base := len(directions.calls)
	directions.mu.Unlock()

	// ティック・追撃タイマーが何周しても残キューは処理されないこと
	time.Sleep(150 * time.Millisecond)
	directions.mu.Lock()
	after := len(directions.calls)
	directions.mu.Unlock()

	if after != base {
		t.Errorf("破棄済みセッションで%d件のプロバイダ呼び出しが発生しました", after-base)
	}
}

func TestCoordinator_TextChangeTriggersCategoryExpansion(t *testing.T) {
	search := &mockSearchProvider{
		respond: func(term string, callCount int) ([]*model.SearchResult, error) {
			return []*model.SearchResult{
				{Name: "Some Coffee Stand", Coordinate: model.LatLng{Lat: 35.001, Lng: 135.7}, Types: []string{"cafe"}},
			}, nil
		},
	}
	c := newTestCoordinator(search, &mockDirectionsProvider{})
	defer c.Close()

	c.AddLocation(userLocation("A", 35.0, 135.7))
	waitForSearchIdle(t, c)

	// カフェで絞り込んだ時点では表示は空にならず展開は走らない
	cafe := model.CategoryCafe
	c.SetCategoryFilter(&cafe)
	if len(c.Results().Places) == 0 {
		t.Fatal("カフェでの絞り込みはヒットするべきです")
	}

	// テキスト変更で表示が0件になると展開検索が起動する
	c.SetSearchText("zzz-no-match")
	time.Sleep(50 * time.Millisecond) // デバウンスの発火を待つ
	waitForSearchIdle(t, c)

	foundExpansion := false
	for _, call := range search.callLog() {
		if call == "coffee shop" {
			foundExpansion = true
		}
	}
	if !foundExpansion {
		t.Error("テキスト変更で表示が空になった場合はcafeの展開検索語が検索されるべきです")
	}
}

func TestCoordinator_RadiusRevertCancelsPendingChange(t *testing.T) {
	// 中心から約3.3km先のスポットを返す（縮小が適用されれば除外される距離）
	search := &mockSearchProvider{
		respond: func(term string, callCount int) ([]*model.SearchResult, error) {
			if term != "cafe" {
				return []*model.SearchResult{}, nil
			}
			return []*model.SearchResult{
				{Name: "Far Cafe", Coordinate: model.LatLng{Lat: 35.03, Lng: 135.7}},
			}, nil
		},
	}
	c := newTestCoordinator(search, &mockDirectionsProvider{})
	defer c.Close()

	c.AddLocation(userLocation("A", 35.0, 135.7))
	waitForSearchIdle(t, c)

	if n := len(c.Results().Places); n != 1 {
		t.Fatalf("1件発見されるべきですが: %d", n)
	}

	// 縮小を予約した直後に元の値へ戻すと、保留中の変更は取り消される
	c.UpdateSearchRadius(1.0)
	c.UpdateSearchRadius(5.0)
	time.Sleep(100 * time.Millisecond)

	state := c.State()
	if state.SearchRadiusKm != 5.0 {
		t.Errorf("半径は元の5kmのままであるべきですが: %f", state.SearchRadiusKm)
	}
	if n := len(c.Results().Places); n != 1 {
		t.Errorf("取り消された縮小で結果が絞り込まれています: %d件", n)
	}
}

func TestCoordinator_DirectionResultAttribution(t *testing.T) {
	c := newTestCoordinator(&mockSearchProvider{}, &mockDirectionsProvider{})
	defer c.Close()

	locA := userLocation("A", 35.0, 135.7)
	locB := userLocation("B", 35.1, 135.8)
	c.AddLocation(locA)
	c.AddLocation(locB)
	waitForSearchIdle(t, c)

	c.mu.Lock()
	c.registry.Merge([]*model.Place{testPlace("p1", "カフェ", model.CategoryCafe, 100)}, 5000)
	c.mu.Unlock()

	t.Run("出発座標の完全一致で地点を特定する", func(t *testing.T) {
		job := model.DirectionJob{PlaceID: "p1", From: locB.Coordinate, Mode: model.TravelModeDriving}
		c.applyDirectionResult(job, 15)

		c.mu.Lock()
		place := c.registry.Snapshot()[0]
		c.mu.Unlock()
		if place.TravelTimes[1] == nil || *place.TravelTimes[1].DrivingMinutes != 15 {
			t.Errorf("地点インデックス1に反映されるべきですが: %+v", place.TravelTimes)
		}
	})

	t.Run("一致しない場合はインデックス0にフォールバックする", func(t *testing.T) {
		job := model.DirectionJob{PlaceID: "p1", From: model.LatLng{Lat: 99, Lng: 99}, Mode: model.TravelModeWalking}
		c.applyDirectionResult(job, 40)

		c.mu.Lock()
		place := c.registry.Snapshot()[0]
		c.mu.Unlock()
		if place.TravelTimes[0] == nil || *place.TravelTimes[0].WalkingMinutes != 40 {
			t.Errorf("地点インデックス0に反映されるべきですが: %+v", place.TravelTimes)
		}
	})
}

func TestCoordinator_StaleGenerationDiscarded(t *testing.T) {
	var block sync.WaitGroup
	block.Add(1)

	released := false
	var mu sync.Mutex

	search := &mockSearchProvider{
		respond: func(term string, callCount int) ([]*model.SearchResult, error) {
			mu.Lock()
			first := !released
			mu.Unlock()
			if first {
				// 1世代目の呼び出しを新世代開始までブロックする
				block.Wait()
			}
			return []*model.SearchResult{
				{Name: "Stale " + term, Coordinate: model.LatLng{Lat: 35.001, Lng: 135.7}},
			}, nil
		},
	}
	c := newTestCoordinator(search, &mockDirectionsProvider{})
	defer c.Close()

	c.AddLocation(userLocation("A", 35.0, 135.7))
	time.Sleep(20 * time.Millisecond)

	// 2地点目の追加で新世代が始まり、旧世代の結果は破棄されるべき
	mu.Lock()
	released = true
	mu.Unlock()
	c.AddLocation(userLocation("B", 35.001, 135.701))
	block.Done()

	waitForSearchIdle(t, c)

	// 旧世代の遅延バッチがマージされていたとしても、レジストリは新世代の
	// リセット後の結果のみを含む（seed語数 × 1件以内）
	if n := len(c.Results().Places); n > len(model.SeedSearchTerms) {
		t.Errorf("旧世代の結果が混入しています: %d件", n)
	}
}
