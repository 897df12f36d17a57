package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"MeetPoint-App/internal/domain/helper"
	"MeetPoint-App/internal/domain/model"
	"MeetPoint-App/internal/domain/repository"
)

// rateWindow は検索プロバイダ呼び出し回数を固定長ウィンドウで管理するカウンタ
type rateWindow struct {
	windowStart  time.Time
	requestCount int
}

// SearchScheduler は検索語キューをレート制限・並列数制限・即時キャンセル対応で
// 外部検索プロバイダに対して順次処理するスケジューラ
type SearchScheduler struct {
	provider repository.PlaceSearchProvider

	// レート制御パラメータ（テストから短縮できるようフィールドにしている）
	RequestLimit    int           // ウィンドウあたりの呼び出し上限
	WindowDuration  time.Duration // レートウィンドウ長
	WindowPadding   time.Duration // ウィンドウ明け待機の余裕
	BatchSize       int           // 同時実行する検索語数
	ResultsPerQuery int           // 1検索語あたりの採用件数上限
	CourtesyDelay   time.Duration // バッチ間の待機時間
	QueueCeiling    int           // スロットリング再投入を抑止するキュー長上限

	mu     sync.Mutex
	queue  []string
	window rateWindow
	cancel context.CancelFunc
}

// NewSearchScheduler は新しいSearchSchedulerインスタンスを作成する
func NewSearchScheduler(provider repository.PlaceSearchProvider) *SearchScheduler {
	return &SearchScheduler{
		provider:        provider,
		RequestLimit:    30,
		WindowDuration:  60 * time.Second,
		WindowPadding:   500 * time.Millisecond,
		BatchSize:       2,
		ResultsPerQuery: 5,
		CourtesyDelay:   200 * time.Millisecond,
		QueueCeiling:    10,
	}
}

// Start は前回の実行をキャンセルし、レートウィンドウをリセットして
// 検索語キューの処理を開始する（フルリスタート）
func (s *SearchScheduler) Start(terms []string, region model.SearchRegion, midpoint model.LatLng, onBatch func([]*model.Place), onDone func()) {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.queue = append([]string{}, terms...)
	s.window = rateWindow{windowStart: time.Now(), requestCount: 0}
	s.mu.Unlock()

	log.Printf("🚀 スポット検索開始: %d件の検索語", len(terms))
	go s.drain(ctx, region, midpoint, onBatch, onDone)
}

// Expand は展開検索語をキューの先頭へ追加して処理を再開する
// フルリスタートと異なり、レートウィンドウも発見済みスポットもリセットしない
func (s *SearchScheduler) Expand(terms []string, region model.SearchRegion, midpoint model.LatLng, onBatch func([]*model.Place), onDone func()) {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	// 既にキューにある検索語は重複させない
	prepended := make([]string, 0, len(terms)+len(s.queue))
	for _, term := range terms {
		if !containsTerm(s.queue, term) {
			prepended = append(prepended, term)
		}
	}
	s.queue = append(prepended, s.queue...)
	s.mu.Unlock()

	log.Printf("🔍 カテゴリ展開検索: %d件の展開語を先頭に追加", len(terms))
	go s.drain(ctx, region, midpoint, onBatch, onDone)
}

// Cancel は実行中の処理を中断する
// 発行済みのプロバイダ呼び出しは完了するが、結果は破棄される
func (s *SearchScheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// drain はキューが空になるかキャンセルされるまでバッチ処理を繰り返す
func (s *SearchScheduler) drain(ctx context.Context, region model.SearchRegion, midpoint model.LatLng, onBatch func([]*model.Place), onDone func()) {
	for {
		if ctx.Err() != nil {
			return
		}

		// レートウィンドウの確認（必要ならウィンドウ明けまで待機）
		if !s.waitForRateWindow(ctx) {
			return
		}

		batch := s.dequeueBatch()
		if len(batch) == 0 {
			log.Printf("✅ スポット検索完了")
			onDone()
			return
		}

		places := s.executeBatch(ctx, batch, region, midpoint)
		if ctx.Err() != nil {
			// キャンセル後に返ってきた結果は破棄する
			return
		}

		onBatch(places)

		// キューが残っている場合はバッチ間の待機を入れる
		s.mu.Lock()
		remaining := len(s.queue)
		s.mu.Unlock()
		if remaining > 0 {
			if !sleepCtx(ctx, s.CourtesyDelay) {
				return
			}
		}
	}
}

// waitForRateWindow は呼び出し回数が上限に達している場合、ウィンドウが明けるまで待機する
// 待機後（または既にウィンドウが経過していた場合）はカウンタをリセットする
// キャンセルされた場合はfalseを返す
func (s *SearchScheduler) waitForRateWindow(ctx context.Context) bool {
	s.mu.Lock()
	count := s.window.requestCount
	elapsed := time.Since(s.window.windowStart)
	s.mu.Unlock()

	if count < s.RequestLimit {
		return true
	}

	if elapsed < s.WindowDuration {
		wait := s.WindowDuration - elapsed + s.WindowPadding
		log.Printf("⏳ レート上限到達: %.1f秒待機", wait.Seconds())
		if !sleepCtx(ctx, wait) {
			return false
		}
	}

	s.mu.Lock()
	s.window = rateWindow{windowStart: time.Now(), requestCount: 0}
	s.mu.Unlock()
	return true
}

// dequeueBatch はキューの先頭から最大BatchSize件の検索語を取り出す
func (s *SearchScheduler) dequeueBatch() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.BatchSize
	if n > len(s.queue) {
		n = len(s.queue)
	}
	batch := append([]string{}, s.queue[:n]...)
	s.queue = s.queue[n:]
	return batch
}

// executeBatch はバッチ内の検索語を並行実行し、結果をスポットに変換して集約する
// 並列数はバッチサイズ（=2）で制限される
func (s *SearchScheduler) executeBatch(ctx context.Context, batch []string, region model.SearchRegion, midpoint model.LatLng) []*model.Place {
	collected := make([][]*model.Place, len(batch))
	var wg sync.WaitGroup

	for i, term := range batch {
		wg.Add(1)
		go func(idx int, t string) {
			defer wg.Done()

			// 呼び出し前にカウンタを加算する
			s.mu.Lock()
			s.window.requestCount++
			s.mu.Unlock()

			results, err := s.provider.SearchText(ctx, t, region)
			if err != nil {
				if errors.Is(err, repository.ErrProviderThrottled) {
					s.requeueThrottledTerm(t)
				} else {
					log.Printf("⚠️ 検索語 %q の検索に失敗: %v", t, err)
				}
				return
			}

			collected[idx] = s.mapResults(results, midpoint)
		}(i, term)
	}

	wg.Wait()

	var places []*model.Place
	for _, batchPlaces := range collected {
		places = append(places, batchPlaces...)
	}
	return places
}

// mapResults は検索結果を最大ResultsPerQuery件までスポットに変換する
// IDの採番・カテゴリ判定・中間地点からの距離計算をここで行う
// 重複排除はここでは行わない（PlaceRegistryの責務）
func (s *SearchScheduler) mapResults(results []*model.SearchResult, midpoint model.LatLng) []*model.Place {
	places := make([]*model.Place, 0, s.ResultsPerQuery)
	for _, result := range results {
		if len(places) >= s.ResultsPerQuery {
			break
		}
		street, locality := splitAddress(result.Address)
		places = append(places, &model.Place{
			ID:                   uuid.New().String(),
			Name:                 result.Name,
			Coordinate:           result.Coordinate,
			Category:             ClassifyCategory(result.Name, result.Types),
			Street:               street,
			Locality:             locality,
			DistanceFromMidpoint: helper.HaversineDistance(midpoint, result.Coordinate),
			TravelTimes:          make(map[int]*model.TravelTime),
		})
	}
	return places
}

// requeueThrottledTerm はスロットリングされた検索語をキューの末尾に再投入する
// 既にキューに存在する場合、またはキューが上限に達している場合は再投入しない
func (s *SearchScheduler) requeueThrottledTerm(term string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if containsTerm(s.queue, term) {
		return
	}
	if len(s.queue) >= s.QueueCeiling {
		log.Printf("⚠️ キューが上限に達しているため検索語 %q を破棄", term)
		return
	}

	log.Printf("🔁 スロットリングされた検索語 %q を末尾に再投入", term)
	s.queue = append(s.queue, term)
}

// splitAddress は "通り, 市区町村" 形式の住所文字列を分割する
func splitAddress(address string) (street, locality string) {
	idx := strings.LastIndex(address, ",")
	if idx < 0 {
		return strings.TrimSpace(address), ""
	}
	return strings.TrimSpace(address[:idx]), strings.TrimSpace(address[idx+1:])
}

func containsTerm(queue []string, term string) bool {
	for _, t := range queue {
		if t == term {
			return true
		}
	}
	return false
}

// sleepCtx はキャンセル可能な待機を行う（待機完了でtrue、キャンセルでfalse）
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
