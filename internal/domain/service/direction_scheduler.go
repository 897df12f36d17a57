package service

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"MeetPoint-App/internal/domain/model"
	"MeetPoint-App/internal/domain/repository"
)

// DirectionScheduler は移動時間リクエストを単一消費者の直列キューで処理するスケジューラ
// 同時実行は常に1件まで（単一スロットのゲート）で、スロットリング時は
// バックオフ後にジョブをキューの末尾へ再投入する
type DirectionScheduler struct {
	provider repository.DirectionsProvider

	// 移動時間結果の書き戻し（Coordinator経由でPlaceRegistryに反映される）
	applyResult func(job model.DirectionJob, minutes int)

	// ペーシングパラメータ（テストから短縮できるようフィールドにしている）
	TickInterval  time.Duration // 定期ドライバの間隔
	FollowUpDelay time.Duration // ジョブ完了後の追撃処理までの待機
	BackoffDelay  time.Duration // スロットリング時のバックオフ

	mu           sync.Mutex
	queue        []model.DirectionJob
	gateHeld     bool
	pendingRetry []model.DirectionJob
	backoffTimer *time.Timer
	ticker       *time.Ticker
	stopCh       chan struct{}
	started      bool
}

// NewDirectionScheduler は新しいDirectionSchedulerインスタンスを作成する
func NewDirectionScheduler(provider repository.DirectionsProvider, applyResult func(job model.DirectionJob, minutes int)) *DirectionScheduler {
	return &DirectionScheduler{
		provider:      provider,
		applyResult:   applyResult,
		TickInterval:  2 * time.Second,
		FollowUpDelay: 1 * time.Second,
		BackoffDelay:  5 * time.Second,
	}
}

// Start は定期ドライバを起動する（多重起動は無視される）
func (s *DirectionScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.stopCh = make(chan struct{})
	s.ticker = time.NewTicker(s.TickInterval)

	go func(ticker *time.Ticker, stopCh chan struct{}) {
		for {
			select {
			case <-stopCh:
				ticker.Stop()
				return
			case <-ticker.C:
				s.ProcessNext()
			}
		}
	}(s.ticker, s.stopCh)
}

// Stop は定期ドライバを停止する
func (s *DirectionScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.started = false
	close(s.stopCh)
}

// Enqueue はジョブをキューの末尾に追加する（処理のトリガーはしない）
func (s *DirectionScheduler) Enqueue(jobs []model.DirectionJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, jobs...)
}

// Reset はキュー・再試行待ちジョブ・バックオフタイマーをクリアする
// 新しい検索世代の開始時に呼ばれる
func (s *DirectionScheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = nil
	s.pendingRetry = nil
	if s.backoffTimer != nil {
		s.backoffTimer.Stop()
		s.backoffTimer = nil
	}
}

// QueueLen は現在のキュー長を返す
func (s *DirectionScheduler) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// ProcessNext はキューの先頭ジョブの処理を試みる
// ゲートが保持されている間、またはキューが空の場合は何もしない
func (s *DirectionScheduler) ProcessNext() {
	s.mu.Lock()
	if s.gateHeld || len(s.queue) == 0 {
		s.mu.Unlock()
		return
	}
	s.gateHeld = true
	job := s.queue[0]
	s.queue = s.queue[1:]
	s.mu.Unlock()

	go s.execute(job)
}

// execute は1件のジョブに対してプロバイダ呼び出しを行い、結果を振り分ける
func (s *DirectionScheduler) execute(job model.DirectionJob) {
	duration, err := s.provider.EstimateDuration(context.Background(), job.From, job.To, job.Mode)

	if err != nil {
		if errors.Is(err, repository.ErrProviderThrottled) {
			// バックオフ中も他のジョブが詰まらないようゲートは即座に解放する
			// プロバイダ側の制限はグローバルなため、バックオフが明けるまで
			// 後続の試行も概ね再スロットリングされるが、これは許容する
			log.Printf("🔁 経路検索がスロットリングされました。%v後に再投入します", s.BackoffDelay)
			s.releaseGate()
			s.scheduleRetry(job)
			return
		}

		// スロットリング以外のエラーはジョブを破棄する（再試行しない）
		log.Printf("⚠️ 経路検索に失敗したためジョブを破棄: %s (%s): %v", job.PlaceID, job.Mode, err)
		s.releaseGate()
		s.scheduleFollowUp()
		return
	}

	minutes := int(duration.Minutes())
	s.applyResult(job, minutes)
	s.releaseGate()
	s.scheduleFollowUp()
}

func (s *DirectionScheduler) releaseGate() {
	s.mu.Lock()
	s.gateHeld = false
	s.mu.Unlock()
}

// scheduleFollowUp はジョブ完了後に1回だけ追撃のProcessNextを予約する
func (s *DirectionScheduler) scheduleFollowUp() {
	time.AfterFunc(s.FollowUpDelay, s.ProcessNext)
}

// scheduleRetry はスロットリングされたジョブをバックオフ後に末尾へ再投入する
// タイマーは単一で、再スロットリングのたびにリスタートされる
// FIFOの公平性を保つため、再投入は常に末尾（先頭には戻さない）
func (s *DirectionScheduler) scheduleRetry(job model.DirectionJob) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pendingRetry = append(s.pendingRetry, job)
	if s.backoffTimer != nil {
		s.backoffTimer.Stop()
	}
	s.backoffTimer = time.AfterFunc(s.BackoffDelay, func() {
		s.mu.Lock()
		retries := s.pendingRetry
		s.pendingRetry = nil
		s.backoffTimer = nil
		s.queue = append(s.queue, retries...)
		s.mu.Unlock()

		s.ProcessNext()
	})
}
