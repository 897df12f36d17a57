package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"MeetPoint-App/internal/domain/model"
	"MeetPoint-App/internal/domain/repository"
)

// mockDirectionsProvider は呼び出し履歴と同時実行数の最大値を記録するモック
type mockDirectionsProvider struct {
	mu        sync.Mutex
	calls     []model.DirectionJob
	inFlight  int
	highWater int
	delay     time.Duration
	respond   func(job model.DirectionJob, callCount int) (time.Duration, error)
}

func (m *mockDirectionsProvider) EstimateDuration(ctx context.Context, from, to model.LatLng, mode model.TravelMode) (time.Duration, error) {
	job := model.DirectionJob{From: from, To: to, Mode: mode}

	m.mu.Lock()
	m.calls = append(m.calls, job)
	callCount := len(m.calls)
	m.inFlight++
	if m.inFlight > m.highWater {
		m.highWater = m.inFlight
	}
	m.mu.Unlock()

	if m.delay > 0 {
		time.Sleep(m.delay)
	}

	m.mu.Lock()
	m.inFlight--
	m.mu.Unlock()

	if m.respond != nil {
		return m.respond(job, callCount)
	}
	return 10 * time.Minute, nil
}

// appliedRecord は書き戻しコールバックの呼び出しを記録する
type appliedRecord struct {
	mu      sync.Mutex
	results []model.DirectionJob
}

func (a *appliedRecord) apply(job model.DirectionJob, minutes int) {
	a.mu.Lock()
	a.results = append(a.results, job)
	a.mu.Unlock()
}

func (a *appliedRecord) snapshot() []model.DirectionJob {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]model.DirectionJob{}, a.results...)
}

func fastDirectionScheduler(provider *mockDirectionsProvider, applied *appliedRecord) *DirectionScheduler {
	s := NewDirectionScheduler(provider, applied.apply)
	s.TickInterval = 10 * time.Millisecond
	s.FollowUpDelay = 5 * time.Millisecond
	s.BackoffDelay = 100 * time.Millisecond
	return s
}

func directionJob(placeID string, mode model.TravelMode) model.DirectionJob {
	return model.DirectionJob{
		PlaceID: placeID,
		From:    model.LatLng{Lat: 35.0, Lng: 135.7},
		To:      model.LatLng{Lat: 35.1, Lng: 135.8},
		Mode:    mode,
	}
}

func TestDirectionScheduler_SingleSlotGate(t *testing.T) {
	provider := &mockDirectionsProvider{delay: 15 * time.Millisecond}
	applied := &appliedRecord{}
	scheduler := fastDirectionScheduler(provider, applied)

	jobs := []model.DirectionJob{
		directionJob("p1", model.TravelModeDriving),
		directionJob("p2", model.TravelModeDriving),
		directionJob("p3", model.TravelModeWalking),
		directionJob("p4", model.TravelModeWalking),
		directionJob("p5", model.TravelModeDriving),
	}
	scheduler.Enqueue(jobs)
	scheduler.Start()
	defer scheduler.Stop()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if len(applied.snapshot()) == len(jobs) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	results := applied.snapshot()
	if len(results) != len(jobs) {
		t.Fatalf("全ジョブが処理されるべきですが: %d/%d", len(results), len(jobs))
	}

	provider.mu.Lock()
	highWater := provider.highWater
	provider.mu.Unlock()
	if highWater != 1 {
		t.Errorf("同時実行数は常に1であるべきですが: %d", highWater)
	}

	// FIFO順が保たれている
	for i, job := range results {
		if job.PlaceID != jobs[i].PlaceID {
			t.Errorf("ジョブ%dの順序が不正: %s != %s", i, job.PlaceID, jobs[i].PlaceID)
		}
	}
}

func TestDirectionScheduler_ThrottledJobRequeuedAtTail(t *testing.T) {
	// シナリオ: 同一スポットのdrivingとwalkingの2ジョブ
	// drivingは初回スロットリング、walkingは成功する
	var mu sync.Mutex
	throttledOnce := false

	provider := &mockDirectionsProvider{
		respond: func(job model.DirectionJob, callCount int) (time.Duration, error) {
			mu.Lock()
			defer mu.Unlock()
			if job.Mode == model.TravelModeDriving && !throttledOnce {
				throttledOnce = true
				return 0, repository.ErrProviderThrottled
			}
			return 8 * time.Minute, nil
		},
	}
	applied := &appliedRecord{}
	scheduler := fastDirectionScheduler(provider, applied)

	scheduler.Enqueue([]model.DirectionJob{
		directionJob("p1", model.TravelModeDriving),
		directionJob("p1", model.TravelModeWalking),
	})
	scheduler.Start()
	defer scheduler.Stop()

	// バックオフ前: walkingのみ反映されている
	time.Sleep(60 * time.Millisecond)
	results := applied.snapshot()
	if len(results) != 1 || results[0].Mode != model.TravelModeWalking {
		t.Fatalf("バックオフ前はwalkingのみ反映されるべきですが: %+v", results)
	}

	// バックオフ明け: 再投入されたdrivingが処理される
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if len(applied.snapshot()) == 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	results = applied.snapshot()
	if len(results) != 2 {
		t.Fatalf("バックオフ後にdrivingも反映されるべきですが: %+v", results)
	}
	// 末尾への再投入のため、drivingはwalkingの後に処理される
	if results[1].Mode != model.TravelModeDriving {
		t.Errorf("再投入ジョブは末尾で処理されるべきです: %+v", results)
	}
}

func TestDirectionScheduler_NonThrottleErrorDropsJob(t *testing.T) {
	// プロバイダには座標とモードしか渡らないため、失敗ジョブはモードで識別する
	provider := &mockDirectionsProvider{
		respond: func(job model.DirectionJob, callCount int) (time.Duration, error) {
			if job.Mode == model.TravelModeWalking {
				return 0, errors.New("no route found")
			}
			return 5 * time.Minute, nil
		},
	}
	applied := &appliedRecord{}
	scheduler := fastDirectionScheduler(provider, applied)

	scheduler.Enqueue([]model.DirectionJob{
		directionJob("broken", model.TravelModeWalking),
		directionJob("p2", model.TravelModeDriving),
	})
	scheduler.Start()
	defer scheduler.Stop()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if len(applied.snapshot()) == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(300 * time.Millisecond)

	// 失敗ジョブは破棄され、再試行されない
	results := applied.snapshot()
	if len(results) != 1 || results[0].PlaceID != "p2" {
		t.Fatalf("成功ジョブのみ反映されるべきですが: %+v", results)
	}

	provider.mu.Lock()
	brokenCalls := 0
	for _, c := range provider.calls {
		if c.Mode == model.TravelModeWalking {
			brokenCalls++
		}
	}
	provider.mu.Unlock()
	if brokenCalls != 1 {
		t.Errorf("破棄されたジョブは再試行されるべきではありません: %d回", brokenCalls)
	}
}

func TestDirectionScheduler_Reset(t *testing.T) {
	provider := &mockDirectionsProvider{delay: 20 * time.Millisecond}
	applied := &appliedRecord{}
	scheduler := fastDirectionScheduler(provider, applied)

	scheduler.Enqueue([]model.DirectionJob{
		directionJob("p1", model.TravelModeDriving),
		directionJob("p2", model.TravelModeDriving),
	})

	// ドライバ起動前にリセットすれば何も処理されない
	scheduler.Reset()
	scheduler.Start()
	defer scheduler.Stop()

	time.Sleep(100 * time.Millisecond)
	if n := len(applied.snapshot()); n != 0 {
		t.Errorf("リセット後はジョブが処理されるべきではありません: %d", n)
	}
	if scheduler.QueueLen() != 0 {
		t.Errorf("リセット後のキューは空であるべきです: %d", scheduler.QueueLen())
	}
}
