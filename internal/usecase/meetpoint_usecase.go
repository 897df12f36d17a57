package usecase

import (
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"MeetPoint-App/internal/domain/model"
	"MeetPoint-App/internal/domain/repository"
	"MeetPoint-App/internal/domain/service"
)

type MeetPointUseCase interface {
	// CreateSession は新しい検索セッションを作成しIDを返す
	CreateSession() string

	// AddLocation は地点を追加し、中間地点の再計算と検索を起動する
	AddLocation(sessionID string, loc model.UserLocation) error

	// SetLocation は指定インデックスの地点を置き換える
	SetLocation(sessionID string, index int, loc model.UserLocation) error

	// RemoveLocation は指定インデックスの地点を削除する
	RemoveLocation(sessionID string, index int) error

	// UpdateSearchRadius は検索半径を更新する（デバウンス付き）
	UpdateSearchRadius(sessionID string, km float64) error

	// SetFilter はテキスト・カテゴリフィルタを更新する
	SetFilter(sessionID string, text *string, category *model.Category) error

	// GetResults は現在の結果スナップショットを取得する
	GetResults(sessionID string) (*model.ResultSnapshot, error)

	// GetState はセッション状態を取得する
	GetState(sessionID string) (*model.SessionState, error)

	// CloseSession はセッションを破棄する
	CloseSession(sessionID string) error
}

// meetPointUseCaseImpl はMeetPointUseCaseの実装
// セッションIDごとに1つのCoordinatorを所有する
type meetPointUseCaseImpl struct {
	searchProvider     repository.PlaceSearchProvider
	directionsProvider repository.DirectionsProvider

	mu       sync.Mutex
	sessions map[string]*service.Coordinator
}

// NewMeetPointUseCase は新しいMeetPointUseCaseインスタンスを作成
func NewMeetPointUseCase(searchProvider repository.PlaceSearchProvider, directionsProvider repository.DirectionsProvider) MeetPointUseCase {
	return &meetPointUseCaseImpl{
		searchProvider:     searchProvider,
		directionsProvider: directionsProvider,
		sessions:           make(map[string]*service.Coordinator),
	}
}

func (u *meetPointUseCaseImpl) CreateSession() string {
	sessionID := uuid.New().String()

	u.mu.Lock()
	u.sessions[sessionID] = service.NewCoordinator(u.searchProvider, u.directionsProvider)
	u.mu.Unlock()

	log.Printf("🆕 セッション作成: %s", sessionID)
	return sessionID
}

func (u *meetPointUseCaseImpl) coordinator(sessionID string) (*service.Coordinator, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	c, ok := u.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("セッション %s が見つかりません", sessionID)
	}
	return c, nil
}

func (u *meetPointUseCaseImpl) AddLocation(sessionID string, loc model.UserLocation) error {
	c, err := u.coordinator(sessionID)
	if err != nil {
		return err
	}

	if loc.ID == "" {
		loc.ID = uuid.New().String()
	}
	c.AddLocation(loc)
	return nil
}

func (u *meetPointUseCaseImpl) SetLocation(sessionID string, index int, loc model.UserLocation) error {
	c, err := u.coordinator(sessionID)
	if err != nil {
		return err
	}

	if loc.ID == "" {
		loc.ID = uuid.New().String()
	}
	if !c.SetLocation(index, loc) {
		return fmt.Errorf("地点インデックス %d が範囲外です", index)
	}
	return nil
}

func (u *meetPointUseCaseImpl) RemoveLocation(sessionID string, index int) error {
	c, err := u.coordinator(sessionID)
	if err != nil {
		return err
	}

	if !c.RemoveLocation(index) {
		return fmt.Errorf("地点インデックス %d が範囲外です", index)
	}
	return nil
}

func (u *meetPointUseCaseImpl) UpdateSearchRadius(sessionID string, km float64) error {
	c, err := u.coordinator(sessionID)
	if err != nil {
		return err
	}

	c.UpdateSearchRadius(km)
	return nil
}

func (u *meetPointUseCaseImpl) SetFilter(sessionID string, text *string, category *model.Category) error {
	c, err := u.coordinator(sessionID)
	if err != nil {
		return err
	}

	if text != nil {
		c.SetSearchText(*text)
	}
	c.SetCategoryFilter(category)
	return nil
}

func (u *meetPointUseCaseImpl) GetResults(sessionID string) (*model.ResultSnapshot, error) {
	c, err := u.coordinator(sessionID)
	if err != nil {
		return nil, err
	}

	snapshot := c.Results()
	return &snapshot, nil
}

func (u *meetPointUseCaseImpl) GetState(sessionID string) (*model.SessionState, error) {
	c, err := u.coordinator(sessionID)
	if err != nil {
		return nil, err
	}

	state := c.State()
	return &state, nil
}

func (u *meetPointUseCaseImpl) CloseSession(sessionID string) error {
	u.mu.Lock()
	c, ok := u.sessions[sessionID]
	if ok {
		delete(u.sessions, sessionID)
	}
	u.mu.Unlock()

	if !ok {
		return fmt.Errorf("セッション %s が見つかりません", sessionID)
	}

	c.Close()
	log.Printf("🗑️ セッション破棄: %s", sessionID)
	return nil
}
