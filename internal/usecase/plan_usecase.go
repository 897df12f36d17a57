package usecase

import (
	"context"
	"fmt"
	"log"

	"MeetPoint-App/internal/domain/model"
	"MeetPoint-App/internal/domain/repository"
)

const planTTLHours = 24

type PlanUseCase interface {
	// CreatePlan は指定セッションの現在の検索結果を共有用プランとして保存する
	CreatePlan(ctx context.Context, sessionID string) (*model.MeetupPlan, error)

	// GetPlan は指定されたplan_idのプランを取得する
	GetPlan(ctx context.Context, planID string) (*model.MeetupPlan, error)
}

// planUseCaseImpl はPlanUseCaseの実装
type planUseCaseImpl struct {
	meetPointUseCase MeetPointUseCase
	planRepo         repository.PlanRepository
}

// NewPlanUseCase は新しいPlanUseCaseインスタンスを作成
func NewPlanUseCase(meetPointUseCase MeetPointUseCase, planRepo repository.PlanRepository) PlanUseCase {
	return &planUseCaseImpl{
		meetPointUseCase: meetPointUseCase,
		planRepo:         planRepo,
	}
}

// CreatePlan はセッションの現在の状態と結果からプランを組み立てて保存する
func (u *planUseCaseImpl) CreatePlan(ctx context.Context, sessionID string) (*model.MeetupPlan, error) {
	state, err := u.meetPointUseCase.GetState(sessionID)
	if err != nil {
		return nil, err
	}
	if state.Midpoint == nil {
		return nil, fmt.Errorf("中間地点が未計算のためプランを作成できません")
	}

	results, err := u.meetPointUseCase.GetResults(sessionID)
	if err != nil {
		return nil, err
	}

	plan := &model.MeetupPlan{
		Midpoint:  *state.Midpoint,
		Locations: state.Locations,
		Places:    results.Places,
	}

	saved, err := u.planRepo.SavePlan(ctx, plan, planTTLHours)
	if err != nil {
		return nil, fmt.Errorf("プランの保存に失敗: %w", err)
	}

	log.Printf("🎉 プラン作成完了: %s (スポット数: %d)", saved.PlanID, len(saved.Places))
	return saved, nil
}

// GetPlan は指定されたplan_idのプランを取得する
func (u *planUseCaseImpl) GetPlan(ctx context.Context, planID string) (*model.MeetupPlan, error) {
	plan, err := u.planRepo.GetPlan(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("プランの取得に失敗: %w", err)
	}
	return plan, nil
}
