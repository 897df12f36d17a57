package repository

import (
	"context"

	"MeetPoint-App/internal/domain/model"
)

type PlanRepository interface {
	// SavePlan は待ち合わせプランをTTL付きで保存し、plan_idを採番して返す
	SavePlan(ctx context.Context, plan *model.MeetupPlan, ttlHours int) (*model.MeetupPlan, error)

	// GetPlan は指定されたplan_idのプランを取得する
	GetPlan(ctx context.Context, planID string) (*model.MeetupPlan, error)
}
