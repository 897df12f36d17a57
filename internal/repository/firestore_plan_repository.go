package repository

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"

	"MeetPoint-App/internal/domain/model"
	domainRepo "MeetPoint-App/internal/domain/repository"
)

// FirestorePlanRepository Firestoreを使用した待ち合わせプラン共有リポジトリ
type FirestorePlanRepository struct {
	client *firestore.Client
}

// NewFirestorePlanRepository 新しいFirestorePlanRepositoryインスタンスを作成
func NewFirestorePlanRepository(client *firestore.Client) *FirestorePlanRepository {
	return &FirestorePlanRepository{
		client: client,
	}
}

// SavePlan は待ち合わせプランをFirestoreに保存し、plan_idを採番して返す
func (r *FirestorePlanRepository) SavePlan(ctx context.Context, plan *model.MeetupPlan, ttlHours int) (*model.MeetupPlan, error) {
	planID := fmt.Sprintf("plan_%s", uuid.New().String())
	plan.PlanID = planID

	firestoreData := plan.ToFirestoreMeetupPlan(ttlHours)

	_, err := r.client.Collection("meetupPlans").Doc(planID).Set(ctx, firestoreData)
	if err != nil {
		log.Printf("❌ Failed to save meetup plan %s: %v", planID, err)
		return nil, fmt.Errorf("プランの保存に失敗しました: %w", err)
	}

	log.Printf("✅ Meetup plan saved: %s (expires in %d hours)", planID, ttlHours)

	plan.CreatedAt = firestoreData.CreatedAt
	plan.ExpiresAt = firestoreData.ExpiresAt
	return plan, nil
}

// GetPlan は指定されたplan_idのプランをFirestoreから取得する
func (r *FirestorePlanRepository) GetPlan(ctx context.Context, planID string) (*model.MeetupPlan, error) {
	doc, err := r.client.Collection("meetupPlans").Doc(planID).Get(ctx)
	if err != nil {
		// Firestoreのエラータイプをチェック
		if status := err.Error(); strings.Contains(status, "NotFound") || strings.Contains(status, "not found") {
			return nil, domainRepo.ErrPlanNotFound
		}
		return nil, fmt.Errorf("プランの取得に失敗しました: %w", err)
	}

	var firestoreData model.FirestoreMeetupPlan
	if err := doc.DataTo(&firestoreData); err != nil {
		return nil, fmt.Errorf("データの変換に失敗しました: %w", err)
	}

	// TTL切れのドキュメントはFirestore側の削除が遅延することがあるため自前でも弾く
	if time.Now().After(firestoreData.ExpiresAt) {
		return nil, domainRepo.ErrPlanNotFound
	}

	return firestoreData.ToMeetupPlan(), nil
}
