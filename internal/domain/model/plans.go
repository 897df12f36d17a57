package model

import "time"

// MeetupPlan 確定した待ち合わせプラン（共有用に保存される）
type MeetupPlan struct {
	PlanID    string         `json:"plan_id"`
	Midpoint  LatLng         `json:"midpoint"`
	Locations []UserLocation `json:"locations"`
	Places    []*Place       `json:"places"`
	CreatedAt time.Time      `json:"created_at"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// FirestoreMeetupPlan Firestore保存用の構造体（TTLフィールド付き）
type FirestoreMeetupPlan struct {
	PlanID    string         `firestore:"plan_id"`
	Midpoint  LatLng         `firestore:"midpoint"`
	Locations []UserLocation `firestore:"locations"`
	Places    []*Place       `firestore:"places"`
	CreatedAt time.Time      `firestore:"created_at"`
	ExpiresAt time.Time      `firestore:"expires_at"` // FirestoreのTTLポリシー対象フィールド
}

// ToFirestoreMeetupPlan MeetupPlan を Firestore 保存用に変換（TTL時間を設定）
func (p *MeetupPlan) ToFirestoreMeetupPlan(ttlHours int) *FirestoreMeetupPlan {
	now := time.Now()
	return &FirestoreMeetupPlan{
		PlanID:    p.PlanID,
		Midpoint:  p.Midpoint,
		Locations: p.Locations,
		Places:    p.Places,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Duration(ttlHours) * time.Hour),
	}
}

// ToMeetupPlan Firestore 形式から MeetupPlan に変換
func (f *FirestoreMeetupPlan) ToMeetupPlan() *MeetupPlan {
	return &MeetupPlan{
		PlanID:    f.PlanID,
		Midpoint:  f.Midpoint,
		Locations: f.Locations,
		Places:    f.Places,
		CreatedAt: f.CreatedAt,
		ExpiresAt: f.ExpiresAt,
	}
}
