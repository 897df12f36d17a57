package repository

import (
	"context"
	"time"

	"MeetPoint-App/internal/domain/model"
)

type DirectionsProvider interface {
	// EstimateDuration は指定モードでの移動時間を取得する
	// スロットリング時は ErrProviderThrottled を返す
	EstimateDuration(ctx context.Context, from, to model.LatLng, mode model.TravelMode) (time.Duration, error)
}
