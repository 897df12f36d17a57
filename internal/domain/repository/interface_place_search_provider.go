package repository

import (
	"context"

	"MeetPoint-App/internal/domain/model"
)

type PlaceSearchProvider interface {
	// SearchText はフリーテキスト検索語で指定領域内のスポットを検索する
	// スロットリング時は ErrProviderThrottled を返す
	SearchText(ctx context.Context, term string, region model.SearchRegion) ([]*model.SearchResult, error)
}
