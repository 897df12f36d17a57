package service

import (
	"strings"

	"MeetPoint-App/internal/domain/model"
)

// ClassifyCategory はプロバイダのメタデータとスポット名からカテゴリを判定する
// 優先順位: restaurant > cafe > bar > park > other
func ClassifyCategory(name string, providerTypes []string) model.Category {
	haystack := strings.ToLower(name)
	for _, t := range providerTypes {
		haystack += " " + strings.ToLower(t)
	}

	// 優先順位順にキーワードを照合する
	ordered := []struct {
		category model.Category
		keywords []string
	}{
		{model.CategoryRestaurant, model.RestaurantKeywords},
		{model.CategoryCafe, model.CafeKeywords},
		{model.CategoryBar, model.BarKeywords},
		{model.CategoryPark, model.ParkKeywords},
	}

	for _, entry := range ordered {
		for _, keyword := range entry.keywords {
			if strings.Contains(haystack, keyword) {
				return entry.category
			}
		}
	}

	return model.CategoryOther
}
