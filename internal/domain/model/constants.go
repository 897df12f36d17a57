package model

// SeedSearchTerms フル検索で使用する固定の検索語リスト
// 順序は検索キューへの投入順そのまま
var SeedSearchTerms = []string{
	"restaurant",
	"cafe",
	"shopping",
	"grocery",
	"entertainment",
	"bar",
	"park",
	"bakery",
	"gym",
}

// CategoryExpansionTerms カテゴリ絞り込みで結果が0件になった場合に
// キューの先頭へ追加する展開検索語のマッピング
var CategoryExpansionTerms = map[Category][]string{
	CategoryRestaurant: {"diner", "bistro", "ramen", "sushi", "pizza"},
	CategoryCafe:       {"coffee shop", "tea house", "espresso", "dessert cafe"},
	CategoryBar:        {"pub", "nightclub", "lounge", "wine bar", "brewery"},
	CategoryPark:       {"garden", "playground", "plaza", "riverside park"},
}

// カテゴリ判定用のキーワードテーブル
// 優先順位: restaurant > cafe > bar > park > other
var (
	RestaurantKeywords = []string{"restaurant", "food", "meal", "diner", "sushi", "ramen", "pizza", "grill"}
	CafeKeywords       = []string{"cafe", "coffee", "bakery", "tea", "espresso"}
	BarKeywords        = []string{"bar", "pub", "lounge", "brewery", "nightclub", "izakaya"}
	ParkKeywords       = []string{"park", "garden", "playground", "plaza"}
)

// TextFilterSynonyms フリーテキストフィルタの同義語テーブル
// テキストがキーに一致した場合、マッピングされたカテゴリのスポットもヒット扱いにする
var TextFilterSynonyms = map[string][]Category{
	"coffee": {CategoryCafe},
	"food":   {CategoryRestaurant, CategoryCafe},
	"eat":    {CategoryRestaurant, CategoryCafe},
	"drink":  {CategoryBar},
	"lunch":  {CategoryRestaurant},
	"dinner": {CategoryRestaurant},
}

// CategoryNameMap カテゴリIDから日本語名へのマッピング
var CategoryNameMap = map[Category]string{
	CategoryRestaurant: "レストラン",
	CategoryCafe:       "カフェ",
	CategoryBar:        "バー",
	CategoryPark:       "公園",
	CategoryOther:      "その他",
}

// GetCategoryJapaneseName カテゴリIDから日本語名を取得する
func GetCategoryJapaneseName(category Category) string {
	if name, ok := CategoryNameMap[category]; ok {
		return name
	}
	return string(category) // デフォルトはそのまま返す
}
