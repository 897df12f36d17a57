package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"MeetPoint-App/internal/domain/repository"
	"MeetPoint-App/internal/handler"
	"MeetPoint-App/internal/infrastructure/database"
	fsinfra "MeetPoint-App/internal/infrastructure/firestore"
	"MeetPoint-App/internal/infrastructure/maps"
	repoImpl "MeetPoint-App/internal/repository"
	"MeetPoint-App/internal/usecase"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found, using system environment variables")
	}

	// スポット検索プロバイダの選択
	searchProvider, err := buildSearchProvider()
	if err != nil {
		log.Fatalf("検索プロバイダの初期化失敗: %v", err)
	}

	googleMapsAPIKey := os.Getenv("GOOGLE_MAPS_API_KEY")
	if googleMapsAPIKey == "" {
		fmt.Println("⚠️  環境変数が設定されていません:")
		fmt.Println("必要な環境変数: GOOGLE_MAPS_API_KEY")
		fmt.Println("\n.envファイルを作成するか、環境変数を設定してください")
		log.Fatal("Environment variables not set")
	}
	directionsProvider := maps.NewGoogleDirectionsProvider(googleMapsAPIKey)

	meetPointUseCase := usecase.NewMeetPointUseCase(searchProvider, directionsProvider)

	// ルーティングの設定
	r := gin.Default()

	r.GET("/api/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "healthy", "service": "MeetPoint-App"})
	})

	sessionHandler := handler.NewSessionHandler(meetPointUseCase)
	r.POST("/sessions", sessionHandler.PostSession)
	r.GET("/sessions/:id", sessionHandler.GetState)
	r.DELETE("/sessions/:id", sessionHandler.DeleteSession)
	r.POST("/sessions/:id/locations", sessionHandler.PostLocation)
	r.PUT("/sessions/:id/locations/:index", sessionHandler.PutLocation)
	r.DELETE("/sessions/:id/locations/:index", sessionHandler.DeleteLocation)
	r.PUT("/sessions/:id/radius", sessionHandler.PutRadius)
	r.PUT("/sessions/:id/filter", sessionHandler.PutFilter)
	r.GET("/sessions/:id/results", sessionHandler.GetResults)

	// Firestoreが設定されている場合のみプラン共有APIを有効にする
	if projectID := os.Getenv("FIRESTORE_PROJECT_ID"); projectID != "" {
		fsClient, err := fsinfra.NewFirestoreClient(context.Background(), projectID)
		if err != nil {
			log.Fatalf("Firestoreクライアント初期化失敗: %v", err)
		}
		defer fsClient.Close()

		planRepo := repoImpl.NewFirestorePlanRepository(fsClient.GetClient())
		planUseCase := usecase.NewPlanUseCase(meetPointUseCase, planRepo)
		planHandler := handler.NewPlanHandler(planUseCase)
		r.POST("/plans", planHandler.PostPlan)
		r.GET("/plans/:id", planHandler.GetPlan)
		fmt.Println("✅ Plan sharing enabled (Firestore)")
	} else {
		fmt.Println("ℹ️  FIRESTORE_PROJECT_ID未設定のためプラン共有APIは無効です")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	fmt.Printf("MeetPoint-App server starting on :%s...\n", port)
	log.Fatal(r.Run(":" + port))
}

// buildSearchProvider はPLACES_BACKEND環境変数に応じた検索プロバイダを構築する
// google（デフォルト） | postgres | supabase
func buildSearchProvider() (repository.PlaceSearchProvider, error) {
	backend := os.Getenv("PLACES_BACKEND")

	switch backend {
	case "", "google":
		apiKey := os.Getenv("GOOGLE_MAPS_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("GOOGLE_MAPS_API_KEY環境変数が設定されていません")
		}
		fmt.Println("✅ Places backend: Google Places API")
		return maps.NewGooglePlacesProvider(apiKey), nil

	case "postgres":
		fmt.Println("Initializing PostgreSQL client...")
		pgClient, err := database.NewPostgreSQLClient()
		if err != nil {
			return nil, fmt.Errorf("PostgreSQLクライアント初期化失敗: %w", err)
		}
		if err := pgClient.HealthCheck(); err != nil {
			return nil, fmt.Errorf("PostgreSQLヘルスチェック失敗: %w", err)
		}
		fmt.Println("✅ Places backend: PostgreSQL (PostGIS)")
		return repoImpl.NewPostgresPlacesRepository(pgClient), nil

	case "supabase":
		fmt.Println("Initializing Supabase client...")
		sbClient, err := database.NewSupabaseClient()
		if err != nil {
			return nil, fmt.Errorf("Supabaseクライアント初期化失敗: %w", err)
		}
		if err := sbClient.HealthCheck(); err != nil {
			return nil, fmt.Errorf("Supabaseヘルスチェック失敗: %w", err)
		}
		fmt.Println("✅ Places backend: Supabase REST")
		return repoImpl.NewSupabasePlacesRepository(sbClient), nil

	default:
		return nil, fmt.Errorf("不明なPLACES_BACKEND: %s", backend)
	}
}
