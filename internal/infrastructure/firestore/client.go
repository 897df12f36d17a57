package firestore

import (
	"context"
	"fmt"
	"log"
	"os"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
)

// FirestoreClient プラン共有用Firestoreクライアントのラッパー
type FirestoreClient struct {
	client *firestore.Client
}

// NewFirestoreClient 新しいFirestoreクライアントを作成
// Cloud Run上ではデフォルト認証、ローカルでは認証情報ファイルを使用する
func NewFirestoreClient(ctx context.Context, projectID string) (*FirestoreClient, error) {
	var opts []option.ClientOption

	isCloudRun := os.Getenv("K_SERVICE") != ""
	if !isCloudRun {
		credentialsFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
		if credentialsFile == "" {
			credentialsFile = "meetpoint-firestore-key.json"
		}

		if _, err := os.Stat(credentialsFile); err == nil {
			log.Printf("📄 認証情報ファイルを使用: %s", credentialsFile)
			opts = append(opts, option.WithCredentialsFile(credentialsFile))
		} else {
			log.Printf("⚠️ 認証情報ファイルが見つからないためデフォルト認証を試行: %s", credentialsFile)
		}
	}

	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("Firestoreクライアントの初期化に失敗: %w", err)
	}

	log.Printf("✅ Firestoreクライアント初期化完了 (project: %s)", projectID)
	return &FirestoreClient{client: client}, nil
}

// Close Firestoreクライアントを閉じる
func (fc *FirestoreClient) Close() error {
	return fc.client.Close()
}

// GetClient 内部のFirestoreクライアントを取得
func (fc *FirestoreClient) GetClient() *firestore.Client {
	return fc.client
}
