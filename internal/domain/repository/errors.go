package repository

import "errors"

// ErrProviderThrottled 外部プロバイダからスロットリング（リクエスト過多）を通知された場合のエラー
// リトライ可能なエラーとしてスケジューラの再投入・バックオフ処理の対象になる
var ErrProviderThrottled = errors.New("provider throttled: too many requests")

// ErrPlanNotFound 指定されたプランが存在しない（有効期限切れを含む）場合のエラー
var ErrPlanNotFound = errors.New("meetup plan not found")
