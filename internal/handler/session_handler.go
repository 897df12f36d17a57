package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"MeetPoint-App/internal/domain/model"
	"MeetPoint-App/internal/usecase"
)

// SessionHandler は検索セッションAPIのハンドラー
type SessionHandler struct {
	meetPointUseCase usecase.MeetPointUseCase
}

// NewSessionHandler は新しいSessionHandlerインスタンスを作成
func NewSessionHandler(meetPointUseCase usecase.MeetPointUseCase) *SessionHandler {
	return &SessionHandler{
		meetPointUseCase: meetPointUseCase,
	}
}

// LocationRequest 地点の追加・更新リクエスト
type LocationRequest struct {
	DisplayName       string  `json:"display_name"`
	Latitude          float64 `json:"latitude"`
	Longitude         float64 `json:"longitude"`
	IsCurrentLocation bool    `json:"is_current_location"`
}

// RadiusRequest 検索半径の更新リクエスト
type RadiusRequest struct {
	RadiusKm float64 `json:"radius_km"`
}

// FilterRequest フィルタの更新リクエスト
type FilterRequest struct {
	Text     *string `json:"text,omitempty"`
	Category *string `json:"category,omitempty"`
}

// PostSession は新しいセッションを作成するエンドポイント
// POST /sessions
func (h *SessionHandler) PostSession(c *gin.Context) {
	sessionID := h.meetPointUseCase.CreateSession()
	c.JSON(http.StatusCreated, gin.H{
		"session_id": sessionID,
	})
}

// PostLocation は地点を追加するエンドポイント
// POST /sessions/:id/locations
func (h *SessionHandler) PostLocation(c *gin.Context) {
	var req LocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "リクエストの形式が正しくありません",
			"details": err.Error(),
		})
		return
	}

	if err := h.validateLocation(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "バリデーションエラー",
			"details": err.Error(),
		})
		return
	}

	err := h.meetPointUseCase.AddLocation(c.Param("id"), model.UserLocation{
		DisplayName:       req.DisplayName,
		Coordinate:        model.LatLng{Lat: req.Latitude, Lng: req.Longitude},
		IsCurrentLocation: req.IsCurrentLocation,
	})
	if err != nil {
		h.respondSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// PutLocation は指定インデックスの地点を置き換えるエンドポイント
// PUT /sessions/:id/locations/:index
func (h *SessionHandler) PutLocation(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "indexは整数で指定してください",
		})
		return
	}

	var req LocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "リクエストの形式が正しくありません",
			"details": err.Error(),
		})
		return
	}

	if err := h.validateLocation(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "バリデーションエラー",
			"details": err.Error(),
		})
		return
	}

	err = h.meetPointUseCase.SetLocation(c.Param("id"), index, model.UserLocation{
		DisplayName:       req.DisplayName,
		Coordinate:        model.LatLng{Lat: req.Latitude, Lng: req.Longitude},
		IsCurrentLocation: req.IsCurrentLocation,
	})
	if err != nil {
		h.respondSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// DeleteLocation は指定インデックスの地点を削除するエンドポイント
// DELETE /sessions/:id/locations/:index
func (h *SessionHandler) DeleteLocation(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "indexは整数で指定してください",
		})
		return
	}

	if err := h.meetPointUseCase.RemoveLocation(c.Param("id"), index); err != nil {
		h.respondSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// PutRadius は検索半径を更新するエンドポイント
// PUT /sessions/:id/radius
func (h *SessionHandler) PutRadius(c *gin.Context) {
	var req RadiusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "リクエストの形式が正しくありません",
			"details": err.Error(),
		})
		return
	}

	if req.RadiusKm <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "radius_kmは正の数で指定してください",
		})
		return
	}

	if err := h.meetPointUseCase.UpdateSearchRadius(c.Param("id"), req.RadiusKm); err != nil {
		h.respondSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// PutFilter はテキスト・カテゴリフィルタを更新するエンドポイント
// PUT /sessions/:id/filter
func (h *SessionHandler) PutFilter(c *gin.Context) {
	var req FilterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "リクエストの形式が正しくありません",
			"details": err.Error(),
		})
		return
	}

	var category *model.Category
	if req.Category != nil && *req.Category != "" {
		cat := model.Category(*req.Category)
		if _, ok := model.CategoryNameMap[cat]; !ok {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "不明なカテゴリです: " + *req.Category,
			})
			return
		}
		category = &cat
	}

	if err := h.meetPointUseCase.SetFilter(c.Param("id"), req.Text, category); err != nil {
		h.respondSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetResults は現在の検索結果スナップショットを取得するエンドポイント
// GET /sessions/:id/results
func (h *SessionHandler) GetResults(c *gin.Context) {
	results, err := h.meetPointUseCase.GetResults(c.Param("id"))
	if err != nil {
		h.respondSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, results)
}

// GetState はセッション状態を取得するエンドポイント
// GET /sessions/:id
func (h *SessionHandler) GetState(c *gin.Context) {
	state, err := h.meetPointUseCase.GetState(c.Param("id"))
	if err != nil {
		h.respondSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, state)
}

// DeleteSession はセッションを破棄するエンドポイント
// DELETE /sessions/:id
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	if err := h.meetPointUseCase.CloseSession(c.Param("id")); err != nil {
		h.respondSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// validateLocation は地点リクエストの詳細バリデーションを行う
func (h *SessionHandler) validateLocation(req *LocationRequest) error {
	if req.Latitude < -90 || req.Latitude > 90 {
		return &ValidationError{Field: "latitude", Message: "緯度は-90から90の範囲で指定してください"}
	}
	if req.Longitude < -180 || req.Longitude > 180 {
		return &ValidationError{Field: "longitude", Message: "経度は-180から180の範囲で指定してください"}
	}
	if req.DisplayName == "" {
		return &ValidationError{Field: "display_name", Message: "表示名は必須です"}
	}
	return nil
}

// respondSessionError はセッション系エラーを404/400に振り分ける
func (h *SessionHandler) respondSessionError(c *gin.Context, err error) {
	if strings.Contains(err.Error(), "見つかりません") {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "セッションが見つかりません",
			"details": err.Error(),
		})
		return
	}
	if strings.Contains(err.Error(), "範囲外") {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "指定されたインデックスが不正です",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "リクエストの処理に失敗しました",
		"details": err.Error(),
	})
}

// ValidationError はバリデーションエラーを表す
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
