package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"MeetPoint-App/internal/domain/repository"
	"MeetPoint-App/internal/usecase"
)

// PlanHandler は待ち合わせプラン共有APIのハンドラー
type PlanHandler struct {
	planUseCase usecase.PlanUseCase
}

// NewPlanHandler は新しいPlanHandlerインスタンスを作成
func NewPlanHandler(planUseCase usecase.PlanUseCase) *PlanHandler {
	return &PlanHandler{
		planUseCase: planUseCase,
	}
}

// CreatePlanRequest プラン作成リクエスト
type CreatePlanRequest struct {
	SessionID string `json:"session_id"`
}

// PostPlan は現在の検索結果を共有用プランとして保存するエンドポイント
// POST /plans
func (h *PlanHandler) PostPlan(c *gin.Context) {
	var req CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "リクエストの形式が正しくありません",
			"details": err.Error(),
		})
		return
	}

	if req.SessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "session_idは必須です",
		})
		return
	}

	plan, err := h.planUseCase.CreatePlan(c.Request.Context(), req.SessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "プランの作成に失敗しました",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, plan)
}

// GetPlan は共有プランを取得するエンドポイント
// GET /plans/:id
func (h *PlanHandler) GetPlan(c *gin.Context) {
	planID := c.Param("id")
	if planID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "plan_idが指定されていません",
		})
		return
	}

	plan, err := h.planUseCase.GetPlan(c.Request.Context(), planID)
	if err != nil {
		if errors.Is(err, repository.ErrPlanNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "プランが見つかりません（有効期限切れまたは無効なID）",
				"details": err.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "プランの取得に失敗しました",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, plan)
}
