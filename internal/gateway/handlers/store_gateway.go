package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"lunchbreak/internal/auth"
	"lunchbreak/internal/gateway/middleware"
	stores "lunchbreak/internal/services/stores/handler"
)

type StoreHTTPHandler struct {
	stores *stores.StoreHandler
}

func NewStoreHTTPHandler(storeHandler *stores.StoreHandler) *StoreHTTPHandler {
	return &StoreHTTPHandler{
		stores: storeHandler,
	}
}

type WindowQuery struct {
	From time.Time `form:"from" binding:"required"`
	To   time.Time `form:"to" binding:"required"`
}

type OpenQuery struct {
	At time.Time `form:"at" binding:"required"`
}

type CreateOpeningPeriodRequest struct {
	Weekday  int    `json:"weekday" binding:"required,min=1,max=7"`
	Time     string `json:"time" binding:"required"`
	Duration string `json:"duration" binding:"required"`
}

type CreateHolidayPeriodRequest struct {
	Description string    `json:"description"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Closed      bool      `json:"closed"`
}

// --- Schedule projections ---

func (h *StoreHTTPHandler) GetOpeningHours(c *gin.Context) {
	storeID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var query WindowQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		badRequest(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	intervals, err := h.stores.OpeningHours(ctx, storeID, query.From, query.To)
	if err != nil {
		writeError(c, err)
		return
	}

	views := make([]gin.H, 0, len(intervals))
	for _, iv := range intervals {
		views = append(views, gin.H{"start": iv.Start, "end": iv.End})
	}
	c.JSON(http.StatusOK, successResponse("Opening hours retrieved successfully", views))
}

func (h *StoreHTTPHandler) GetHolidayPeriods(c *gin.Context) {
	storeID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var query WindowQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		badRequest(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	holidays, err := h.stores.HolidayPeriods(ctx, storeID, query.From, query.To)
	if err != nil {
		writeError(c, err)
		return
	}

	views := make([]gin.H, 0, len(holidays))
	for _, p := range holidays {
		views = append(views, gin.H{
			"id":          p.ID,
			"description": p.Description,
			"start":       p.Start,
			"end":         p.End,
			"closed":      p.Closed,
		})
	}
	c.JSON(http.StatusOK, successResponse("Holiday periods retrieved successfully", views))
}

func (h *StoreHTTPHandler) CheckOpen(c *gin.Context) {
	storeID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var query OpenQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		badRequest(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := h.stores.CheckOpen(ctx, storeID, query.At); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Store accepts orders at the requested time", gin.H{"open": true}))
}

// --- Schedule management ---

func (h *StoreHTTPHandler) CreateOpeningPeriod(c *gin.Context) {
	storeID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req CreateOpeningPeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	duration, err := time.ParseDuration(req.Duration)
	if err != nil {
		badRequest(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	period, err := h.stores.CreateOpeningPeriod(ctx, middleware.Actor(c), storeID, stores.OpeningPeriodInput{
		Weekday:  req.Weekday,
		Time:     req.Time,
		Duration: duration,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse("Opening period created successfully", gin.H{
		"id":       period.ID,
		"weekday":  period.Weekday,
		"time":     period.Time,
		"duration": period.Duration.String(),
	}))
}

func (h *StoreHTTPHandler) CreateHolidayPeriod(c *gin.Context) {
	storeID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req CreateHolidayPeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	period, err := h.stores.CreateHolidayPeriod(ctx, middleware.Actor(c), storeID, stores.HolidayPeriodInput{
		Description: req.Description,
		Start:       req.Start,
		End:         req.End,
		Closed:      req.Closed,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse("Holiday period created successfully", gin.H{"id": period.ID}))
}

func (h *StoreHTTPHandler) DeleteOpeningPeriod(c *gin.Context) {
	h.deletePeriod(c, h.stores.DeleteOpeningPeriod)
}

func (h *StoreHTTPHandler) DeleteHolidayPeriod(c *gin.Context) {
	h.deletePeriod(c, h.stores.DeleteHolidayPeriod)
}

func (h *StoreHTTPHandler) deletePeriod(c *gin.Context, remove func(context.Context, auth.Actor, int64, int64) error) {
	storeID, ok := paramID(c, "id")
	if !ok {
		return
	}
	periodID, ok := paramID(c, "pid")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := remove(ctx, middleware.Actor(c), storeID, periodID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Period deleted successfully", nil))
}

// --- Catalog ---

func (h *StoreHTTPHandler) DeleteFood(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	gone, err := h.stores.DeleteFood(ctx, middleware.Actor(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Food deleted successfully", gin.H{"id": id, "pending": !gone}))
}

func (h *StoreHTTPHandler) DeleteIngredient(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	gone, err := h.stores.DeleteIngredient(ctx, middleware.Actor(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Ingredient deleted successfully", gin.H{"id": id, "pending": !gone}))
}
