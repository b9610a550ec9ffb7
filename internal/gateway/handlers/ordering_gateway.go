package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"lunchbreak/internal/database/models"
	"lunchbreak/internal/gateway/middleware"
	ordering "lunchbreak/internal/services/ordering/handler"
)

type OrderHTTPHandler struct {
	orders *ordering.OrderHandler
}

func NewOrderHTTPHandler(orders *ordering.OrderHandler) *OrderHTTPHandler {
	return &OrderHTTPHandler{
		orders: orders,
	}
}

type LineItemRequest struct {
	OriginalFoodID        int64            `json:"original_food_id" binding:"required,min=1"`
	Amount                *decimal.Decimal `json:"amount,omitempty"`
	SelectedIngredientIDs []int64          `json:"selected_ingredient_ids"`
	Total                 decimal.Decimal  `json:"total"`
	Comment               string           `json:"comment,omitempty"`
}

type CreateOrderRequest struct {
	StoreID           int64             `json:"store_id" binding:"required,min=1"`
	Receipt           time.Time         `json:"receipt"`
	GroupID           *int64            `json:"group_id,omitempty"`
	PaymentMethod     int32             `json:"payment_method" binding:"min=0,max=2"`
	DeliveryAddressID *int64            `json:"delivery_address_id,omitempty"`
	Description       string            `json:"description,omitempty"`
	Items             []LineItemRequest `json:"items" binding:"required,dive"`
}

type SaveDraftRequest struct {
	Items []LineItemRequest `json:"items" binding:"dive"`
}

type PriceRequest struct {
	StoreID               int64   `json:"store_id" binding:"required,min=1"`
	OriginalFoodID        int64   `json:"original_food_id" binding:"required,min=1"`
	SelectedIngredientIDs []int64 `json:"selected_ingredient_ids"`
}

type UpdateStatusRequest struct {
	Status *int32 `json:"status" binding:"required,min=0,max=6"`
}

type UpdateLineStatusRequest struct {
	Status *int32 `json:"status" binding:"required,min=0,max=1"`
}

type ListOrdersQuery struct {
	StoreID   *int64     `form:"store_id,omitempty"`
	Status    *int32     `form:"status,omitempty"`
	From      *time.Time `form:"from,omitempty"`
	To        *time.Time `form:"to,omitempty"`
	PageSize  int        `form:"page_size,default=20"`
	PageToken string     `form:"page_token"`
}

type OrderedFoodView struct {
	ID            int64           `json:"id"`
	OriginalID    *int64          `json:"original_food_id,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Cost          int64           `json:"cost"`
	Total         int64           `json:"total"`
	IsOriginal    bool            `json:"is_original"`
	Comment       string          `json:"comment,omitempty"`
	Status        int32           `json:"status"`
	Changes       string          `json:"changes,omitempty"`
	IngredientIDs []int64         `json:"ingredient_ids"`
}

type OrderView struct {
	ID                int64             `json:"id"`
	UserID            int64             `json:"user_id"`
	StoreID           int64             `json:"store_id"`
	Receipt           time.Time         `json:"receipt"`
	Status            string            `json:"status"`
	Total             int64             `json:"total"`
	PaymentMethod     int32             `json:"payment_method"`
	PaymentStatus     int32             `json:"payment_status"`
	GroupOrderID      *int64            `json:"group_order_id,omitempty"`
	DeliveryAddressID *int64            `json:"delivery_address_id,omitempty"`
	Description       string            `json:"description,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	Items             []OrderedFoodView `json:"items,omitempty"`
}

func lineItems(reqs []LineItemRequest) []ordering.LineItem {
	items := make([]ordering.LineItem, 0, len(reqs))
	for _, r := range reqs {
		amount := decimal.NewFromInt(1)
		if r.Amount != nil {
			amount = *r.Amount
		}
		items = append(items, ordering.LineItem{
			OriginalID:    r.OriginalFoodID,
			Amount:        amount,
			IngredientIDs: r.SelectedIngredientIDs,
			Total:         r.Total,
			Comment:       r.Comment,
		})
	}
	return items
}

func lineViews(lines []models.OrderedFood, changes map[int64]string) []OrderedFoodView {
	views := make([]OrderedFoodView, 0, len(lines))
	for _, l := range lines {
		ids := make([]int64, 0, len(l.Ingredients))
		for _, i := range l.Ingredients {
			ids = append(ids, i.ID)
		}
		views = append(views, OrderedFoodView{
			ID:            l.ID,
			OriginalID:    l.OriginalID,
			Amount:        l.Amount,
			Cost:          l.Cost,
			Total:         l.Total,
			IsOriginal:    l.IsOriginal,
			Comment:       l.Comment,
			Status:        int32(l.Status),
			Changes:       changes[l.ID],
			IngredientIDs: ids,
		})
	}
	return views
}

func orderView(o *models.Order, changes map[int64]string) OrderView {
	return OrderView{
		ID:                o.ID,
		UserID:            o.UserID,
		StoreID:           o.StoreID,
		Receipt:           o.Receipt,
		Status:            o.Status.String(),
		Total:             o.Total,
		PaymentMethod:     int32(o.PaymentMethod),
		PaymentStatus:     int32(o.PaymentStatus),
		GroupOrderID:      o.GroupOrderID,
		DeliveryAddressID: o.DeliveryAddressID,
		Description:       o.Description,
		CreatedAt:         o.CreatedAt,
		Items:             lineViews(o.OrderedFoods, changes),
	}
}

// --- Orders ---

func (h *OrderHTTPHandler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Receipt.IsZero() {
		c.JSON(http.StatusBadRequest, errorResponse("receipt is required"))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	detail, err := h.orders.CreateOrder(ctx, ordering.PlaceOrder{
		UserID:            middleware.Actor(c).UserID,
		StoreID:           req.StoreID,
		Receipt:           req.Receipt,
		GroupID:           req.GroupID,
		PaymentMethod:     models.PaymentMethod(req.PaymentMethod),
		DeliveryAddressID: req.DeliveryAddressID,
		Description:       req.Description,
		Items:             lineItems(req.Items),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse("Order placed successfully", orderView(&detail.Order, detail.Changes)))
}

func (h *OrderHTTPHandler) PreviewPrices(c *gin.Context) {
	var req []PriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	prices := make([]int64, 0, len(req))
	for _, r := range req {
		price, err := h.orders.PreviewPrices(ctx, r.StoreID, []ordering.PriceQuery{{
			OriginalID:    r.OriginalFoodID,
			IngredientIDs: r.SelectedIngredientIDs,
		}})
		if err != nil {
			writeError(c, err)
			return
		}
		prices = append(prices, price[0])
	}

	c.JSON(http.StatusOK, successResponse("Prices calculated", prices))
}

func (h *OrderHTTPHandler) GetOrder(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	detail, err := h.orders.GetOrder(ctx, middleware.Actor(c), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Order retrieved successfully", orderView(&detail.Order, detail.Changes)))
}

func (h *OrderHTTPHandler) ListOrders(c *gin.Context) {
	var query ListOrdersQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		badRequest(c, err)
		return
	}

	filter := ordering.ListFilter{
		StoreID:   query.StoreID,
		From:      query.From,
		To:        query.To,
		PageSize:  query.PageSize,
		PageToken: query.PageToken,
	}
	if query.Status != nil {
		status := models.OrderStatus(*query.Status)
		filter.Status = &status
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	orders, next, total, err := h.orders.ListOrders(ctx, middleware.Actor(c), filter)
	if err != nil {
		writeError(c, err)
		return
	}

	views := make([]OrderView, 0, len(orders))
	for i := range orders {
		views = append(views, orderView(&orders[i], nil))
	}
	c.JSON(http.StatusOK, successWithMetaResponse("Orders retrieved successfully", views, PageMeta{Total: total, NextPageToken: next}))
}

func (h *OrderHTTPHandler) UpdateStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	order, err := h.orders.UpdateStatus(ctx, middleware.Actor(c), id, models.OrderStatus(*req.Status))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Order status updated", orderView(order, nil)))
}

func (h *OrderHTTPHandler) UpdateLineStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	lineID, ok := paramID(c, "ofid")
	if !ok {
		return
	}
	var req UpdateLineStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	order, err := h.orders.SetLineStatus(ctx, middleware.Actor(c), id, lineID, models.LineStatus(*req.Status))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Line item updated", orderView(order, nil)))
}

// --- Group orders ---

func (h *OrderHTTPHandler) UpdateGroupOrderStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	groupOrder, err := h.orders.UpdateGroupOrderStatus(ctx, middleware.Actor(c), id, models.OrderStatus(*req.Status))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Group order status updated", gin.H{
		"id":      groupOrder.ID,
		"group":   groupOrder.GroupID,
		"date":    groupOrder.Date,
		"receipt": groupOrder.Receipt,
		"status":  groupOrder.Status.String(),
	}))
}

// --- Drafts ---

func (h *OrderHTTPHandler) SaveTemporaryOrder(c *gin.Context) {
	storeID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req SaveDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	draft, err := h.orders.SaveTemporaryOrder(ctx, middleware.Actor(c).UserID, storeID, lineItems(req.Items))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Draft saved", gin.H{
		"id":         draft.ID,
		"store_id":   draft.StoreID,
		"updated_at": draft.UpdatedAt,
		"items":      lineViews(draft.OrderedFoods, nil),
	}))
}
