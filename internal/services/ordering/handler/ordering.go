package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lunchbreak/internal/auth"
	"lunchbreak/internal/database/models"
	"lunchbreak/internal/database/repository"
	"lunchbreak/internal/errs"
	"lunchbreak/internal/jobs"
	"lunchbreak/internal/logger"
	"lunchbreak/internal/services/availability"
	"lunchbreak/internal/services/pricing"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// LineItem is a requested line item. A nil IngredientIDs keeps the food's
// default selection; Total is the client's computed total in cents.
type LineItem struct {
	OriginalID    int64
	Amount        decimal.Decimal
	IngredientIDs []int64
	Total         decimal.Decimal
	Comment       string
}

type PlaceOrder struct {
	UserID            int64
	StoreID           int64
	Receipt           time.Time
	GroupID           *int64
	PaymentMethod     models.PaymentMethod
	DeliveryAddressID *int64
	Description       string
	Items             []LineItem
}

// OrderDetail is an order with a human readable summary of every
// customised line item, keyed by line item id.
type OrderDetail struct {
	Order   models.Order
	Changes map[int64]string
}

type OrderHandler struct {
	db       *gorm.DB
	relay    *jobs.Relay
	notifier *jobs.Notifier
	now      func() time.Time
}

func NewOrderHandler(db *gorm.DB, relay *jobs.Relay, notifier *jobs.Notifier) *OrderHandler {
	return &OrderHandler{
		db:       db,
		relay:    relay,
		notifier: notifier,
		now:      time.Now,
	}
}

// CreateOrder validates and persists an order with all its line items in a
// single transaction. Nothing is written when any item fails.
func (s *OrderHandler) CreateOrder(ctx context.Context, req PlaceOrder) (*OrderDetail, error) {
	if len(req.Items) == 0 {
		return nil, errs.EmptyOrder
	}

	now := s.now()
	var order models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		store, err := repository.LoadStore(tx, req.StoreID)
		if err != nil {
			return err
		}
		rules, err := repository.StoreRules(store)
		if err != nil {
			return err
		}
		loc := rules.Schedule.Location

		// Group orders are gated on the group receipt in joinGroupOrder.
		if req.GroupID == nil {
			if err := availability.IsOpen(rules, req.Receipt, now, false); err != nil {
				return err
			}
		}

		order = models.Order{
			UserID:        req.UserID,
			StoreID:       store.ID,
			Receipt:       req.Receipt,
			Status:        models.StatusPlaced,
			Discount:      decimal.Zero,
			PaymentMethod: req.PaymentMethod,
			PaymentStatus: models.PaymentStatusNone,
			Description:   req.Description,
		}

		var group *models.Group
		if req.GroupID != nil {
			g, groupOrder, err := joinGroupOrder(tx, store, rules, *req.GroupID, req.UserID, req.Receipt, now)
			if err != nil {
				return err
			}
			group = g
			order.GroupID = &g.ID
			order.GroupOrderID = &groupOrder.ID
			order.Receipt = groupOrder.Receipt
			order.Discount = g.Discount
		}

		if err := validatePayment(tx, store, group, req.UserID, req.PaymentMethod); err != nil {
			return err
		}
		if req.DeliveryAddressID != nil {
			if err := validateDeliveryAddress(tx, store, group, req.UserID, *req.DeliveryAddressID); err != nil {
				return err
			}
			order.DeliveryAddressID = req.DeliveryAddressID
		}

		if err := tx.Omit(clause.Associations).Create(&order).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		receipt := order.Receipt.In(loc)
		for i, item := range req.Items {
			line, ingredientIDs, err := buildLineItem(tx, store, item, &receipt, now.In(loc))
			if err != nil {
				return fmt.Errorf("line item %d: %w", i+1, err)
			}
			line.OrderID = &order.ID
			if err := saveLineItem(tx, &line, ingredientIDs); err != nil {
				return err
			}
		}

		if err := recalculateOrderTotal(tx, &order); err != nil {
			return err
		}
		return jobs.Stage(tx, jobs.NotifyStaff(&order, fmt.Sprintf("New order #%d for %s", order.ID, receipt.Format("Mon 02/01 15:04"))))
	})
	if err != nil {
		if !errs.IsUserFacing(err) {
			logrus.WithError(err).WithField("store_id", req.StoreID).Error("Failed to create order")
		}
		return nil, err
	}

	logger.WithOrder(order.ID, order.StoreID).WithField("total", order.Total).Info("Order created")
	s.afterCommit(ctx, &order, jobs.EventOrderCreated)
	return s.loadDetail(s.db.WithContext(ctx), order.ID)
}

// joinGroupOrder aligns the receipt of a group order and attaches it to the
// group order of that day, creating it once.
func joinGroupOrder(tx *gorm.DB, store *models.Store, rules availability.Rules, groupID, userID int64, requested, now time.Time) (*models.Group, *models.GroupOrder, error) {
	var group models.Group
	if err := tx.First(&group, groupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, errs.DoesNotExist.Withf("group %d does not exist", groupID)
		}
		return nil, nil, err
	}
	if group.StoreID != store.ID {
		return nil, nil, errs.CrossStoreLinking.Withf("group %d does not belong to store %d", group.ID, store.ID)
	}

	var members int64
	err := tx.Table("group_members").
		Where("group_id = ? AND user_id = ?", group.ID, userID).
		Count(&members).Error
	if err != nil {
		return nil, nil, err
	}
	if members == 0 {
		return nil, nil, errs.NotGroupMember
	}

	receipt, deadline, err := groupReceipt(&group, requested.In(rules.Schedule.Location))
	if err != nil {
		return nil, nil, err
	}
	if now.After(deadline) {
		return nil, nil, errs.LeadTimeNotMet.Withf("group orders for %s closed at %s", deadline.Format("2006-01-02"), deadline.Format("15:04"))
	}
	if err := availability.IsOpen(rules, receipt, now, true); err != nil {
		return nil, nil, err
	}

	groupOrder := models.GroupOrder{
		GroupID: group.ID,
		Date:    receipt.Format("2006-01-02"),
		Receipt: receipt,
		Status:  models.StatusPlaced,
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&groupOrder).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to create group order: %w", err)
	}
	if err := tx.Where("group_id = ? AND date = ?", groupOrder.GroupID, groupOrder.Date).First(&groupOrder).Error; err != nil {
		return nil, nil, err
	}
	if groupOrder.Status.Terminal() {
		return nil, nil, errs.InvalidTransition.Withf("group order %d is already %s", groupOrder.ID, groupOrder.Status)
	}
	return &group, &groupOrder, nil
}

func validatePayment(tx *gorm.DB, store *models.Store, group *models.Group, userID int64, method models.PaymentMethod) error {
	switch method {
	case models.PaymentCash:
		if group != nil && group.PaymentOnlineOnly && (store.GocardlessEnabled || store.PayconiqEnabled) {
			return errs.OnlinePaymentRequired
		}
		if !store.CashEnabled {
			return errs.CashDisabled
		}
	case models.PaymentGocardless:
		if !store.GocardlessEnabled {
			return errs.OnlinePaymentDisabled.Withf("gocardless is not enabled for store %d", store.ID)
		}
		var link models.PaymentLink
		err := tx.Where("user_id = ? AND store_id = ?", userID, store.ID).First(&link).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.NoPaymentLink
		}
		if err != nil {
			return err
		}
		if !link.Confirmed {
			return errs.PaymentLinkPending
		}
	case models.PaymentPayconiq:
		if !store.PayconiqEnabled {
			return errs.OnlinePaymentDisabled.Withf("payconiq is not enabled for store %d", store.ID)
		}
	default:
		return errs.OnlinePaymentDisabled.Withf("unknown payment method %d", method)
	}
	return nil
}

func validateDeliveryAddress(tx *gorm.DB, store *models.Store, group *models.Group, userID, addressID int64) error {
	if group != nil {
		return errs.NoDeliveryToAddress.Withf("group orders are collected at the store")
	}
	var address models.Address
	if err := tx.Where("id = ? AND user_id = ?", addressID, userID).First(&address).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.DoesNotExist.Withf("address %d does not exist", addressID)
		}
		return err
	}
	for _, r := range store.Regions {
		if r.Country == address.Country && r.Postcode == address.Postcode {
			return nil
		}
	}
	return errs.NoDeliveryToAddress.Withf("store %d does not deliver to %s", store.ID, address.Postcode)
}

// buildLineItem validates a requested item against the catalog. The food
// row stays share-locked until the transaction ends so it cannot be
// released underneath the new order. A nil receipt skips the preorder check.
func buildLineItem(tx *gorm.DB, store *models.Store, item LineItem, receipt *time.Time, now time.Time) (models.OrderedFood, []int64, error) {
	food, err := repository.LoadFood(tx, item.OriginalID, "SHARE")
	if err != nil {
		return models.OrderedFood{}, nil, err
	}
	if food.Deleted || !food.Enabled {
		return models.OrderedFood{}, nil, errs.DoesNotExist.Withf("food %d is not available", food.ID)
	}
	if food.Menu.StoreID != store.ID {
		return models.OrderedFood{}, nil, errs.CrossStoreLinking.Withf("food %d does not belong to store %d", food.ID, store.ID)
	}

	if receipt != nil {
		preorder, err := repository.Preorder(food)
		if err != nil {
			return models.OrderedFood{}, nil, err
		}
		if !availability.IsOrderable(preorder, *receipt, now) {
			return models.OrderedFood{}, nil, errs.PreorderDaysNotMet.Withf("food %d must be ordered %d day(s) ahead", food.ID, *preorder.Days)
		}
	}

	quantity, err := repository.Quantity(tx, food.FoodTypeID, store.ID)
	if err != nil {
		return models.OrderedFood{}, nil, err
	}
	priced := repository.PricedFood(food)
	if err := pricing.ValidateAmount(priced.InputType, item.Amount, quantity); err != nil {
		return models.OrderedFood{}, nil, err
	}

	var selected []pricing.Ingredient
	if item.IngredientIDs != nil {
		ingredients, err := repository.LoadIngredients(tx, item.IngredientIDs)
		if err != nil {
			return models.OrderedFood{}, nil, err
		}
		for _, i := range ingredients {
			if i.StoreID != store.ID {
				return models.OrderedFood{}, nil, errs.IngredientLinking.Withf("ingredient %d does not belong to store %d", i.ID, store.ID)
			}
		}
		selected = repository.PricedIngredients(ingredients)
		if err := pricing.CheckIngredients(selected, priced); err != nil {
			return models.OrderedFood{}, nil, err
		}
	}

	isOriginal := pricing.IsOriginal(selected, priced)
	cost := food.Cost
	if !isOriginal {
		cost = pricing.CalculateCost(selected, priced)
	}
	if err := pricing.CheckTotal(cost, priced, item.Amount, item.Total); err != nil {
		return models.OrderedFood{}, nil, err
	}

	multiplier := pricing.UnitMultiplier(priced)
	line := models.OrderedFood{
		OriginalID:     &food.ID,
		Cost:           cost,
		Amount:         item.Amount,
		Total:          pricing.LineTotal(cost, item.Amount, multiplier),
		UnitMultiplier: multiplier,
		IsOriginal:     isOriginal,
		Status:         models.LineOK,
	}
	if food.Commentable {
		line.Comment = item.Comment
	}

	var ingredientIDs []int64
	if !isOriginal {
		seen := make(map[int64]bool, len(selected))
		for _, i := range selected {
			if !seen[i.ID] {
				seen[i.ID] = true
				ingredientIDs = append(ingredientIDs, i.ID)
			}
		}
	}
	return line, ingredientIDs, nil
}

func saveLineItem(tx *gorm.DB, line *models.OrderedFood, ingredientIDs []int64) error {
	if err := tx.Omit(clause.Associations).Create(line).Error; err != nil {
		return fmt.Errorf("failed to create ordered food: %w", err)
	}
	if len(ingredientIDs) == 0 {
		return nil
	}
	rows := make([]map[string]interface{}, 0, len(ingredientIDs))
	for _, id := range ingredientIDs {
		rows = append(rows, map[string]interface{}{
			"ordered_food_id": line.ID,
			"ingredient_id":   id,
		})
	}
	if err := tx.Table("ordered_food_ingredients").Create(rows).Error; err != nil {
		return fmt.Errorf("failed to link ingredients: %w", err)
	}
	return nil
}

// recalculateOrderTotal sums the stored line totals and applies the order
// discount.
func recalculateOrderTotal(tx *gorm.DB, order *models.Order) error {
	var totals []int64
	err := tx.Model(&models.OrderedFood{}).
		Where("order_id = ? AND status = ?", order.ID, models.LineOK).
		Pluck("total", &totals).Error
	if err != nil {
		return err
	}
	order.Total = pricing.OrderTotal(totals, order.Discount)
	return tx.Model(order).UpdateColumn("total", order.Total).Error
}

// PriceQuery asks for the unit price of a food with a selection.
type PriceQuery struct {
	OriginalID    int64
	IngredientIDs []int64
}

// PreviewPrices computes unit prices in cents without placing an order.
func (s *OrderHandler) PreviewPrices(ctx context.Context, storeID int64, queries []PriceQuery) ([]int64, error) {
	db := s.db.WithContext(ctx)
	prices := make([]int64, 0, len(queries))
	for _, q := range queries {
		food, err := repository.LoadFood(db, q.OriginalID, "")
		if err != nil {
			return nil, err
		}
		if food.Deleted || food.Menu.StoreID != storeID {
			return nil, errs.DoesNotExist.Withf("food %d is not available at store %d", food.ID, storeID)
		}
		priced := repository.PricedFood(food)
		if q.IngredientIDs == nil {
			prices = append(prices, food.Cost)
			continue
		}

		ingredients, err := repository.LoadIngredients(db, q.IngredientIDs)
		if err != nil {
			return nil, err
		}
		selected := repository.PricedIngredients(ingredients)
		if err := pricing.CheckLinking(selected, priced); err != nil {
			return nil, err
		}
		prices = append(prices, pricing.CalculateCost(selected, priced))
	}
	return prices, nil
}

// GetOrder returns an order visible to its owner and the staff of its store.
func (s *OrderHandler) GetOrder(ctx context.Context, actor auth.Actor, orderID int64) (*OrderDetail, error) {
	detail, err := s.loadDetail(s.db.WithContext(ctx), orderID)
	if err != nil {
		return nil, err
	}
	if detail.Order.UserID != actor.UserID && !actor.StaffOf(detail.Order.StoreID) {
		return nil, errs.DoesNotExist.Withf("order %d does not exist", orderID)
	}
	return detail, nil
}

type ListFilter struct {
	StoreID   *int64
	Status    *models.OrderStatus
	From      *time.Time
	To        *time.Time
	PageSize  int
	PageToken string
}

// ListOrders pages through the actor's own orders, or through a store's
// orders when the actor is staff of the filtered store.
func (s *OrderHandler) ListOrders(ctx context.Context, actor auth.Actor, filter ListFilter) ([]models.Order, string, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Order{})
	if filter.StoreID != nil && actor.StaffOf(*filter.StoreID) {
		query = query.Where("store_id = ?", *filter.StoreID)
	} else {
		query = query.Where("user_id = ?", actor.UserID)
		if filter.StoreID != nil {
			query = query.Where("store_id = ?", *filter.StoreID)
		}
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.From != nil {
		query = query.Where("receipt >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		query = query.Where("receipt < ?", filter.To.UTC())
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, "", 0, err
	}

	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	pageNumber := 1
	if n, err := strconv.Atoi(filter.PageToken); err == nil && n > 0 {
		pageNumber = n
	}

	var orders []models.Order
	err := query.Preload("OrderedFoods").
		Order("receipt DESC, id DESC").
		Offset((pageNumber - 1) * pageSize).
		Limit(pageSize).
		Find(&orders).Error
	if err != nil {
		return nil, "", 0, err
	}

	next := ""
	if int64(pageNumber*pageSize) < total {
		next = strconv.Itoa(pageNumber + 1)
	}
	return orders, next, total, nil
}

func (s *OrderHandler) loadDetail(db *gorm.DB, orderID int64) (*OrderDetail, error) {
	var order models.Order
	err := db.Preload("OrderedFoods", func(q *gorm.DB) *gorm.DB { return q.Order("id") }).
		Preload("OrderedFoods.Ingredients").
		First(&order, orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.DoesNotExist.Withf("order %d does not exist", orderID)
	}
	if err != nil {
		return nil, err
	}

	changes, err := describeLines(db, order.OrderedFoods)
	if err != nil {
		return nil, err
	}
	return &OrderDetail{Order: order, Changes: changes}, nil
}

// describeLines summarises customised line items whose food still exists.
func describeLines(db *gorm.DB, lines []models.OrderedFood) (map[int64]string, error) {
	changes := make(map[int64]string)
	for _, line := range lines {
		if line.IsOriginal || line.OriginalID == nil {
			continue
		}
		food, err := repository.LoadFood(db, *line.OriginalID, "")
		if errors.Is(err, errs.DoesNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		ids := make([]int64, 0, len(line.Ingredients))
		for _, i := range line.Ingredients {
			ids = append(ids, i.ID)
		}
		var ingredients []models.Ingredient
		if err := db.Preload("Group").Where("id IN ?", ids).Find(&ingredients).Error; err != nil {
			return nil, err
		}
		changes[line.ID] = pricing.Changes(repository.PricedIngredients(ingredients), repository.PricedFood(food))
	}
	return changes, nil
}

// afterCommit hands staged jobs to the queue and announces the change. Both
// are best effort; the relay loop picks up anything left behind.
func (s *OrderHandler) afterCommit(ctx context.Context, order *models.Order, eventType string) {
	log := logger.WithOrder(order.ID, order.StoreID)
	if s.relay != nil {
		if _, err := s.relay.Flush(ctx); err != nil {
			log.WithError(err).Warn("Failed to flush outbox")
		}
	}
	if s.notifier != nil {
		event := jobs.OrderEvent{
			EventType: eventType,
			OrderID:   order.ID,
			StoreID:   order.StoreID,
			UserID:    order.UserID,
			Status:    int32(order.Status),
			Total:     order.Total,
			Timestamp: s.now(),
		}
		if err := s.notifier.PublishOrderEvent(ctx, event); err != nil {
			log.WithError(err).Warn("Failed to publish order event")
		}
	}
}
