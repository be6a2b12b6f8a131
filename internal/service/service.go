package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iurnickita/tiffintrails/internal/cache"
	"github.com/iurnickita/tiffintrails/internal/events"
	"github.com/iurnickita/tiffintrails/internal/fixtures"
	"github.com/iurnickita/tiffintrails/internal/model"
	"github.com/iurnickita/tiffintrails/internal/service/analyticsclient"
	"github.com/iurnickita/tiffintrails/internal/service/config"
	"github.com/iurnickita/tiffintrails/internal/slug"
	"github.com/iurnickita/tiffintrails/internal/store"
)

type Service interface {
	SubmitOrder(ctx context.Context, cart model.Cart) (model.Order, map[string]int, error)
	GetOrders(ctx context.Context) ([]model.Order, error)
	GetPoints(ctx context.Context) (map[string]int, error)
	GetLeaderboard(ctx context.Context) ([]model.LeaderboardRow, error)
	GetMenu(ctx context.Context, restaurant string) (MenuView, error)
	GetOverview(ctx context.Context, restaurant string) (OverviewView, error)
	GetRestaurants() []model.RestaurantMeta
	GetRestaurantsWithMeals(ctx context.Context) ([]RestaurantWithMeals, error)
	GetCommunityStats(ctx context.Context) (CommunityStats, error)
	GetUserImpact(ctx context.Context, email string) (UserImpact, error)
	GetHomeImpact(ctx context.Context) (HomeImpact, error)
	GetReviews(ctx context.Context, restaurantID string) ([]model.Review, error)
	AddReview(ctx context.Context, review model.Review) (model.Review, error)
	GetEfficiencyCorrelation(ctx context.Context) (json.RawMessage, error)
}

var (
	ErrInsufficientData     = errors.New("insufficient data")
	ErrEmptyCart            = errors.New("cart is empty")
	ErrBadItem              = errors.New("invalid cart item")
	ErrSoldOut              = errors.New("not enough meals left")
	ErrAnalyticsUnavailable = errors.New("analytics service is not configured")
)

// Баллы и эвристики воздействия (как в исходной системе)
const (
	PointsPerRescueMeal = 10
	WastePerMealLbs     = 2.5
	CarbonPerMealKg     = 2.0
)

type service struct {
	cfg       config.Config
	store     store.Store
	fx        fixtures.Set
	cache     cache.Cache
	events    events.Publisher
	analytics analyticsclient.AnalyticsClient
	zaplog    *zap.Logger
}

func NewService(cfg config.Config, store store.Store, fx fixtures.Set,
	cache cache.Cache, events events.Publisher, zaplog *zap.Logger) Service {

	analytics := analyticsclient.NewAnalyticsClient(cfg.AnalyticsAddr)

	return &service{
		cfg:       cfg,
		store:     store,
		fx:        fx,
		cache:     cache,
		events:    events,
		analytics: analytics,
		zaplog:    zaplog,
	}
}

// SubmitOrder проверяет корзину, считает баллы по rescue-позициям,
// и отдает заказ+баллы+инвентарь в хранилище одной транзакцией.
func (service *service) SubmitOrder(ctx context.Context, cart model.Cart) (model.Order, map[string]int, error) {
	if len(cart.Items) == 0 {
		return model.Order{}, nil, ErrEmptyCart
	}

	points := make(map[string]int)
	sold := make(map[string]int)
	items := make([]model.OrderItem, 0, len(cart.Items))

	for _, cartItem := range cart.Items {
		if cartItem.Quantity < 1 {
			return model.Order{}, nil, ErrBadItem
		}
		if cartItem.Price < 0 {
			return model.Order{}, nil, ErrBadItem
		}

		// отсутствие флага означает rescue-блюдо
		rescue := cartItem.IsRescueMeal == nil || *cartItem.IsRescueMeal

		restaurant := strings.TrimSpace(cartItem.Restaurant)
		mealID := slug.MealID(restaurant, cartItem.Meal)

		items = append(items, model.OrderItem{
			Restaurant:   restaurant,
			Meal:         cartItem.Meal,
			MealID:       mealID,
			Price:        cartItem.Price,
			Quantity:     cartItem.Quantity,
			IsRescueMeal: rescue,
		})

		if !rescue {
			continue
		}
		if restaurant != "" {
			points[restaurant] += cartItem.Quantity * PointsPerRescueMeal
		}
		sold[mealID] += cartItem.Quantity
	}

	order := model.Order{
		ID:        uuid.NewString(),
		UserEmail: cart.UserEmail,
		Items:     items,
		Totals:    cart.Totals,
		Timestamp: time.Now().UTC(),
	}

	created, err := service.store.CreateOrder(ctx, order, cart.RequestID,
		points, sold, service.baseQuantities())
	if err != nil {
		switch err {
		case store.ErrDuplicateRequest:
			// повтор клиента: заказ уже принят, баллы не начисляются второй раз
			return created, points, nil
		case store.ErrSoldOut:
			return model.Order{}, nil, ErrSoldOut
		default:
			return model.Order{}, nil, err
		}
	}

	if err := service.events.OrderCreated(ctx, created); err != nil {
		service.zaplog.Warn("order event not published",
			zap.String("order", created.ID), zap.Error(err))
	}

	return created, points, nil
}

// baseQuantities — выставленное количество по каждому блюду из фикстур
func (service *service) baseQuantities() map[string]int {
	limits := make(map[string]int, len(service.fx.RescueMeals))
	for _, meal := range service.fx.RescueMeals {
		limits[slug.MealID(meal.Restaurant, meal.MealName)] = meal.Quantity
	}
	return limits
}

func (service *service) GetOrders(ctx context.Context) ([]model.Order, error) {
	return service.store.GetOrders(ctx)
}

func (service *service) GetPoints(ctx context.Context) (map[string]int, error) {
	return service.store.GetPoints(ctx)
}

// Меню ресторана

type MenuView struct {
	Restaurant RestaurantInfo `json:"restaurant"`
	Meals      []MenuMeal     `json:"meals"`
}

type RestaurantInfo struct {
	Name        string `json:"name"`
	Cuisine     string `json:"cuisine,omitempty"`
	Capacity    int    `json:"capacity,omitempty"`
	SeatingType string `json:"seatingType,omitempty"`
	ZipCode     string `json:"zipCode,omitempty"`
}

type MenuMeal struct {
	ID                string  `json:"id"`
	Restaurant        string  `json:"restaurant"`
	MealName          string  `json:"mealName"`
	OriginalPrice     float64 `json:"originalPrice"`
	RescuePrice       float64 `json:"rescuePrice"`
	BaseQuantity      int     `json:"baseQuantity"`
	Sold              int     `json:"sold"`
	AvailableQuantity int     `json:"availableQuantity"`
	Status            string  `json:"status"`
	ExpiresIn         string  `json:"expiresIn,omitempty"`
}

const (
	MealStatusAvailable = "AVAILABLE"
	MealStatusSoldOut   = "SOLD_OUT"
)

// GetMenu соединяет статический список rescue-блюд со счетчиком продаж
// по ключу slug(ресторан-блюдо)
func (service *service) GetMenu(ctx context.Context, restaurant string) (MenuView, error) {
	restaurant = strings.TrimSpace(restaurant)
	if restaurant == "" {
		return MenuView{}, ErrInsufficientData
	}

	inventory, err := service.store.GetInventory(ctx)
	if err != nil {
		return MenuView{}, err
	}

	view := MenuView{
		Restaurant: RestaurantInfo{Name: restaurant},
		Meals:      []MenuMeal{},
	}
	for _, meta := range service.fx.Restaurants {
		if strings.EqualFold(strings.TrimSpace(meta.Restaurant), restaurant) {
			view.Restaurant = RestaurantInfo{
				Name:        meta.Restaurant,
				Cuisine:     meta.Cuisine,
				Capacity:    meta.Capacity,
				SeatingType: meta.SeatingType,
				ZipCode:     meta.ZipCode,
			}
			break
		}
	}

	for _, meal := range service.fx.RescueMeals {
		if !strings.EqualFold(strings.TrimSpace(meal.Restaurant), restaurant) {
			continue
		}
		mealID := slug.MealID(restaurant, meal.MealName)
		soldCount := inventory[mealID]
		available := meal.Quantity - soldCount
		if available < 0 {
			available = 0
		}
		status := MealStatusAvailable
		if available == 0 {
			status = MealStatusSoldOut
		}
		view.Meals = append(view.Meals, MenuMeal{
			ID:                mealID,
			Restaurant:        restaurant,
			MealName:          meal.MealName,
			OriginalPrice:     meal.OriginalPrice,
			RescuePrice:       meal.RescuePrice,
			BaseQuantity:      meal.Quantity,
			Sold:              soldCount,
			AvailableQuantity: available,
			Status:            status,
			ExpiresIn:         meal.ExpiresIn,
		})
	}

	return view, nil
}

// Сводка ресторана

type OverviewView struct {
	Restaurant   string          `json:"restaurant"`
	Metrics      OverviewMetrics `json:"metrics"`
	RecentOrders []OverviewOrder `json:"recentOrders"`
}

type OverviewMetrics struct {
	TotalOrders               int     `json:"totalOrders"`
	TotalMealsRescued         int     `json:"totalMealsRescued"`
	TotalRevenue              float64 `json:"totalRevenue"`
	EstimatedWastePreventedLb float64 `json:"estimatedWastePreventedLbs"`
}

type OverviewOrder struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	UserEmail string            `json:"userEmail,omitempty"`
	Items     []model.OrderItem `json:"items"`
}

// GetOverview агрегирует журнал заказов по одному ресторану.
// Учитываются только rescue-позиции, имя сравнивается без учета регистра.
func (service *service) GetOverview(ctx context.Context, restaurant string) (OverviewView, error) {
	restaurant = strings.TrimSpace(restaurant)
	if restaurant == "" {
		return OverviewView{}, ErrInsufficientData
	}

	orders, err := service.store.GetOrders(ctx)
	if err != nil {
		return OverviewView{}, err
	}

	view := OverviewView{
		Restaurant:   restaurant,
		RecentOrders: []OverviewOrder{},
	}

	for _, order := range orders {
		var matched []model.OrderItem
		for _, item := range order.Items {
			if !item.IsRescueMeal {
				continue
			}
			if !strings.EqualFold(strings.TrimSpace(item.Restaurant), restaurant) {
				continue
			}
			matched = append(matched, item)
		}
		if len(matched) == 0 {
			continue
		}

		view.Metrics.TotalOrders++
		for _, item := range matched {
			view.Metrics.TotalMealsRescued += item.Quantity
			view.Metrics.TotalRevenue += float64(item.Quantity) * item.Price
		}

		view.RecentOrders = append(view.RecentOrders, OverviewOrder{
			ID:        order.ID,
			Timestamp: order.Timestamp,
			UserEmail: order.UserEmail,
			Items:     matched,
		})
	}

	view.Metrics.EstimatedWastePreventedLb = WastePerMealLbs * float64(view.Metrics.TotalMealsRescued)

	sort.Slice(view.RecentOrders, func(i, j int) bool {
		return view.RecentOrders[i].Timestamp.After(view.RecentOrders[j].Timestamp)
	})
	if len(view.RecentOrders) > 10 {
		view.RecentOrders = view.RecentOrders[:10]
	}

	return view, nil
}

// Отзывы

func (service *service) GetReviews(ctx context.Context, restaurantID string) ([]model.Review, error) {
	reviews, err := service.store.GetReviews(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	if reviews == nil {
		reviews = []model.Review{}
	}
	return reviews, nil
}

func (service *service) AddReview(ctx context.Context, review model.Review) (model.Review, error) {
	if review.RestaurantID == "" || review.Rating == 0 || review.UserName == "" {
		return model.Review{}, ErrInsufficientData
	}

	review.ID = time.Now().UnixMilli()
	review.CreatedAt = time.Now().UTC()

	if err := service.store.AddReview(ctx, review); err != nil {
		return model.Review{}, err
	}
	return review, nil
}
