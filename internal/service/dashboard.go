package service

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/iurnickita/tiffintrails/internal/model"
	"github.com/iurnickita/tiffintrails/internal/slug"
)

// Ключи кэша агрегатов
const (
	cacheKeyLeaderboard    = "tiffintrails:leaderboard"
	cacheKeyCommunityStats = "tiffintrails:community-stats"
)

func (service *service) GetRestaurants() []model.RestaurantMeta {
	return service.fx.Restaurants
}

// Витрина: рестораны с rescue-блюдами

type RestaurantWithMeals struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Cuisine    string     `json:"cuisine"`
	Rating     float64    `json:"rating"`
	NumReviews int        `json:"numReviews"`
	Address    string     `json:"address"`
	Hours      string     `json:"hours"`
	Menus      []MealCard `json:"menus"`
}

type MealCard struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	Description       string  `json:"description"`
	OriginalPrice     float64 `json:"originalPrice"`
	RescuePrice       float64 `json:"rescuePrice"`
	PickupWindow      string  `json:"pickupWindow"`
	Quantity          int     `json:"quantity"`
	AvailableQuantity int     `json:"availableQuantity"`
	MaxPerOrder       int     `json:"maxPerOrder"`
	IsRescueMeal      bool    `json:"isRescueMeal"`
}

const mealDescription = "Chef-selected surplus meal from today's unsold portions."

// GetRestaurantsWithMeals соединяет метаданные ресторанов, список блюд
// и счетчики продаж. Производные поля (рейтинг, адрес) считаются так же,
// как их показывала старая витрина.
func (service *service) GetRestaurantsWithMeals(ctx context.Context) ([]RestaurantWithMeals, error) {
	inventory, err := service.store.GetInventory(ctx)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]int)
	results := make([]RestaurantWithMeals, 0, len(service.fx.Restaurants))

	for _, meta := range service.fx.Restaurants {
		rating, numReviews := ratingBand(meta.AvgDailyOrders)
		address := "Raleigh, NC"
		if meta.ZipCode != "" {
			address = "Raleigh, NC " + meta.ZipCode
		}
		cuisine := meta.Cuisine
		if cuisine == "" {
			cuisine = "American"
		}

		byName[meta.Restaurant] = len(results)
		results = append(results, RestaurantWithMeals{
			ID:         slug.Make(meta.Restaurant),
			Name:       meta.Restaurant,
			Cuisine:    cuisine,
			Rating:     rating,
			NumReviews: numReviews,
			Address:    address,
			Hours:      "Today · 11:00 AM – 8:00 PM",
			Menus:      []MealCard{},
		})
	}

	for _, meal := range service.fx.RescueMeals {
		i, ok := byName[meal.Restaurant]
		if !ok {
			continue
		}

		mealID := slug.MealID(meal.Restaurant, meal.MealName)
		available := meal.Quantity - inventory[mealID]
		if available < 0 {
			available = 0
		}

		pickupWindow := "Today, 5–8 PM"
		if meal.ExpiresIn != "" {
			pickupWindow = "Pickup within " + meal.ExpiresIn
		}

		maxPerOrder := 1
		switch {
		case meal.Quantity > 0:
			maxPerOrder = meal.Quantity
			if maxPerOrder > 3 {
				maxPerOrder = 3
			}
		case available > 0:
			maxPerOrder = available
		}

		results[i].Menus = append(results[i].Menus, MealCard{
			ID:                mealID,
			Name:              meal.MealName,
			Description:       mealDescription,
			OriginalPrice:     meal.OriginalPrice,
			RescuePrice:       meal.RescuePrice,
			PickupWindow:      pickupWindow,
			Quantity:          meal.Quantity,
			AvailableQuantity: available,
			MaxPerOrder:       maxPerOrder,
			IsRescueMeal:      true,
		})
	}

	return results, nil
}

// рейтинг и число отзывов — полосы по среднему числу заказов в день
func ratingBand(avgDailyOrders int) (float64, int) {
	switch {
	case avgDailyOrders >= 300:
		return 4.8, 240
	case avgDailyOrders >= 200:
		return 4.6, 180
	case avgDailyOrders >= 100:
		return 4.4, 120
	default:
		return 4.2, 60
	}
}

// Общая статистика сообщества

type CommunityStats struct {
	ActiveUsers         int     `json:"activeUsers"`
	MealsRescued        int     `json:"mealsRescued"`
	WastePreventedTons  float64 `json:"wastePreventedTons"`
	RestaurantsPartnerd int     `json:"restaurantsPartnered"`
}

func (service *service) GetCommunityStats(ctx context.Context) (CommunityStats, error) {
	if raw, ok := service.cache.Get(ctx, cacheKeyCommunityStats); ok {
		var stats CommunityStats
		if err := json.Unmarshal(raw, &stats); err == nil {
			return stats, nil
		}
	}

	orders, err := service.store.GetOrders(ctx)
	if err != nil {
		return CommunityStats{}, err
	}

	users := make(map[string]struct{})
	var meals int
	for _, order := range orders {
		if order.UserEmail != "" {
			users[strings.ToLower(order.UserEmail)] = struct{}{}
		}
		for _, item := range order.Items {
			if !item.IsRescueMeal {
				continue
			}
			meals += item.Quantity
		}
	}

	stats := CommunityStats{
		ActiveUsers:         len(users),
		MealsRescued:        meals,
		WastePreventedTons:  round2(float64(meals) * WastePerMealLbs / 2000),
		RestaurantsPartnerd: len(service.fx.Restaurants),
	}

	service.cachePut(ctx, cacheKeyCommunityStats, stats)
	return stats, nil
}

// Личное воздействие пользователя

type UserImpact struct {
	MealsOrdered              int     `json:"mealsOrdered"`
	MoneySaved                float64 `json:"moneySaved"`
	FoodWastePrevented        float64 `json:"foodWastePrevented"`
	CarbonReduced             float64 `json:"carbonReduced"`
	LocalRestaurantsSupported int     `json:"localRestaurantsSupported"`
	ImpactLevel               string  `json:"impactLevel"`
}

func (service *service) GetUserImpact(ctx context.Context, email string) (UserImpact, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return UserImpact{}, ErrInsufficientData
	}

	orders, err := service.store.GetOrders(ctx)
	if err != nil {
		return UserImpact{}, err
	}

	var impact UserImpact
	restaurants := make(map[string]struct{})

	for _, order := range orders {
		if strings.ToLower(strings.TrimSpace(order.UserEmail)) != email {
			continue
		}
		for _, item := range order.Items {
			if !item.IsRescueMeal {
				continue
			}
			impact.MealsOrdered += item.Quantity
			restaurants[item.Restaurant] = struct{}{}
		}
		impact.MoneySaved += order.Totals.TotalSavings
	}

	impact.MoneySaved = round2(impact.MoneySaved)
	impact.FoodWastePrevented = round1(float64(impact.MealsOrdered) * WastePerMealLbs)
	impact.CarbonReduced = round1(float64(impact.MealsOrdered) * CarbonPerMealKg)
	impact.LocalRestaurantsSupported = len(restaurants)
	impact.ImpactLevel = impactLevel(impact.MealsOrdered)

	return impact, nil
}

func impactLevel(meals int) string {
	switch {
	case meals >= 20:
		return "Impact Hero"
	case meals >= 10:
		return "Rescue Champion"
	case meals >= 5:
		return "Rising Rescuer"
	default:
		return "New Rescuer"
	}
}

// Сводка для главной страницы: по журналу отходов из фикстур

type HomeImpact struct {
	MealsRescued       int     `json:"mealsRescued"`
	WastePreventedTons float64 `json:"wastePreventedTons"`
	CommunityImpact    int     `json:"communityImpact"`
}

func (service *service) GetHomeImpact(ctx context.Context) (HomeImpact, error) {
	var impact HomeImpact
	var wasteLb float64
	for _, log := range service.fx.WasteLogs {
		impact.MealsRescued += log.Servings
		wasteLb += log.QuantityLb
	}
	impact.WastePreventedTons = round1(wasteLb / 2000)

	users, err := service.store.CountUsers(ctx)
	if err != nil {
		return HomeImpact{}, err
	}
	impact.CommunityImpact = users

	return impact, nil
}

// Лидерборд

// GetLeaderboard возвращает рейтинг в едином виде: по убыванию баллов,
// при равенстве — по имени. Нормализация выполняется на сервере,
// клиенту больше не нужно угадывать форму ответа.
func (service *service) GetLeaderboard(ctx context.Context) ([]model.LeaderboardRow, error) {
	if raw, ok := service.cache.Get(ctx, cacheKeyLeaderboard); ok {
		if rows, err := ParseLeaderboardJSON(raw); err == nil {
			return rows, nil
		}
	}

	points, err := service.store.GetPoints(ctx)
	if err != nil {
		return nil, err
	}

	rows := NormalizeLeaderboard(points)
	service.cachePut(ctx, cacheKeyLeaderboard, rows)
	return rows, nil
}

// NormalizeLeaderboard приводит карту имя→баллы к отсортированным строкам
func NormalizeLeaderboard(points map[string]int) []model.LeaderboardRow {
	rows := make([]model.LeaderboardRow, 0, len(points))
	for name, value := range points {
		rows = append(rows, model.LeaderboardRow{Name: name, Points: value})
	}
	SortLeaderboard(rows)
	return rows
}

func SortLeaderboard(rows []model.LeaderboardRow) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Points != rows[j].Points {
			return rows[i].Points > rows[j].Points
		}
		return rows[i].Name < rows[j].Name
	})
}

// ParseLeaderboardJSON принимает любой из исторических форматов:
// массив [{name,points}], карту {имя: баллы} или обертку {points: ...}
func ParseLeaderboardJSON(raw []byte) ([]model.LeaderboardRow, error) {
	var rows []model.LeaderboardRow
	if err := json.Unmarshal(raw, &rows); err == nil {
		SortLeaderboard(rows)
		return rows, nil
	}

	var wrapper struct {
		Points json.RawMessage `json:"points"`
	}
	if err := json.Unmarshal(raw, &wrapper); err == nil && len(wrapper.Points) > 0 {
		return ParseLeaderboardJSON(wrapper.Points)
	}

	var asMap map[string]int
	if err := json.Unmarshal(raw, &asMap); err != nil {
		return nil, err
	}
	return NormalizeLeaderboard(asMap), nil
}

// Корреляция эффективность/отходы — запрос во внешний аналитический сервис

func (service *service) GetEfficiencyCorrelation(ctx context.Context) (json.RawMessage, error) {
	if service.cfg.AnalyticsAddr == "" {
		return nil, ErrAnalyticsUnavailable
	}
	return service.analytics.GetCorrelation(ctx)
}

func (service *service) cachePut(ctx context.Context, key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := service.cache.Set(ctx, key, raw); err != nil {
		service.zaplog.Debug("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
