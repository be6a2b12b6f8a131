package model

import "time"

// Заказы

type Order struct {
	ID        string      `json:"id"`
	UserEmail string      `json:"userEmail,omitempty"`
	Items     []OrderItem `json:"items"`
	Totals    OrderTotals `json:"totals"`
	Timestamp time.Time   `json:"timestamp"`
}

type OrderItem struct {
	Restaurant   string  `json:"restaurant"`
	Meal         string  `json:"meal"`
	MealID       string  `json:"mealId,omitempty"`
	Price        float64 `json:"price"`
	Quantity     int     `json:"quantity"`
	IsRescueMeal bool    `json:"isRescueMeal"`
}

type OrderTotals struct {
	Subtotal     float64 `json:"subtotal,omitempty"`
	TotalSavings float64 `json:"totalSavings,omitempty"`
	Total        float64 `json:"total,omitempty"`
}

// Корзина — входящий запрос оформления заказа.
// isRescueMeal по умолчанию true: маркетплейс продает только rescue-блюда,
// явный false выключает и начисление баллов, и учет инвентаря.
type Cart struct {
	Items     []CartItem  `json:"items"`
	Totals    OrderTotals `json:"totals"`
	UserEmail string      `json:"userEmail,omitempty"`
	RequestID string      `json:"requestId,omitempty"`
}

type CartItem struct {
	Restaurant   string  `json:"restaurant"`
	Meal         string  `json:"meal"`
	Price        float64 `json:"price"`
	Quantity     int     `json:"quantity"`
	IsRescueMeal *bool   `json:"isRescueMeal"`
}

// Фикстуры: рестораны и rescue-блюда

type RestaurantMeta struct {
	Restaurant     string `json:"restaurant"`
	Cuisine        string `json:"cuisine"`
	Capacity       int    `json:"capacity"`
	SeatingType    string `json:"seating_type"`
	AvgDailyOrders int    `json:"avg_daily_orders"`
	ZipCode        string `json:"zip_code"`
}

type RescueMeal struct {
	Restaurant    string
	MealName      string
	OriginalPrice float64
	RescuePrice   float64
	Quantity      int
	ExpiresIn     string
}

// Журнал пищевых отходов (CSV)

type WasteLog struct {
	Restaurant string
	WasteType  string
	QuantityLb float64
	Servings   int
}

// Лидерборд

type LeaderboardRow struct {
	Name   string `json:"name"`
	Points int    `json:"points"`
}

// Отзывы

type Review struct {
	ID           int64     `json:"id"`
	RestaurantID string    `json:"restaurantId"`
	Rating       int       `json:"rating"`
	Comment      string    `json:"comment"`
	UserName     string    `json:"userName"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Пользователи

type User struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	AccountType  string `json:"accountType,omitempty"`
}
