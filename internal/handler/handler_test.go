package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iurnickita/tiffintrails/internal/model"
	"github.com/iurnickita/tiffintrails/internal/service"
)

// stubAuth пропускает запросы без проверки
type stubAuth struct{}

func (stubAuth) Register(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }
func (stubAuth) Login(w http.ResponseWriter, r *http.Request)   { w.WriteHeader(http.StatusOK) }
func (stubAuth) Middleware(h http.HandlerFunc) http.HandlerFunc { return h }

// stubService подменяет только нужные тесту методы
type stubService struct {
	submitOrder func(ctx context.Context, cart model.Cart) (model.Order, map[string]int, error)
	getMenu     func(ctx context.Context, restaurant string) (service.MenuView, error)
	getReviews  func(ctx context.Context, restaurantID string) ([]model.Review, error)
	addReview   func(ctx context.Context, review model.Review) (model.Review, error)
	userImpact  func(ctx context.Context, email string) (service.UserImpact, error)
}

func (s *stubService) SubmitOrder(ctx context.Context, cart model.Cart) (model.Order, map[string]int, error) {
	return s.submitOrder(ctx, cart)
}

func (s *stubService) GetOrders(ctx context.Context) ([]model.Order, error) { return nil, nil }

func (s *stubService) GetPoints(ctx context.Context) (map[string]int, error) {
	return map[string]int{"Eastside Deli": 40}, nil
}

func (s *stubService) GetLeaderboard(ctx context.Context) ([]model.LeaderboardRow, error) {
	return nil, nil
}

func (s *stubService) GetMenu(ctx context.Context, restaurant string) (service.MenuView, error) {
	return s.getMenu(ctx, restaurant)
}

func (s *stubService) GetOverview(ctx context.Context, restaurant string) (service.OverviewView, error) {
	if strings.TrimSpace(restaurant) == "" {
		return service.OverviewView{}, service.ErrInsufficientData
	}
	return service.OverviewView{Restaurant: restaurant}, nil
}

func (s *stubService) GetRestaurants() []model.RestaurantMeta { return nil }

func (s *stubService) GetRestaurantsWithMeals(ctx context.Context) ([]service.RestaurantWithMeals, error) {
	return []service.RestaurantWithMeals{}, nil
}

func (s *stubService) GetCommunityStats(ctx context.Context) (service.CommunityStats, error) {
	return service.CommunityStats{}, nil
}

func (s *stubService) GetUserImpact(ctx context.Context, email string) (service.UserImpact, error) {
	return s.userImpact(ctx, email)
}

func (s *stubService) GetHomeImpact(ctx context.Context) (service.HomeImpact, error) {
	return service.HomeImpact{}, nil
}

func (s *stubService) GetReviews(ctx context.Context, restaurantID string) ([]model.Review, error) {
	return s.getReviews(ctx, restaurantID)
}

func (s *stubService) AddReview(ctx context.Context, review model.Review) (model.Review, error) {
	return s.addReview(ctx, review)
}

func (s *stubService) GetEfficiencyCorrelation(ctx context.Context) (json.RawMessage, error) {
	return nil, service.ErrAnalyticsUnavailable
}

func newTestServer(t *testing.T, stub *stubService) *httptest.Server {
	t.Helper()
	h := newHandler(stubAuth{}, stub, time.Second, zap.NewNop())
	srv := httptest.NewServer(h.newRouter())
	t.Cleanup(srv.Close)
	return srv
}

func TestPostOrder(t *testing.T) {
	stub := &stubService{
		submitOrder: func(ctx context.Context, cart model.Cart) (model.Order, map[string]int, error) {
			if len(cart.Items) == 0 {
				return model.Order{}, nil, service.ErrEmptyCart
			}
			return model.Order{ID: "order-1", Items: []model.OrderItem{
					{Restaurant: "Eastside Deli", Quantity: 2, IsRescueMeal: true},
				}},
				map[string]int{"Eastside Deli": 20}, nil
		},
	}
	srv := newTestServer(t, stub)

	// пустая корзина
	resp, err := http.Post(srv.URL+"/api/orders", "application/json",
		strings.NewReader(`{"items":[]}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var failed struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&failed))
	require.False(t, failed.Success)
	require.Equal(t, "Cart is empty. Please add at least one rescue meal.", failed.Message)

	// успешное оформление
	resp, err = http.Post(srv.URL+"/api/orders", "application/json",
		strings.NewReader(`{"items":[{"restaurant":"Eastside Deli","meal":"Chicken Salad Sandwich","price":6.99,"quantity":2}]}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var ok struct {
		Success       bool           `json:"success"`
		Order         *model.Order   `json:"order"`
		PointsAwarded map[string]int `json:"pointsAwarded"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ok))
	require.True(t, ok.Success)
	require.NotNil(t, ok.Order)
	require.Equal(t, "order-1", ok.Order.ID)
	require.Equal(t, map[string]int{"Eastside Deli": 20}, ok.PointsAwarded)
}

func TestPostOrderSoldOut(t *testing.T) {
	stub := &stubService{
		submitOrder: func(ctx context.Context, cart model.Cart) (model.Order, map[string]int, error) {
			return model.Order{}, nil, service.ErrSoldOut
		},
	}
	srv := newTestServer(t, stub)

	resp, err := http.Post(srv.URL+"/api/orders", "application/json",
		strings.NewReader(`{"items":[{"restaurant":"x","meal":"y","quantity":99}]}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetRestaurantPoints(t *testing.T) {
	srv := newTestServer(t, &stubService{})

	resp, err := http.Get(srv.URL + "/api/restaurant-points")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Success bool           `json:"success"`
		Points  map[string]int `json:"points"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.True(t, body.Success)
	require.Equal(t, map[string]int{"Eastside Deli": 40}, body.Points)
}

func TestGetMenuRequiresParam(t *testing.T) {
	stub := &stubService{
		getMenu: func(ctx context.Context, restaurant string) (service.MenuView, error) {
			if strings.TrimSpace(restaurant) == "" {
				return service.MenuView{}, service.ErrInsufficientData
			}
			return service.MenuView{Restaurant: service.RestaurantInfo{Name: restaurant}}, nil
		},
	}
	srv := newTestServer(t, stub)

	resp, err := http.Get(srv.URL + "/restaurant/menu")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, `Query parameter "restaurant" is required.`, body["error"])

	resp, err = http.Get(srv.URL + "/restaurant/menu?restaurant=Eastside+Deli")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGetUserImpactMissingEmail(t *testing.T) {
	stub := &stubService{
		userImpact: func(ctx context.Context, email string) (service.UserImpact, error) {
			if email == "" {
				return service.UserImpact{}, service.ErrInsufficientData
			}
			return service.UserImpact{MealsOrdered: 7, ImpactLevel: "Rising Rescuer"}, nil
		},
	}
	srv := newTestServer(t, stub)

	resp, err := http.Get(srv.URL + "/dashboard/user-impact")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/dashboard/user-impact?email=a@example.com")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var impact service.UserImpact
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&impact))
	require.Equal(t, 7, impact.MealsOrdered)
}

func TestReviews(t *testing.T) {
	stub := &stubService{
		getReviews: func(ctx context.Context, restaurantID string) ([]model.Review, error) {
			require.Equal(t, "eastside-deli", restaurantID)
			return []model.Review{{ID: 1, RestaurantID: restaurantID, Rating: 5, UserName: "Dana"}}, nil
		},
		addReview: func(ctx context.Context, review model.Review) (model.Review, error) {
			if review.RestaurantID == "" || review.Rating == 0 || review.UserName == "" {
				return model.Review{}, service.ErrInsufficientData
			}
			review.ID = 2
			return review, nil
		},
	}
	srv := newTestServer(t, stub)

	resp, err := http.Get(srv.URL + "/reviews/eastside-deli")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var listBody struct {
		Success bool           `json:"success"`
		Reviews []model.Review `json:"reviews"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listBody))
	require.True(t, listBody.Success)
	require.Len(t, listBody.Reviews, 1)

	// неполный отзыв: бизнес-отказ с кодом 200
	resp, err = http.Post(srv.URL+"/reviews", "application/json",
		strings.NewReader(`{"restaurantId":"eastside-deli"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var failBody struct {
		Success bool `json:"success"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&failBody))
	require.False(t, failBody.Success)

	// полный отзыв
	resp, err = http.Post(srv.URL+"/reviews", "application/json",
		strings.NewReader(`{"restaurantId":"eastside-deli","rating":4,"userName":"Lee","comment":"good"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var okBody struct {
		Success bool          `json:"success"`
		Review  *model.Review `json:"review"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&okBody))
	require.True(t, okBody.Success)
	require.NotNil(t, okBody.Review)
	require.Equal(t, int64(2), okBody.Review.ID)
}

func TestGetEfficiencyCorrelationUnavailable(t *testing.T) {
	srv := newTestServer(t, &stubService{})

	resp, err := http.Get(srv.URL + "/dashboard/efficiency-correlation")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
