package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/iurnickita/tiffintrails/internal/auth"
	"github.com/iurnickita/tiffintrails/internal/gzip"
	"github.com/iurnickita/tiffintrails/internal/handler/config"
	"github.com/iurnickita/tiffintrails/internal/logger"
	"github.com/iurnickita/tiffintrails/internal/model"
	"github.com/iurnickita/tiffintrails/internal/service"
)

func Serve(cfg config.Config, auth auth.Auth, service service.Service, zaplog *zap.Logger) error {
	h := newHandler(auth, service, cfg.RequestTimeout, zaplog)
	router := h.newRouter()

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: router,
	}

	return srv.ListenAndServe()
}

type handler struct {
	auth    auth.Auth
	service service.Service
	timeout time.Duration
	zaplog  *zap.Logger
}

func newHandler(auth auth.Auth, service service.Service, timeout time.Duration, zaplog *zap.Logger) *handler {
	return &handler{
		auth:    auth,
		service: service,
		timeout: timeout,
		zaplog:  zaplog,
	}
}

func (h *handler) newRouter() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /login", h.mdlw(h.auth.Login))
	mux.HandleFunc("POST /register", h.mdlw(h.auth.Register))

	mux.HandleFunc("POST /api/orders", h.mdlw(h.auth.Middleware(h.PostOrder)))
	mux.HandleFunc("GET /api/orders", h.mdlw(h.GetOrders))
	mux.HandleFunc("GET /api/restaurant-points", h.mdlw(h.GetRestaurantPoints))
	mux.HandleFunc("GET /api/leaderboard", h.mdlw(h.GetLeaderboard))

	mux.HandleFunc("GET /restaurant/menu", h.mdlw(h.GetMenu))
	mux.HandleFunc("GET /restaurant/overview", h.mdlw(h.GetOverview))

	mux.HandleFunc("GET /dashboard/restaurants-with-meals", h.mdlw(h.GetRestaurantsWithMeals))
	mux.HandleFunc("GET /dashboard/community-stats", h.mdlw(h.GetCommunityStats))
	mux.HandleFunc("GET /dashboard/user-impact", h.mdlw(h.auth.Middleware(h.GetUserImpact)))
	mux.HandleFunc("GET /dashboard/efficiency-correlation", h.mdlw(h.GetEfficiencyCorrelation))

	mux.HandleFunc("GET /restaurants", h.mdlw(h.GetRestaurants))
	mux.HandleFunc("GET /impact", h.mdlw(h.GetHomeImpact))

	mux.HandleFunc("GET /reviews/{restaurantId}", h.mdlw(h.GetReviews))
	mux.HandleFunc("POST /reviews", h.mdlw(h.PostReview))

	return mux
}

// mdlw — общая обвязка маршрута: gzip, лог запроса, таймаут
func (h *handler) mdlw(next http.HandlerFunc) http.HandlerFunc {
	withTimeout := func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	}
	return gzip.GzipMiddleware(logger.RequestLogMdlw(withTimeout, h.zaplog))
}

type orderJSONResponse struct {
	Success       bool           `json:"success"`
	Order         *model.Order   `json:"order,omitempty"`
	PointsAwarded map[string]int `json:"pointsAwarded,omitempty"`
	Message       string         `json:"message,omitempty"`
}

func (h *handler) PostOrder(w http.ResponseWriter, r *http.Request) {
	var cart model.Cart
	if err := json.NewDecoder(r.Body).Decode(&cart); err != nil {
		writeJSON(w, http.StatusBadRequest,
			orderJSONResponse{Success: false, Message: "invalid request body"})
		return
	}
	if cart.UserEmail == "" {
		cart.UserEmail = r.Header.Get(auth.HeaderUserEmailKey)
	}

	order, points, err := h.service.SubmitOrder(r.Context(), cart)
	if err != nil {
		switch err {
		case service.ErrEmptyCart:
			writeJSON(w, http.StatusBadRequest, orderJSONResponse{Success: false,
				Message: "Cart is empty. Please add at least one rescue meal."})
		case service.ErrBadItem:
			writeJSON(w, http.StatusBadRequest, orderJSONResponse{Success: false,
				Message: "Cart contains an item with invalid quantity or price."})
		case service.ErrSoldOut:
			writeJSON(w, http.StatusBadRequest, orderJSONResponse{Success: false,
				Message: "Not enough meals left for one of the items in your cart."})
		default:
			h.zaplog.Error("order submission failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, orderJSONResponse{Success: false,
				Message: "An unexpected error occurred during checkout."})
		}
		return
	}

	writeJSON(w, http.StatusOK, orderJSONResponse{
		Success:       true,
		Order:         &order,
		PointsAwarded: points,
		Message:       "Order placed",
	})
}

type ordersJSONResponse struct {
	Success bool          `json:"success"`
	Orders  []model.Order `json:"orders"`
}

func (h *handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.GetOrders(r.Context())
	if err != nil {
		h.internalError(w, "orders query failed", err)
		return
	}
	if orders == nil {
		orders = []model.Order{}
	}
	writeJSON(w, http.StatusOK, ordersJSONResponse{Success: true, Orders: orders})
}

type pointsJSONResponse struct {
	Success bool           `json:"success"`
	Points  map[string]int `json:"points"`
}

func (h *handler) GetRestaurantPoints(w http.ResponseWriter, r *http.Request) {
	points, err := h.service.GetPoints(r.Context())
	if err != nil {
		h.internalError(w, "points query failed", err)
		return
	}
	writeJSON(w, http.StatusOK, pointsJSONResponse{Success: true, Points: points})
}

func (h *handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.GetLeaderboard(r.Context())
	if err != nil {
		h.internalError(w, "leaderboard query failed", err)
		return
	}
	if rows == nil {
		rows = []model.LeaderboardRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *handler) GetMenu(w http.ResponseWriter, r *http.Request) {
	menu, err := h.service.GetMenu(r.Context(), r.URL.Query().Get("restaurant"))
	if err != nil {
		switch err {
		case service.ErrInsufficientData:
			writeJSON(w, http.StatusBadRequest,
				map[string]string{"error": `Query parameter "restaurant" is required.`})
		default:
			h.internalError(w, "menu query failed", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, menu)
}

func (h *handler) GetOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.service.GetOverview(r.Context(), r.URL.Query().Get("restaurant"))
	if err != nil {
		switch err {
		case service.ErrInsufficientData:
			writeJSON(w, http.StatusBadRequest,
				map[string]string{"error": `Query parameter "restaurant" is required.`})
		default:
			h.internalError(w, "overview query failed", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

func (h *handler) GetRestaurantsWithMeals(w http.ResponseWriter, r *http.Request) {
	restaurants, err := h.service.GetRestaurantsWithMeals(r.Context())
	if err != nil {
		h.internalError(w, "restaurants query failed", err)
		return
	}
	writeJSON(w, http.StatusOK, restaurants)
}

func (h *handler) GetCommunityStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetCommunityStats(r.Context())
	if err != nil {
		h.internalError(w, "community stats failed", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *handler) GetUserImpact(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		email = r.Header.Get(auth.HeaderUserEmailKey)
	}

	impact, err := h.service.GetUserImpact(r.Context(), email)
	if err != nil {
		switch err {
		case service.ErrInsufficientData:
			writeJSON(w, http.StatusBadRequest,
				map[string]string{"error": "Missing email parameter."})
		default:
			h.internalError(w, "user impact failed", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, impact)
}

func (h *handler) GetEfficiencyCorrelation(w http.ResponseWriter, r *http.Request) {
	raw, err := h.service.GetEfficiencyCorrelation(r.Context())
	if err != nil {
		switch err {
		case service.ErrAnalyticsUnavailable:
			writeJSON(w, http.StatusServiceUnavailable,
				map[string]string{"error": "Analytics service is not available."})
		default:
			h.internalError(w, "analytics request failed", err)
		}
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(raw)
}

func (h *handler) GetRestaurants(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.GetRestaurants())
}

func (h *handler) GetHomeImpact(w http.ResponseWriter, r *http.Request) {
	impact, err := h.service.GetHomeImpact(r.Context())
	if err != nil {
		h.internalError(w, "impact query failed", err)
		return
	}
	writeJSON(w, http.StatusOK, impact)
}

type reviewsJSONResponse struct {
	Success bool           `json:"success"`
	Reviews []model.Review `json:"reviews,omitempty"`
	Review  *model.Review  `json:"review,omitempty"`
	Message string         `json:"message,omitempty"`
}

func (h *handler) GetReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.service.GetReviews(r.Context(), r.PathValue("restaurantId"))
	if err != nil {
		h.internalError(w, "reviews query failed", err)
		return
	}
	writeJSON(w, http.StatusOK, reviewsJSONResponse{Success: true, Reviews: reviews})
}

func (h *handler) PostReview(w http.ResponseWriter, r *http.Request) {
	var review model.Review
	if err := json.NewDecoder(r.Body).Decode(&review); err != nil {
		writeJSON(w, http.StatusOK, reviewsJSONResponse{Success: false,
			Message: "invalid request body"})
		return
	}

	created, err := h.service.AddReview(r.Context(), review)
	if err != nil {
		switch err {
		// бизнес-отказ с кодом 200 — контракт клиента
		case service.ErrInsufficientData:
			writeJSON(w, http.StatusOK, reviewsJSONResponse{Success: false,
				Message: "restaurantId, rating, and userName are required."})
		default:
			writeJSON(w, http.StatusOK, reviewsJSONResponse{Success: false,
				Message: "Failed to save review."})
		}
		return
	}
	writeJSON(w, http.StatusOK, reviewsJSONResponse{Success: true, Review: &created})
}

func (h *handler) internalError(w http.ResponseWriter, msg string, err error) {
	h.zaplog.Error(msg, zap.Error(err))
	writeJSON(w, http.StatusInternalServerError,
		map[string]string{"error": "internal server error"})
}

func writeJSON(w http.ResponseWriter, code int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(value)
}
