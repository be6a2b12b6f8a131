package auth

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/iurnickita/tiffintrails/internal/model"
	"github.com/iurnickita/tiffintrails/internal/store"
	"github.com/iurnickita/tiffintrails/internal/token"
)

type Auth interface {
	Register(w http.ResponseWriter, r *http.Request)
	Login(w http.ResponseWriter, r *http.Request)
	Middleware(h http.HandlerFunc) http.HandlerFunc
}

const (
	HeaderUserEmailKey = "userEmail"
	cookieUserToken    = "tiffintrailsUserToken"
)

type auth struct {
	store  store.Store
	zaplog *zap.Logger
}

func NewAuth(store store.Store, zaplog *zap.Logger) Auth {
	return &auth{store: store, zaplog: zaplog}
}

type registerJSONRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	AccountType string `json:"accountType"`
}

type loginJSONRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authJSONResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	User    *model.User `json:"user,omitempty"`
}

// Register создает учетную запись. Пароль хранится только как bcrypt-хэш.
// Бизнес-отказы отдаются с кодом 200 и success:false — контракт клиента.
func (a *auth) Register(w http.ResponseWriter, r *http.Request) {
	var req registerJSONRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAuthJSON(w, authJSONResponse{Success: false, Message: "invalid request body"})
		return
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		writeAuthJSON(w, authJSONResponse{Success: false, Message: "name, email and password are required"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		a.zaplog.Error("password hash failed", zap.Error(err))
		writeAuthJSON(w, authJSONResponse{Success: false, Message: "Server error, try again later"})
		return
	}

	user := model.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
		AccountType:  req.AccountType,
	}
	err = a.store.UserRegister(r.Context(), user)
	if err != nil {
		switch err {
		case store.ErrAlreadyExists:
			writeAuthJSON(w, authJSONResponse{Success: false, Message: "Email already exists"})
		default:
			a.zaplog.Error("register failed", zap.Error(err))
			writeAuthJSON(w, authJSONResponse{Success: false, Message: "Server error, try again later"})
		}
		return
	}

	a.setTokenCookie(w, user.Email)
	writeAuthJSON(w, authJSONResponse{Success: true, Message: "Registration successful"})
}

// Login сверяет пароль с bcrypt-хэшем
func (a *auth) Login(w http.ResponseWriter, r *http.Request) {
	var req loginJSONRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAuthJSON(w, authJSONResponse{Success: false, Message: "invalid request body"})
		return
	}

	user, err := a.store.UserByEmail(r.Context(), req.Email)
	if err != nil {
		switch err {
		case store.ErrNoRows:
			writeAuthJSON(w, authJSONResponse{Success: false, Message: "Invalid credentials"})
		default:
			a.zaplog.Error("login failed", zap.Error(err))
			writeAuthJSON(w, authJSONResponse{Success: false, Message: "Server error, try again later"})
		}
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		writeAuthJSON(w, authJSONResponse{Success: false, Message: "Invalid credentials"})
		return
	}

	a.setTokenCookie(w, user.Email)
	writeAuthJSON(w, authJSONResponse{Success: true, User: &user})
}

// Middleware достает пользователя из куки-токена, если он есть.
// Запрос не отклоняется: сессия держится на клиенте, кука лишь
// подставляет e-mail в запросы, где он не указан явно.
func (a *auth) Middleware(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if userEmail, err := a.getUserEmail(r); err == nil {
			r.Header.Set(HeaderUserEmailKey, userEmail)
		}
		h.ServeHTTP(w, r)
	}
}

func (a *auth) getUserEmail(r *http.Request) (string, error) {
	tokenCookie, err := r.Cookie(cookieUserToken)
	if err != nil {
		return "", err
	}
	return token.GetUserEmail(tokenCookie.Value)
}

func (a *auth) setTokenCookie(w http.ResponseWriter, userEmail string) {
	tokenString, err := token.BuildJWTString(userEmail)
	if err != nil {
		a.zaplog.Error("token build failed", zap.Error(err))
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieUserToken,
		Value:    tokenString,
		Path:     "/",
		HttpOnly: true,
	})
}

func writeAuthJSON(w http.ResponseWriter, resp authJSONResponse) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
