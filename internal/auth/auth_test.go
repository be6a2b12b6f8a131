package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/iurnickita/tiffintrails/internal/model"
	"github.com/iurnickita/tiffintrails/internal/store"
)

// userStore держит только учетные записи, остальное не используется
type userStore struct {
	store.Store
	users map[string]model.User
}

func newUserStore() *userStore {
	return &userStore{users: make(map[string]model.User)}
}

func (s *userStore) UserRegister(ctx context.Context, user model.User) error {
	if _, ok := s.users[user.Email]; ok {
		return store.ErrAlreadyExists
	}
	s.users[user.Email] = user
	return nil
}

func (s *userStore) UserByEmail(ctx context.Context, email string) (model.User, error) {
	user, ok := s.users[email]
	if !ok {
		return model.User{}, store.ErrNoRows
	}
	return user, nil
}

type authResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	User    *model.User `json:"user"`
}

func doAuth(t *testing.T, handlerFunc http.HandlerFunc, body string) (*httptest.ResponseRecorder, authResponse) {
	t.Helper()

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	w := httptest.NewRecorder()
	handlerFunc(w, r)

	var resp authResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return w, resp
}

func TestRegister(t *testing.T) {
	users := newUserStore()
	auth := NewAuth(users, zap.NewNop())

	w, resp := doAuth(t, auth.Register,
		`{"name":"Dana","email":"dana@example.com","password":"secret","accountType":"customer"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, resp.Success)

	// пароль не хранится открытым текстом
	saved := users.users["dana@example.com"]
	require.NotEqual(t, "secret", saved.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(saved.PasswordHash), []byte("secret")))

	// выдана кука с токеном
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	require.Equal(t, cookieUserToken, cookies[0].Name)

	// повторная регистрация: отказ с кодом 200
	w, resp = doAuth(t, auth.Register,
		`{"name":"Dana","email":"dana@example.com","password":"secret"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.False(t, resp.Success)
	require.Equal(t, "Email already exists", resp.Message)
}

func TestRegisterMissingFields(t *testing.T) {
	auth := NewAuth(newUserStore(), zap.NewNop())

	w, resp := doAuth(t, auth.Register, `{"email":"dana@example.com"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.False(t, resp.Success)
}

func TestLogin(t *testing.T) {
	users := newUserStore()
	auth := NewAuth(users, zap.NewNop())

	_, resp := doAuth(t, auth.Register,
		`{"name":"Dana","email":"dana@example.com","password":"secret"}`)
	require.True(t, resp.Success)

	w, resp := doAuth(t, auth.Login, `{"email":"dana@example.com","password":"secret"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, resp.Success)
	require.NotNil(t, resp.User)
	require.Equal(t, "Dana", resp.User.Name)

	// неверный пароль и незнакомая почта дают один и тот же ответ
	w, resp = doAuth(t, auth.Login, `{"email":"dana@example.com","password":"wrong"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.False(t, resp.Success)
	require.Equal(t, "Invalid credentials", resp.Message)

	w, resp = doAuth(t, auth.Login, `{"email":"ghost@example.com","password":"secret"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.False(t, resp.Success)
	require.Equal(t, "Invalid credentials", resp.Message)
}

func TestMiddleware(t *testing.T) {
	users := newUserStore()
	auth := NewAuth(users, zap.NewNop())

	// регистрация выдает куку
	r := httptest.NewRequest(http.MethodPost, "/",
		strings.NewReader(`{"name":"Dana","email":"dana@example.com","password":"secret"}`))
	w := httptest.NewRecorder()
	auth.Register(w, r)
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	var gotEmail string
	next := auth.Middleware(func(w http.ResponseWriter, r *http.Request) {
		gotEmail = r.Header.Get(HeaderUserEmailKey)
	})

	// с кукой почта попадает в заголовок
	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(cookies[0])
	next(httptest.NewRecorder(), r)
	require.Equal(t, "dana@example.com", gotEmail)

	// без куки запрос проходит, но почты нет
	gotEmail = "unset"
	next(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Empty(t, gotEmail)
}
