package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/iurnickita/tiffintrails/internal/model"
	"github.com/iurnickita/tiffintrails/internal/store/config"
)

type Store interface {
	SeedRestaurantPoints(names []string) error
	CreateOrder(ctx context.Context, order model.Order, requestID string,
		points map[string]int, sold map[string]int, limits map[string]int) (model.Order, error)
	GetOrders(ctx context.Context) ([]model.Order, error)
	GetPoints(ctx context.Context) (map[string]int, error)
	GetInventory(ctx context.Context) (map[string]int, error)
	GetReviews(ctx context.Context, restaurantID string) ([]model.Review, error)
	AddReview(ctx context.Context, review model.Review) error
	UserRegister(ctx context.Context, user model.User) error
	UserByEmail(ctx context.Context, email string) (model.User, error)
	CountUsers(ctx context.Context) (int, error)
}

var (
	ErrNoRows           = errors.New("no rows")
	ErrAlreadyExists    = errors.New("already exists")
	ErrDuplicateRequest = errors.New("duplicate request")
	ErrSoldOut          = errors.New("sold out")
)

type store struct {
	database *sql.DB
}

func NewStore(cfg config.Config) (Store, error) {
	db, err := sql.Open("pgx", cfg.DBDsn)
	if err != nil {
		return nil, err
	}

	// Журнал заказов. Записи не редактируются и не удаляются
	_, err = db.Exec(
		"CREATE TABLE IF NOT EXISTS orders (" +
			" id VARCHAR (36) PRIMARY KEY," +
			" user_email VARCHAR (254)," +
			" totals JSONB," +
			" created_at TIMESTAMP NOT NULL" +
			" );")
	if err != nil {
		return nil, err
	}

	// Позиции заказа
	_, err = db.Exec(
		"CREATE TABLE IF NOT EXISTS order_items (" +
			" order_id VARCHAR (36) NOT NULL," +
			" restaurant VARCHAR (100) NOT NULL," +
			" meal VARCHAR (100) NOT NULL," +
			" meal_id VARCHAR (200) NOT NULL," +
			" price DOUBLE PRECISION NOT NULL," +
			" quantity INTEGER NOT NULL," +
			" is_rescue_meal BOOLEAN NOT NULL" +
			" );")
	if err != nil {
		return nil, err
	}

	// Баллы ресторанов. Только увеличиваются
	_, err = db.Exec(
		"CREATE TABLE IF NOT EXISTS restaurant_points (" +
			" restaurant VARCHAR (100) PRIMARY KEY," +
			" points INTEGER NOT NULL DEFAULT 0" +
			" );")
	if err != nil {
		return nil, err
	}

	// Инвентарь: продано единиц на блюдо. Только увеличивается
	_, err = db.Exec(
		"CREATE TABLE IF NOT EXISTS inventory (" +
			" meal_id VARCHAR (200) PRIMARY KEY," +
			" sold INTEGER NOT NULL DEFAULT 0" +
			" );")
	if err != nil {
		return nil, err
	}

	// Отзывы
	_, err = db.Exec(
		"CREATE TABLE IF NOT EXISTS reviews (" +
			" id BIGINT PRIMARY KEY," +
			" restaurant_id VARCHAR (200) NOT NULL," +
			" rating INTEGER NOT NULL," +
			" comment TEXT," +
			" user_name VARCHAR (100) NOT NULL," +
			" created_at TIMESTAMP NOT NULL" +
			" );")
	if err != nil {
		return nil, err
	}

	// Учетные записи
	_, err = db.Exec(
		"CREATE TABLE IF NOT EXISTS users (" +
			" email VARCHAR (254) PRIMARY KEY," +
			" name VARCHAR (100) NOT NULL," +
			" password_hash VARCHAR (100) NOT NULL," +
			" account_type VARCHAR (20)" +
			" );")
	if err != nil {
		return nil, err
	}

	// Дедупликация повторных запросов оформления заказа
	_, err = db.Exec(
		"CREATE TABLE IF NOT EXISTS idempotency (" +
			" request_id VARCHAR (100) PRIMARY KEY," +
			" order_id VARCHAR (36) NOT NULL" +
			" );")
	if err != nil {
		return nil, err
	}

	return &store{
		database: db,
	}, nil
}

func (store *store) SeedRestaurantPoints(names []string) error {
	ctx := context.Background()

	for _, name := range names {
		_, err := store.database.ExecContext(ctx,
			"INSERT INTO restaurant_points (restaurant, points)"+
				" VALUES ($1, 0)"+
				" ON CONFLICT (restaurant) DO NOTHING",
			name)
		if err != nil {
			return err
		}
	}
	return nil
}

// CreateOrder записывает заказ, начисляет баллы и списывает инвентарь
// одной транзакцией: частичное применение невозможно.
// sold — прибавка к счетчику продаж по блюду, limits — базовое количество
// (проверка не даёт продать больше, чем выставлено).
func (store *store) CreateOrder(ctx context.Context, order model.Order, requestID string,
	points map[string]int, sold map[string]int, limits map[string]int) (model.Order, error) {

	tx, err := store.database.BeginTx(ctx, nil)
	if err != nil {
		return model.Order{}, err
	}
	defer tx.Rollback()

	// Повторный запрос с тем же requestID возвращает прежний заказ
	if requestID != "" {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO idempotency (request_id, order_id)"+
				" VALUES ($1, $2)",
			requestID, order.ID)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				existing, lookupErr := store.orderByRequestID(ctx, requestID)
				if lookupErr != nil {
					return model.Order{}, lookupErr
				}
				return existing, ErrDuplicateRequest
			}
			return model.Order{}, err
		}
	}

	totalsJSON, err := json.Marshal(order.Totals)
	if err != nil {
		return model.Order{}, err
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO orders (id, user_email, totals, created_at)"+
			" VALUES ($1, $2, $3, $4)",
		order.ID, order.UserEmail, totalsJSON, order.Timestamp)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return model.Order{}, ErrAlreadyExists
		}
		return model.Order{}, err
	}

	for _, item := range order.Items {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO order_items (order_id, restaurant, meal, meal_id, price, quantity, is_rescue_meal)"+
				" VALUES ($1, $2, $3, $4, $5, $6, $7)",
			order.ID, item.Restaurant, item.Meal, item.MealID,
			item.Price, item.Quantity, item.IsRescueMeal)
		if err != nil {
			return model.Order{}, err
		}
	}

	// Списание инвентаря с контролем остатка
	for mealID, qty := range sold {
		var soldNow int
		row := tx.QueryRowContext(ctx,
			"INSERT INTO inventory (meal_id, sold)"+
				" VALUES ($1, $2)"+
				" ON CONFLICT (meal_id) DO UPDATE SET sold = inventory.sold + EXCLUDED.sold"+
				" RETURNING sold",
			mealID, qty)
		if err = row.Scan(&soldNow); err != nil {
			return model.Order{}, err
		}
		if limit, ok := limits[mealID]; ok && soldNow > limit {
			return model.Order{}, ErrSoldOut
		}
	}

	// Начисление баллов
	for restaurant, delta := range points {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO restaurant_points (restaurant, points)"+
				" VALUES ($1, $2)"+
				" ON CONFLICT (restaurant) DO UPDATE SET points = restaurant_points.points + EXCLUDED.points",
			restaurant, delta)
		if err != nil {
			return model.Order{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return model.Order{}, err
	}

	return order, nil
}

func (store *store) orderByRequestID(ctx context.Context, requestID string) (model.Order, error) {
	row := store.database.QueryRowContext(ctx,
		"SELECT order_id FROM idempotency"+
			" WHERE request_id = $1",
		requestID)
	var orderID string
	if err := row.Scan(&orderID); err != nil {
		if err == sql.ErrNoRows {
			return model.Order{}, ErrNoRows
		}
		return model.Order{}, err
	}

	orders, err := store.GetOrders(ctx)
	if err != nil {
		return model.Order{}, err
	}
	for _, order := range orders {
		if order.ID == orderID {
			return order, nil
		}
	}
	return model.Order{}, ErrNoRows
}

func (store *store) GetOrders(ctx context.Context) ([]model.Order, error) {
	rows, err := store.database.QueryContext(ctx,
		"SELECT id, user_email, totals, created_at"+
			" FROM orders"+
			" ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []model.Order
	index := make(map[string]int)
	for rows.Next() {
		var order model.Order
		var totalsJSON []byte
		err := rows.Scan(&order.ID, &order.UserEmail, &totalsJSON, &order.Timestamp)
		if err != nil {
			return nil, err
		}
		if len(totalsJSON) > 0 {
			if err := json.Unmarshal(totalsJSON, &order.Totals); err != nil {
				return nil, err
			}
		}
		index[order.ID] = len(orders)
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	itemRows, err := store.database.QueryContext(ctx,
		"SELECT order_id, restaurant, meal, meal_id, price, quantity, is_rescue_meal"+
			" FROM order_items")
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var orderID string
		var item model.OrderItem
		err := itemRows.Scan(&orderID, &item.Restaurant, &item.Meal, &item.MealID,
			&item.Price, &item.Quantity, &item.IsRescueMeal)
		if err != nil {
			return nil, err
		}
		if i, ok := index[orderID]; ok {
			orders[i].Items = append(orders[i].Items, item)
		}
	}
	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}

func (store *store) GetPoints(ctx context.Context) (map[string]int, error) {
	rows, err := store.database.QueryContext(ctx,
		"SELECT restaurant, points FROM restaurant_points")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := make(map[string]int)
	for rows.Next() {
		var restaurant string
		var value int
		if err := rows.Scan(&restaurant, &value); err != nil {
			return nil, err
		}
		points[restaurant] = value
	}
	return points, rows.Err()
}

func (store *store) GetInventory(ctx context.Context) (map[string]int, error) {
	rows, err := store.database.QueryContext(ctx,
		"SELECT meal_id, sold FROM inventory")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	inventory := make(map[string]int)
	for rows.Next() {
		var mealID string
		var sold int
		if err := rows.Scan(&mealID, &sold); err != nil {
			return nil, err
		}
		inventory[mealID] = sold
	}
	return inventory, rows.Err()
}

func (store *store) GetReviews(ctx context.Context, restaurantID string) ([]model.Review, error) {
	rows, err := store.database.QueryContext(ctx,
		"SELECT id, restaurant_id, rating, comment, user_name, created_at"+
			" FROM reviews"+
			" WHERE restaurant_id = $1"+
			" ORDER BY created_at",
		restaurantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reviews []model.Review
	for rows.Next() {
		var review model.Review
		err := rows.Scan(&review.ID, &review.RestaurantID, &review.Rating,
			&review.Comment, &review.UserName, &review.CreatedAt)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, review)
	}
	return reviews, rows.Err()
}

func (store *store) AddReview(ctx context.Context, review model.Review) error {
	_, err := store.database.ExecContext(ctx,
		"INSERT INTO reviews (id, restaurant_id, rating, comment, user_name, created_at)"+
			" VALUES ($1, $2, $3, $4, $5, $6)",
		review.ID, review.RestaurantID, review.Rating,
		review.Comment, review.UserName, review.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (store *store) UserRegister(ctx context.Context, user model.User) error {
	_, err := store.database.ExecContext(ctx,
		"INSERT INTO users (email, name, password_hash, account_type)"+
			" VALUES ($1, $2, $3, $4)",
		user.Email, user.Name, user.PasswordHash, user.AccountType)
	if err != nil {
		// Проверка: уже существует
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (store *store) UserByEmail(ctx context.Context, email string) (model.User, error) {
	row := store.database.QueryRowContext(ctx,
		"SELECT email, name, password_hash, account_type FROM users"+
			" WHERE email = $1",
		email)
	var user model.User
	var accountType sql.NullString
	err := row.Scan(&user.Email, &user.Name, &user.PasswordHash, &accountType)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.User{}, ErrNoRows
		}
		return model.User{}, err
	}
	user.AccountType = accountType.String
	return user, nil
}

func (store *store) CountUsers(ctx context.Context) (int, error) {
	row := store.database.QueryRowContext(ctx, "SELECT COUNT(*) FROM users")
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
