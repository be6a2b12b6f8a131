package fixtures

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/iurnickita/tiffintrails/internal/model"
)

// Имена CSV-файлов, как их пишет генератор данных
const (
	restaurantMetaFile = "Restaurant_Metadata.csv"
	rescueMealsFile    = "rescue_meals.csv"
	wasteLogFile       = "Raleigh_Food_Waste__1-week_sample_.csv"
)

// Set — статические данные, прочитанные один раз при старте.
// Отсутствующий файл даёт пустой срез, а не ошибку.
type Set struct {
	Restaurants []model.RestaurantMeta
	RescueMeals []model.RescueMeal
	WasteLogs   []model.WasteLog
}

func Load(dir string) (Set, error) {
	var set Set

	rows, err := readCSV(filepath.Join(dir, restaurantMetaFile))
	if err != nil {
		return Set{}, err
	}
	for _, row := range rows {
		name := strings.TrimSpace(row["restaurant"])
		if name == "" {
			name = strings.TrimSpace(row["name"])
		}
		if name == "" {
			continue
		}
		set.Restaurants = append(set.Restaurants, model.RestaurantMeta{
			Restaurant:     name,
			Cuisine:        row["cuisine"],
			Capacity:       atoi(row["capacity"]),
			SeatingType:    row["seating_type"],
			AvgDailyOrders: atoi(row["avg_daily_orders"]),
			ZipCode:        row["zip_code"],
		})
	}

	rows, err = readCSV(filepath.Join(dir, rescueMealsFile))
	if err != nil {
		return Set{}, err
	}
	for _, row := range rows {
		name := strings.TrimSpace(row["restaurant"])
		if name == "" {
			continue
		}
		set.RescueMeals = append(set.RescueMeals, model.RescueMeal{
			Restaurant:    name,
			MealName:      row["meal_name"],
			OriginalPrice: atof(row["original_price"]),
			RescuePrice:   atof(row["rescue_price"]),
			Quantity:      atoi(row["quantity"]),
			ExpiresIn:     row["expires_in"],
		})
	}

	rows, err = readCSV(filepath.Join(dir, wasteLogFile))
	if err != nil {
		return Set{}, err
	}
	for _, row := range rows {
		set.WasteLogs = append(set.WasteLogs, model.WasteLog{
			Restaurant: row["restaurant"],
			WasteType:  row["waste_type"],
			QuantityLb: atof(row["quantity_lb"]),
			Servings:   atoi(row["servings"]),
		})
	}

	return set, nil
}

// RestaurantNames — имена ресторанов для посева таблицы баллов
func (s Set) RestaurantNames() []string {
	names := make([]string, 0, len(s.Restaurants))
	for _, r := range s.Restaurants {
		names = append(names, r.Restaurant)
	}
	return names
}

// readCSV читает файл в набор map[колонка]значение.
// Нет файла — нет строк (поведение прежнего бэкенда).
func readCSV(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, err
	}

	var rows []map[string]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}

func atof(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}
