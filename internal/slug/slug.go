package slug

import "strings"

// Make строит устойчивый идентификатор из произвольной строки:
// нижний регистр, последовательности не-буквенно-цифровых символов
// сворачиваются в один дефис, дефисы по краям отбрасываются.
// Используется как ключ соединения меню и инвентаря.
func Make(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
		default:
			dash = true
		}
	}
	return b.String()
}

// MealID — ключ блюда: slug от "ресторан-блюдо"
func MealID(restaurant, meal string) string {
	return Make(restaurant + "-" + meal)
}
