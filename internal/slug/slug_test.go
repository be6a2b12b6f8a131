package slug

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMake(t *testing.T) {
	require.Equal(t, "eastside-deli", Make("Eastside Deli"))
	require.Equal(t, "triangle-bbq-co", Make("Triangle BBQ Co."))
	require.Equal(t, "greenbite-cafe-veggie-thali", MealID("GreenBite Cafe", "Veggie Thali"))
	require.Equal(t, "biscuits-gravy", Make("  Biscuits & Gravy  "))
	require.Equal(t, "", Make("---"))
	require.Equal(t, "", Make(""))
}

func TestMakeStable(t *testing.T) {
	// одинаковый ключ вне зависимости от регистра и пунктуации
	require.Equal(t, Make("Oak Street Bistro"), Make("oak street bistro"))
	require.Equal(t, MealID("Eastside Deli", "Chicken Salad Sandwich"),
		MealID("eastside  deli", "chicken salad sandwich"))
}
