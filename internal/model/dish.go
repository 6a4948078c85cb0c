package model

import (
	"fmt"
	"strings"
)

// MaxDishes is the number of dishes a menu carries at most
const MaxDishes = 10

// Dish is one menu suggestion as returned by the model. TimeMinutes and
// Ingredients keep whatever shape the model produced when it does not match
// the expected int / list of strings.
type Dish struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	TimeMinutes any    `json:"time_minutes,omitempty"`
	Ingredients any    `json:"ingredients_for_two,omitempty"`

	// HasTitle is false when the model omitted the title
	HasTitle bool `json:"-"`
}

// DisplayTitle returns the title, or "Plat {index}" when it is missing.
// index is 1-based.
func (d Dish) DisplayTitle(index int) string {
	if !d.HasTitle {
		return fmt.Sprintf("Plat %d", index)
	}
	return d.Title
}

// Duration renders TimeMinutes for display, "" when absent.
func (d Dish) Duration() string {
	if d.TimeMinutes == nil {
		return ""
	}
	return Stringify(d.TimeMinutes)
}

// IngredientList returns the ingredients as strings. ok is false when the
// model did not return a list, in which case the caller should fall back to
// Stringify(d.Ingredients).
func (d Dish) IngredientList() (items []string, ok bool) {
	switch v := d.Ingredients.(type) {
	case nil:
		return nil, true
	case []string:
		return v, true
	case []any:
		items = make([]string, 0, len(v))
		for _, item := range v {
			items = append(items, Stringify(item))
		}
		return items, true
	default:
		return nil, false
	}
}

// IngredientsText joins the ingredient list with ", ", or stringifies the raw
// value when it is not a list.
func (d Dish) IngredientsText() string {
	items, ok := d.IngredientList()
	if !ok {
		return Stringify(d.Ingredients)
	}
	return strings.Join(items, ", ")
}

// Stringify renders a decoded JSON value the way it should appear in an email.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	default:
		return fmt.Sprint(t)
	}
}

// Menu is the validated output of one generator call
type Menu struct {
	Dishes []Dish `json:"dishes"`
}

// Truncate caps the menu at MaxDishes entries, keeping order.
func (m *Menu) Truncate() {
	if len(m.Dishes) > MaxDishes {
		m.Dishes = m.Dishes[:MaxDishes]
	}
}
