package menu

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/weeklymenu/weeklymenu/internal/apperr"
	"github.com/weeklymenu/weeklymenu/internal/model"
)

// ExtractJSON strips a Markdown code fence around the model's answer. When
// the text starts with a fence, the span from the first '{' to the last '}'
// is returned; otherwise the trimmed text is returned as is.
func ExtractJSON(text string) string {
	text = strings.TrimSpace(text)
	if text == "" || !strings.HasPrefix(text, "```") {
		return text
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start != -1 && end > start {
		return text[start : end+1]
	}
	return text
}

// ParseMenu decodes a sanitized model answer into a menu capped at
// model.MaxDishes dishes.
func ParseMenu(content string) (*model.Menu, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(content)))
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, apperr.Parse("model response is not a JSON object", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, apperr.Parse("unexpected content after JSON object", nil)
	}

	raw, present := doc["dishes"]
	if !present {
		return nil, apperr.Parse("model response has no 'dishes' field", nil)
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, apperr.Parse("'dishes' is not a list", nil)
	}
	if len(list) == 0 {
		return nil, apperr.Parse("'dishes' is empty", nil)
	}

	if len(list) > model.MaxDishes {
		list = list[:model.MaxDishes]
	}

	menu := &model.Menu{Dishes: make([]model.Dish, 0, len(list))}
	for _, entry := range list {
		menu.Dishes = append(menu.Dishes, decodeDish(entry))
	}
	return menu, nil
}

func decodeDish(entry any) model.Dish {
	obj, ok := entry.(map[string]any)
	if !ok {
		// keep the slot so numbering stays aligned with the model's output
		return model.Dish{}
	}

	var d model.Dish
	if v, ok := obj["title"]; ok && v != nil {
		d.Title = model.Stringify(v)
		d.HasTitle = true
	}
	if v, ok := obj["description"]; ok && v != nil {
		d.Description = model.Stringify(v)
	}
	if v, ok := obj["time_minutes"]; ok {
		d.TimeMinutes = CoerceMinutes(v)
	}
	if v, ok := obj["ingredients_for_two"]; ok {
		d.Ingredients = v
	}
	return d
}

// CoerceMinutes converts v to an int when it is a number or a numeric
// string. Anything else is returned unchanged.
func CoerceMinutes(v any) any {
	switch t := v.(type) {
	case int:
		return t
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return int(i)
		}
		if f, err := t.Float64(); err == nil {
			if i, ok := truncate(f); ok {
				return i
			}
		}
		return v
	case float64:
		if i, ok := truncate(t); ok {
			return i
		}
		return v
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return i
		}
		return v
	default:
		return v
	}
}

// truncate converts f toward zero when the result fits in an int
func truncate(f float64) (int, bool) {
	if math.IsNaN(f) || f >= math.MaxInt || f < math.MinInt {
		return 0, false
	}
	return int(f), true
}
