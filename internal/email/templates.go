package email

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/weeklymenu/weeklymenu/internal/model"
)

const (
	menuSubject = "Menu de la semaine — 10 idées de plats pour 2 personnes"
	menuIntro   = "Voici 10 idées de plats pour 2 personnes"
)

// MenuSubject returns the subject line. It does not depend on the dishes.
func MenuSubject(dishes []model.Dish) string {
	return menuSubject
}

// MenuEmailText returns the plain-text body: one numbered block per dish.
func MenuEmailText(dishes []model.Dish) string {
	lines := make([]string, 0, len(dishes)+1)
	lines = append(lines, menuIntro+":\n")
	for i, d := range dishes {
		n := i + 1
		lines = append(lines, fmt.Sprintf(
			"%d. %s\n   - Description: %s\n   - Durée: %s min\n   - Ingrédients (x2): %s\n",
			n, d.DisplayTitle(n), d.Description, d.Duration(), d.IngredientsText(),
		))
	}
	return strings.Join(lines, "\n")
}

var menuHTML = template.Must(template.New("menu").Parse(`<!DOCTYPE html>
<html lang="fr">
<head>
<meta charset="UTF-8">
<title>Menu de la semaine</title>
</head>
<body>
<p>{{.Intro}} :</p>
<ol>
{{- range .Items}}
  <li style="margin-bottom:12px;">
    <strong>{{.Index}}. {{.Title}}</strong><br/>
    <em>{{.Description}}</em><br/>
    <span>Durée: {{.Duration}} min</span>
    <ul>{{range .Ingredients}}<li>{{.}}</li>{{end}}</ul>
  </li>
{{- end}}
</ol>
<p style="color:#777;font-size:12px;">Envoi automatique hebdomadaire.</p>
</body>
</html>
`))

type htmlItem struct {
	Index       int
	Title       string
	Description string
	Duration    string
	Ingredients []string
}

// MenuEmailHTML returns the HTML body: an ordered list of dishes with their
// ingredients nested as an unordered list. Dish text is HTML-escaped.
func MenuEmailHTML(dishes []model.Dish) string {
	items := make([]htmlItem, 0, len(dishes))
	for i, d := range dishes {
		n := i + 1
		ings, ok := d.IngredientList()
		if !ok {
			ings = []string{model.Stringify(d.Ingredients)}
		}
		items = append(items, htmlItem{
			Index:       n,
			Title:       d.DisplayTitle(n),
			Description: d.Description,
			Duration:    d.Duration(),
			Ingredients: ings,
		})
	}

	var b strings.Builder
	// strings.Builder never fails and the template only ranges over plain data
	_ = menuHTML.Execute(&b, struct {
		Intro string
		Items []htmlItem
	}{Intro: menuIntro, Items: items})
	return b.String()
}
