package menu

import (
	"fmt"

	"github.com/tmc/langchaingo/prompts"

	"github.com/weeklymenu/weeklymenu/internal/model"
)

const (
	peopleCount    = 2
	minProteinGram = 10
)

const systemPrompt = `Tu es un assistant culinaire qui génère des menus en français. ` +
	`RETOURNE UNIQUEMENT un JSON valide, sans aucun texte hors JSON. ` +
	`Schéma attendu: {"dishes": [ { "title": str, "description": str, "time_minutes": int, "ingredients_for_two": [str, ...] }, ... (10 éléments) ] }`

var userPrompt = prompts.NewPromptTemplate(
	`Génère une liste de {{.count}} plats variés pour la semaine. `+
		`Pour CHAQUE plat, fournis: title, description, time_minutes (durée totale en minutes), `+
		`ingredients_for_two (liste d'ingrédients pour {{.people}} personnes). `+
		`Propose majoritairement des plats de saison. `+
		`Tous les plats doivent contenir suffisamment de protéines (minimum {{.protein}}g de protéine par personne). `+
		`Langue: français. Réponds STRICTEMENT en JSON conforme au schéma.`,
	[]string{"count", "people", "protein"},
)

// UserPrompt renders the fixed user instruction.
func UserPrompt() (string, error) {
	out, err := userPrompt.Format(map[string]any{
		"count":   model.MaxDishes,
		"people":  peopleCount,
		"protein": minProteinGram,
	})
	if err != nil {
		return "", fmt.Errorf("failed to format prompt: %w", err)
	}
	return out, nil
}

// SystemPrompt returns the fixed system instruction.
func SystemPrompt() string {
	return systemPrompt
}
