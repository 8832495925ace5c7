package models

// Ingredient is one line of an extracted recipe.
type Ingredient struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity,omitempty"`
	Unit     string  `json:"unit,omitempty"`
	Notes    string  `json:"notes,omitempty"`
}

// Recipe is the structured form of a free-text recipe.
type Recipe struct {
	Title       string       `json:"title"`
	Servings    int          `json:"servings,omitempty"`
	Ingredients []Ingredient `json:"ingredients"`
	Steps       []string     `json:"steps"`
}

type ExtractRecipeRequest struct {
	Text     string `json:"text" binding:"required"`
	Servings int    `json:"servings" binding:"omitempty,min=1,max=100"`
	Language string `json:"language" binding:"omitempty,max=32"`
}

type RecipeImageRequest struct {
	Title       string   `json:"title" binding:"required,max=200"`
	Description string   `json:"description" binding:"omitempty,max=1000"`
	Ingredients []string `json:"ingredients"`
}

type RecipeImageResponse struct {
	ImageURL      string `json:"image_url"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
}
