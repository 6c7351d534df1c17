package tier

// UpsertTierRequest creates or replaces a tier definition.
type UpsertTierRequest struct {
	Name       string   `json:"name" validate:"required,min=2,max=100"`
	MinPoints  int      `json:"min_points" validate:"gte=0"`
	MaxPoints  *int     `json:"max_points,omitempty" validate:"omitempty,gte=0"`
	Multiplier float64  `json:"multiplier" validate:"gt=0"`
	Benefits   []string `json:"benefits,omitempty" validate:"omitempty,dive,min=1,max=200"`
	Active     *bool    `json:"active,omitempty"`
}
