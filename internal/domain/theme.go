package domain

// RawTheme is the untrusted theme payload exactly as fetched from the tenant
// directory. It must not cross into a ResolvedContext without passing through
// the theme sanitizer.
type RawTheme map[string]any

// ShadowSet holds the four named shadow tokens.
type ShadowSet struct {
	SM string `json:"sm"`
	MD string `json:"md"`
	LG string `json:"lg"`
	XL string `json:"xl"`
}

// Theme is the sanitized presentation configuration. Every field is either a
// validated literal or a built-in default; there is no pass-through path for
// attacker-controlled free text in the color fields.
type Theme struct {
	Primary      string    `json:"corPrimaria"`
	Secondary    string    `json:"corSecundaria"`
	Background   string    `json:"corFundo"`
	Gradient     []string  `json:"gradiente"`
	BorderRadius string    `json:"borderRadius"`
	Shadows      ShadowSet `json:"shadows"`
}

// DefaultTheme returns the built-in platform theme, used for platform
// operators and as the fallback for tenants without a stored theme.
func DefaultTheme() Theme {
	return Theme{
		Primary:      "#F28C1D",
		Secondary:    "#007AFF",
		Background:   "#FFFFFF",
		Gradient:     []string{"#F28C1D", "#FF6B35", "#F28C1D"},
		BorderRadius: "12px",
		Shadows: ShadowSet{
			SM: "0 1px 2px 0 rgba(0, 0, 0, 0.05)",
			MD: "0 4px 6px -1px rgba(0, 0, 0, 0.1)",
			LG: "0 10px 15px -3px rgba(0, 0, 0, 0.1)",
			XL: "0 20px 25px -5px rgba(0, 0, 0, 0.1)",
		},
	}
}
