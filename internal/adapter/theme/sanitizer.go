package theme

import (
	"log/slog"
	"regexp"

	"github.com/torqsys/tenantd/internal/adapter/metrics"
	"github.com/torqsys/tenantd/internal/domain"
)

// fallbackColor replaces any color value that fails validation.
const fallbackColor = "#000000"

// maxGradientStops bounds the gradient sequence length.
const maxGradientStops = 5

var (
	hexPattern = regexp.MustCompile(`^#([A-Fa-f0-9]{6}|[A-Fa-f0-9]{3})$`)
	rgbPattern = regexp.MustCompile(`^rgba?\(\s*\d+\s*,\s*\d+\s*,\s*\d+\s*(,\s*[\d.]+\s*)?\)$`)
)

// Sanitizer converts an untrusted tenant theme payload into a validated
// domain.Theme. Tenant administrators control the payload, so every color
// value is checked against two grammars (3/6-digit hex or rgb/rgba functional
// notation) before it may reach a published context. The transform is total:
// it never panics and never errors, worst case it returns the default theme.
type Sanitizer struct {
	logger  *slog.Logger
	metrics *metrics.ResolverMetrics
}

// NewSanitizer creates a sanitizer. metrics may be nil in tests.
func NewSanitizer(logger *slog.Logger, m *metrics.ResolverMetrics) *Sanitizer {
	return &Sanitizer{logger: logger, metrics: m}
}

// Sanitize validates and normalizes raw into a Theme. Absent or invalid
// fields fall back to built-in defaults; there is no path for an unvalidated
// string to land in a color field of the output.
func (s *Sanitizer) Sanitize(raw domain.RawTheme) domain.Theme {
	def := domain.DefaultTheme()
	if len(raw) == 0 {
		return def
	}

	return domain.Theme{
		Primary:      s.color("corPrimaria", raw["corPrimaria"]),
		Secondary:    s.color("corSecundaria", raw["corSecundaria"]),
		Background:   s.color("corFundo", raw["corFundo"]),
		Gradient:     s.gradient(raw["gradiente"], def.Gradient),
		BorderRadius: s.token(raw["borderRadius"], def.BorderRadius),
		Shadows:      s.shadows(raw["shadows"], def.Shadows),
	}
}

func (s *Sanitizer) color(field string, v any) string {
	str, ok := v.(string)
	if !ok || str == "" {
		return fallbackColor
	}
	if hexPattern.MatchString(str) || rgbPattern.MatchString(str) {
		return str
	}
	s.logger.Warn("rejected theme color value", "field", field, "value", str)
	if s.metrics != nil {
		s.metrics.ThemeRejected.WithLabelValues(field).Inc()
	}
	return fallbackColor
}

func (s *Sanitizer) gradient(v any, def []string) []string {
	list, ok := v.([]any)
	if !ok {
		if strs, ok := v.([]string); ok {
			list = make([]any, len(strs))
			for i, c := range strs {
				list[i] = c
			}
		} else {
			return def
		}
	}
	if len(list) > maxGradientStops {
		list = list[:maxGradientStops]
	}
	if len(list) == 0 {
		return def
	}
	out := make([]string, len(list))
	for i, stop := range list {
		out[i] = s.color("gradiente", stop)
	}
	return out
}

// token passes border-radius and shadow values through when present. These
// are applied downstream as computed style tokens rather than raw strings, so
// they are not held to the color grammars.
func (s *Sanitizer) token(v any, def string) string {
	str, ok := v.(string)
	if !ok || str == "" {
		return def
	}
	return str
}

func (s *Sanitizer) shadows(v any, def domain.ShadowSet) domain.ShadowSet {
	m, ok := v.(map[string]any)
	if !ok {
		return def
	}
	return domain.ShadowSet{
		SM: s.token(m["sm"], def.SM),
		MD: s.token(m["md"], def.MD),
		LG: s.token(m["lg"], def.LG),
		XL: s.token(m["xl"], def.XL),
	}
}
