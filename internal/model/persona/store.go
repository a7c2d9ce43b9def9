package persona

// Source exposes the persona currently in effect.
type Source interface {
	Current() Persona
}

// StaticSource always returns the same persona.
type StaticSource struct {
	item Persona
}

// NewStaticSource returns a StaticSource for item.
func NewStaticSource(item Persona) *StaticSource {
	return &StaticSource{item: item.withDefaults()}
}

// Current returns the configured persona.
func (s *StaticSource) Current() Persona {
	return s.item
}
