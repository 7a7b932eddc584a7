package decision

// DamageMap maps folded predominant-occurrence tokens to the portal's
// damage-type option text.
type DamageMap map[string]string

// DefaultDamageFallback is submitted when an occurrence has no mapping.
const DefaultDamageFallback = "Incêndio"

// DefaultDamageMap returns the occurrence table the portal offers.
func DefaultDamageMap() DamageMap {
	return DamageMap{
		"DEFICIT HIDRICO": "D. Hídrico",
		"INCENDIO":        "Incêndio",
		"VENDAVAL":        "Vendaval",
	}
}

// DamageLabel resolves an occurrence token. The bool reports whether the
// token was mapped; when false the fallback label is returned.
func DamageLabel(token string, m DamageMap, fallback string) (string, bool) {
	if fallback == "" {
		fallback = DefaultDamageFallback
	}
	key := Fold(token)
	for k, v := range m {
		if Fold(k) == key {
			return v, true
		}
	}
	return fallback, false
}
