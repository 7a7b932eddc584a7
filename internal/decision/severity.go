package decision

// Severity is the normalized predominant damage severity.
type Severity int

const (
	SeverityUnknown Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
)

// severitySynonyms is keyed by folded token (see Fold).
var severitySynonyms = map[string]Severity{
	"BAIXA":  SeverityLow,
	"BAIXO":  SeverityLow,
	"LOW":    SeverityLow,
	"B":      SeverityLow,
	"MEDIA":  SeverityMedium,
	"MEDIO":  SeverityMedium,
	"MEDIUM": SeverityMedium,
	"M":      SeverityMedium,
	"ALTA":   SeverityHigh,
	"ALTO":   SeverityHigh,
	"HIGH":   SeverityHigh,
	"A":      SeverityHigh,
}

// ParseSeverity normalizes a severity token through the synonym table.
// Unrecognized tokens yield SeverityUnknown.
func ParseSeverity(token string) Severity {
	if s, ok := severitySynonyms[Fold(token)]; ok {
		return s
	}
	return SeverityUnknown
}

// String returns the canonical English name.
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "Low"
	case SeverityMedium:
		return "Medium"
	case SeverityHigh:
		return "High"
	}
	return "Unknown"
}

// Label returns the portal's severity option text. Unknown severities are
// submitted as the lowest level, matching the recommendation fallback.
func (s Severity) Label() string {
	switch s {
	case SeverityMedium:
		return "Média"
	case SeverityHigh:
		return "Alta"
	}
	return "Baixa"
}
