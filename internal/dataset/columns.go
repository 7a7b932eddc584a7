package dataset

import (
	"fmt"
	"sort"
	"strings"

	"fenixrpa/internal/decision"
)

// Column is a logical column of the source table.
type Column string

const (
	ColID             Column = "id"
	ColPortalID       Column = "portal_id"
	ColGroup          Column = "group"
	ColRegion         Column = "region"
	ColProperty       Column = "property"
	ColAge            Column = "age"
	ColOccurrence     Column = "occurrence"
	ColSeverity       Column = "severity"
	ColIncidence      Column = "incidence"
	ColExisting       Column = "existing_report"
	ColRecommendation Column = "recommendation"
)

// requiredColumns must be present in every table.
var requiredColumns = []Column{
	ColID, ColGroup, ColAge, ColOccurrence, ColSeverity, ColIncidence, ColExisting,
}

// defaultAliases are the headers the field team exports use. Matching is
// done on folded text, so accents and case do not matter.
var defaultAliases = map[Column][]string{
	ColID:             {"UP", "Unidade Produtiva", "ID"},
	ColPortalID:       {"UP-C-R", "UP C R"},
	ColGroup:          {"Nucleo", "Núcleo", "Nucleus"},
	ColRegion:         {"UNF", "Regiao", "Região", "Region"},
	ColProperty:       {"Propriedade", "Fazenda", "Property"},
	ColAge:            {"Idade", "Age"},
	ColOccurrence:     {"Ocorrência Predominante", "Ocorrencia", "Ocorrência", "Tipo Dano"},
	ColSeverity:       {"Severidade Predominante", "Severidade", "Severity"},
	ColIncidence:      {"Incidencia", "Incidência", "Incidence"},
	ColExisting:       {"Laudo Existente", "Existing Report"},
	ColRecommendation: {"Recomendacao", "Recomendação", "Recommendation"},
}

// MissingColumnsError lists required columns no header matched.
type MissingColumnsError struct {
	Columns []Column
}

func (e *MissingColumnsError) Error() string {
	names := make([]string, len(e.Columns))
	for i, c := range e.Columns {
		names[i] = string(c)
	}
	return fmt.Sprintf("missing required columns: %s", strings.Join(names, ", "))
}

// Is lets errors.Is match ErrMissingColumns.
func (e *MissingColumnsError) Is(target error) bool {
	return target == ErrMissingColumns
}

// mapColumns assigns each logical column the first header matching one of
// its aliases. Extra aliases take precedence over the defaults.
func mapColumns(headers []string, extra map[string][]string) map[Column]int {
	folded := make(map[string]int, len(headers))
	for i, h := range headers {
		k := decision.Fold(h)
		if _, dup := folded[k]; !dup && k != "" {
			folded[k] = i
		}
	}

	cols := make(map[Column]int)
	for col, aliases := range defaultAliases {
		candidates := append(append([]string{}, extra[string(col)]...), aliases...)
		for _, a := range candidates {
			if idx, ok := folded[decision.Fold(a)]; ok {
				cols[col] = idx
				break
			}
		}
	}
	return cols
}

func missingRequired(cols map[Column]int, also ...Column) []Column {
	var missing []Column
	for _, c := range append(append([]Column{}, requiredColumns...), also...) {
		if _, ok := cols[c]; !ok {
			missing = append(missing, c)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	return missing
}
