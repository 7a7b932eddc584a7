package decision

import "fmt"

// Category is the recommendation outcome for one evaluated record.
type Category int

const (
	MaintainCycle Category = iota
	Reevaluate
	AcceleratedHarvest
	PartialAcceleratedHarvest
	AreaClearing
	PartialAreaClearing
)

var categoryNames = [...]string{
	MaintainCycle:             "MaintainCycle",
	Reevaluate:                "Reevaluate",
	AcceleratedHarvest:        "AcceleratedHarvest",
	PartialAcceleratedHarvest: "PartialAcceleratedHarvest",
	AreaClearing:              "AreaClearing",
	PartialAreaClearing:       "PartialAreaClearing",
}

// portalLabels are the option texts the portal's recommendation selector shows.
var portalLabels = [...]string{
	MaintainCycle:             "Manter Ciclo",
	Reevaluate:                "Reavaliar",
	AcceleratedHarvest:        "Antecipar Colheita",
	PartialAcceleratedHarvest: "Antecipar Colheita Parcial",
	AreaClearing:              "Limpeza de Área",
	PartialAreaClearing:       "Limpeza de Área Parcial",
}

func (c Category) valid() bool {
	return c >= MaintainCycle && c <= PartialAreaClearing
}

// String returns the category identifier.
func (c Category) String() string {
	if !c.valid() {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return categoryNames[c]
}

// Label returns the option text shown by the portal for this category.
func (c Category) Label() string {
	if !c.valid() {
		return portalLabels[MaintainCycle]
	}
	return portalLabels[c]
}

// ParseCategory maps either an identifier ("AreaClearing") or a portal label
// ("Limpeza de Área") back to a Category. Matching is accent and case tolerant.
func ParseCategory(s string) (Category, bool) {
	key := Fold(s)
	if key == "" {
		return MaintainCycle, false
	}
	for i := range categoryNames {
		if Fold(categoryNames[i]) == key || Fold(portalLabels[i]) == key {
			return Category(i), true
		}
	}
	return MaintainCycle, false
}
