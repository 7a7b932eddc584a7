package config

// DataConfig describes the source table.
type DataConfig struct {
	// Sheet to read from a workbook; empty means the first sheet.
	Sheet string `yaml:"sheet"`
	// Columns adds header aliases per logical column (id, group, region,
	// age, occurrence, severity, incidence, existing_report,
	// recommendation, property).
	Columns map[string][]string `yaml:"columns"`
	// FlagYes/FlagNo are the existing-report flag values.
	FlagYes string `yaml:"flag_yes"`
	FlagNo  string `yaml:"flag_no"`
	// SkipExisting leaves rows already flagged FlagYes out of a run.
	SkipExisting bool `yaml:"skip_existing"`
	// GroupBy is nucleus or property.
	GroupBy string `yaml:"group_by"`
}

// DefaultDataConfig returns the sheet conventions of the field team export.
func DefaultDataConfig() DataConfig {
	return DataConfig{
		FlagYes:      "SIM",
		FlagNo:       "NÃO",
		SkipExisting: true,
		GroupBy:      "nucleus",
	}
}
