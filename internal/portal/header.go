package portal

import (
	"bytes"
	"fmt"
	"text/template"
	"time"
)

// Narratives are the report's free-text blocks. Each is a text/template
// executed with the GroupPlan, so {{.Name}} is the group's display name.
type Narratives struct {
	ObjectiveNucleus    string
	ObjectiveProperty   string
	Diagnosis           string
	LessonsLearned      string
	FinalConsiderations string
}

// HeaderDefaults are the group-level values every report carries.
type HeaderDefaults struct {
	Requester      string
	Urgency        string
	OccurrenceType string
	// DateFormat is a Go time layout for the visit date.
	DateFormat string
	Narratives Narratives
}

// Validate parses every narrative template.
func (h HeaderDefaults) Validate() error {
	for name, src := range h.narrativeSources() {
		if _, err := template.New(name).Option("missingkey=error").Parse(src); err != nil {
			return fmt.Errorf("narrative %s: %w", name, err)
		}
	}
	return nil
}

func (h HeaderDefaults) narrativeSources() map[string]string {
	return map[string]string{
		"objective_nucleus":    h.Narratives.ObjectiveNucleus,
		"objective_property":   h.Narratives.ObjectiveProperty,
		"diagnosis":            h.Narratives.Diagnosis,
		"lessons_learned":      h.Narratives.LessonsLearned,
		"final_considerations": h.Narratives.FinalConsiderations,
	}
}

// headerValues pairs header fields with the values a plan gives them.
type headerValue struct {
	field Field
	value string
}

func (h HeaderDefaults) values(cat *Catalog, plan GroupPlan, now time.Time) ([]headerValue, error) {
	date := plan.VisitDate
	if date.IsZero() {
		date = now
	}
	layout := h.DateFormat
	if layout == "" {
		layout = "02/01/2006"
	}

	objective := h.Narratives.ObjectiveNucleus
	if plan.ByProperty {
		objective = h.Narratives.ObjectiveProperty
	}

	render := func(name, src string) (string, error) {
		if src == "" {
			return "", nil
		}
		t, err := template.New(name).Option("missingkey=error").Parse(src)
		if err != nil {
			return "", fmt.Errorf("narrative %s: %w", name, err)
		}
		var buf bytes.Buffer
		if err := t.Execute(&buf, plan); err != nil {
			return "", fmt.Errorf("narrative %s: %w", name, err)
		}
		return buf.String(), nil
	}

	texts := []struct {
		f    Field
		name string
		src  string
	}{
		{cat.Objective, "objective", objective},
		{cat.Diagnosis, "diagnosis", h.Narratives.Diagnosis},
		{cat.LessonsLearned, "lessons_learned", h.Narratives.LessonsLearned},
		{cat.FinalConsiderations, "final_considerations", h.Narratives.FinalConsiderations},
	}

	out := []headerValue{
		{cat.Requester, h.Requester},
		{cat.VisitDate, date.Format(layout)},
		{cat.Region, plan.Region},
		{cat.Urgency, h.Urgency},
		{cat.OccurrenceType, h.OccurrenceType},
	}
	for _, t := range texts {
		v, err := render(t.name, t.src)
		if err != nil {
			return nil, err
		}
		out = append(out, headerValue{t.f, v})
	}
	return out, nil
}
