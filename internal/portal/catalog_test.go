package portal

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"fenixrpa/internal/browser"
)

func TestStrategyRender(t *testing.T) {
	tests := []struct {
		name    string
		s       Strategy
		row     int
		value   string
		query   string
		pattern string
	}{
		{
			name:  "row and position",
			s:     xp("x", `//input[@name="sinistros[{row}].idade"]/following::div[{pos}]`),
			row:   2,
			query: `//input[@name="sinistros[2].idade"]/following::div[3]`,
		},
		{
			name:  "xpath value",
			s:     xp("x", `//div[text()={value}]`),
			value: "Média",
			query: `//div[text()="Média"]`,
		},
		{
			name:  "xpath value with double quote",
			s:     xp("x", `//div[text()={value}]`),
			value: `12" pol`,
			query: `//div[text()='12" pol']`,
		},
		{
			name:  "css value escaped",
			s:     css("c", `div[title={value}]`),
			value: `a"b`,
			query: `div[title="a\"b"]`,
		},
		{
			name:    "text pattern quoted",
			s:       txt("t", "div", `^{value}$`),
			value:   "D. Hídrico",
			query:   "div",
			pattern: `^D\. Hídrico$`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := tt.s.Render(tt.row, tt.value)
			assert.Equal(t, tt.s.Kind, sel.Kind)
			assert.Equal(t, tt.query, sel.Query)
			assert.Equal(t, tt.pattern, sel.Pattern)
		})
	}
}

func TestXPathLiteralBothQuotes(t *testing.T) {
	got := xpathLiteral(`a"b'c`)
	assert.Equal(t, `concat("a", '"', "b'c")`, got)
}

func TestDefaultCatalogComplete(t *testing.T) {
	c := DefaultCatalog()

	fields := append(c.RowFields(), c.Requester, c.VisitDate, c.Region, c.Urgency, c.OccurrenceType,
		c.Objective, c.Diagnosis, c.LessonsLearned, c.FinalConsiderations)
	for _, f := range fields {
		assert.NotEmpty(t, f.Name)
		assert.NotEmpty(t, f.Control, "%s has no control strategies", f.Name)
	}
	assert.NotEmpty(t, c.UnitID.Clear)

	lists := map[string][]Strategy{
		"option": c.Option, "first_option": c.FirstOption, "no_match": c.NoMatch,
		"add_row": c.AddRow, "home": c.HomeMarker, "upload": c.UploadLink, "form": c.FormMarker,
		"send": c.Send, "signature": c.Signature, "confirm": c.Confirm,
		"login.start": c.Login.Start, "login.email": c.Login.Email, "login.password": c.Login.Password,
	}
	for name, l := range lists {
		assert.NotEmpty(t, l, name)
	}

	// Row strategies must differ per row.
	for _, st := range c.UnitID.Control {
		assert.NotEqual(t, st.Render(0, "").Query, st.Render(1, "").Query, st.Name)
	}
	for _, st := range c.Option {
		assert.True(t, strings.Contains(st.Render(0, "Alta").Query, `"Alta"`), st.Name)
	}
}

func TestRowFieldsOrder(t *testing.T) {
	var names []string
	for _, f := range DefaultCatalog().RowFields() {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"unit_id", "damage_type", "occurrence", "incidence", "severity", "recommendation"}, names)
	assert.Equal(t, browser.KindXPath, DefaultCatalog().UnitID.Control[0].Kind)
}
