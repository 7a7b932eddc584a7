package portal

import (
	"regexp"
	"strconv"
	"strings"

	"fenixrpa/internal/browser"
)

// Strategy is one way of finding a logical element. Templates may use
// {row} (0-based row index), {pos} (1-based row position) and {value}
// (quoted for the selector kind).
type Strategy struct {
	Name     string
	Kind     browser.SelectorKind
	Template string
	// Pattern is the JS text regex for browser.KindText, optionally in
	// /pattern/flags form; {value} is regex-quoted.
	Pattern string
}

// Render produces the concrete selector for a row and value.
func (s Strategy) Render(row int, value string) browser.Selector {
	r := strings.NewReplacer("{row}", strconv.Itoa(row), "{pos}", strconv.Itoa(row+1))
	q := r.Replace(s.Template)
	pattern := r.Replace(s.Pattern)

	switch s.Kind {
	case browser.KindXPath:
		q = strings.ReplaceAll(q, "{value}", xpathLiteral(value))
	case browser.KindText:
		q = strings.ReplaceAll(q, "{value}", cssString(value))
		pattern = strings.ReplaceAll(pattern, "{value}", regexp.QuoteMeta(value))
	default:
		q = strings.ReplaceAll(q, "{value}", cssString(value))
	}
	return browser.Selector{Kind: s.Kind, Query: q, Pattern: pattern}
}

// xpathLiteral quotes v for XPath 1.0, which has no escape sequences.
func xpathLiteral(v string) string {
	if !strings.Contains(v, `"`) {
		return `"` + v + `"`
	}
	if !strings.Contains(v, "'") {
		return "'" + v + "'"
	}
	parts := strings.Split(v, `"`)
	var b strings.Builder
	b.WriteString("concat(")
	for i, p := range parts {
		if i > 0 {
			b.WriteString(`, '"', `)
		}
		b.WriteString(`"` + p + `"`)
	}
	b.WriteString(")")
	return b.String()
}

func cssString(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	return `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
}

// FieldKind is how a field takes a value.
type FieldKind int

const (
	// TextField is an input or textarea.
	TextField FieldKind = iota
	// SearchSelect filters its options by typed text and may report "no match".
	SearchSelect
	// ChoiceSelect picks the option whose text equals the value.
	ChoiceSelect
	// FirstChoice picks whatever option comes first; the value is ignored.
	FirstChoice
)

func (k FieldKind) String() string {
	switch k {
	case SearchSelect:
		return "search"
	case ChoiceSelect:
		return "choice"
	case FirstChoice:
		return "first"
	}
	return "text"
}

// MatchMode is how a displayed value is compared with the intended one.
type MatchMode int

const (
	// MatchFolded compares case, accent and whitespace insensitively.
	MatchFolded MatchMode = iota
	// MatchContains accepts a display that contains the value.
	MatchContains
	// MatchNumeric compares as numbers within 0.01.
	MatchNumeric
	// MatchNonEmpty accepts any non-blank display.
	MatchNonEmpty
)

// Field is one logical form field.
type Field struct {
	Name    string
	Kind    FieldKind
	Match   MatchMode
	Control []Strategy
	// Display shows the committed value; empty means read the control.
	Display []Strategy
	// Clear resets the field.
	Clear []Strategy
}

// LoginCatalog locates the identity provider's sign-in steps.
type LoginCatalog struct {
	Start        []Strategy
	Email        []Strategy
	Next         []Strategy
	Password     []Strategy
	Submit       []Strategy
	StaySignedIn []Strategy
}

// Catalog declares every element the automation touches.
type Catalog struct {
	// Matrix row fields, in bind order.
	UnitID         Field
	DamageType     Field
	Occurrence     Field
	Incidence      Field
	Severity       Field
	Recommendation Field

	// Report header.
	Requester      Field
	VisitDate      Field
	Region         Field
	Urgency        Field
	OccurrenceType Field

	Objective           Field
	Diagnosis           Field
	LessonsLearned      Field
	FinalConsiderations Field

	// Open option lists.
	Option      []Strategy
	FirstOption []Strategy
	NoMatch     []Strategy

	AddRow []Strategy

	// Navigation.
	HomeMarker []Strategy
	UploadLink []Strategy
	FormMarker []Strategy

	// Finalization.
	Send      []Strategy
	Signature []Strategy
	Confirm   []Strategy

	Login LoginCatalog
}

const (
	formRoot = `//*[@id="__next"]/div[3]/div/div/div/div[2]/div/div/div/div/div[2]`
	rowScope = `(//fieldset//div[contains(@class, "flex") and contains(@class, "flex-col") and contains(@class, "lg:flex-row")])[{pos}]`
	ageScope = `//input[@name="sinistros[{row}].idade"]/ancestor::div[contains(@class, "flex-col") and contains(@class, "lg:flex-row")]`
)

func xp(name, q string) Strategy  { return Strategy{Name: name, Kind: browser.KindXPath, Template: q} }
func css(name, q string) Strategy { return Strategy{Name: name, Kind: browser.KindCSS, Template: q} }
func txt(name, q, pattern string) Strategy {
	return Strategy{Name: name, Kind: browser.KindText, Template: q, Pattern: pattern}
}

// rowPart locates the div of class part that follows label inside one matrix row.
func rowPart(label, part string) []Strategy {
	tail := `//span[contains(text(), "` + label + `")]/following::div[1]//div[contains(@class, "` + part + `")]`
	return []Strategy{
		xp("row-container", rowScope+tail),
		xp("age-anchor", ageScope+tail),
		xp("label-order", `(//*[contains(text(), "`+label+`")]/following::div[contains(@class, "`+part+`")])[{pos}]`),
	}
}

func rowSelect(name, label string, kind FieldKind, match MatchMode) Field {
	return Field{
		Name:    name,
		Kind:    kind,
		Match:   match,
		Control: rowPart(label, "control"),
		Display: rowPart(label, "singleValue"),
	}
}

// headerSelect locates a header dropdown by its label.
func headerSelect(name, label string, absolute string) Field {
	f := Field{
		Name:  name,
		Kind:  ChoiceSelect,
		Match: MatchFolded,
		Control: []Strategy{
			xp("label-span", `//span[contains(text(), "`+label+`")]/following::div[contains(@class, "control")][1]`),
			xp("label-tag", `//label[contains(text(), "`+label+`")]/following::div[contains(@class, "control")][1]`),
		},
		Display: []Strategy{
			xp("label-span", `//span[contains(text(), "`+label+`")]/following::div[contains(@class, "singleValue")][1]`),
		},
	}
	if absolute != "" {
		f.Control = append([]Strategy{xp("absolute", absolute)}, f.Control...)
	}
	return f
}

func textarea(name, attr string) Field {
	return Field{
		Name:  name,
		Kind:  TextField,
		Match: MatchFolded,
		Control: []Strategy{
			css("name", `textarea[name="`+attr+`"]`),
			xp("name", `//textarea[@name="`+attr+`"]`),
		},
	}
}

// DefaultCatalog returns the strategies known to work against the portal.
func DefaultCatalog() *Catalog {
	c := &Catalog{
		UnitID:         rowSelect("unit_id", "UP avaliada:", SearchSelect, MatchContains),
		DamageType:     rowSelect("damage_type", "Tipo Dano:", ChoiceSelect, MatchFolded),
		Occurrence:     rowSelect("occurrence", "Ocorrência na UP:", FirstChoice, MatchNonEmpty),
		Severity:       rowSelect("severity", "Severidade:", ChoiceSelect, MatchFolded),
		Recommendation: rowSelect("recommendation", "Recomendaçao:", ChoiceSelect, MatchFolded),
		Incidence: Field{
			Name:  "incidence",
			Kind:  TextField,
			Match: MatchNumeric,
			Control: []Strategy{
				xp("row-container", rowScope+`//span[contains(text(), "Recomendação(%)")]/following::div[1]//input`),
				xp("age-anchor", ageScope+`//span[contains(text(), "Recomendação(%)")]/following::div[1]//input`),
				xp("label-order", `(//*[contains(text(), "Recomendação(%)")]/following::input)[{pos}]`),
			},
		},

		Requester: Field{
			Name:  "requester",
			Kind:  TextField,
			Match: MatchFolded,
			Control: []Strategy{
				xp("absolute", formRoot+`/div/div/form/div[1]/div[1]/div/div/div[1]/div/div/input`),
				xp("label", `//span[contains(text(), "Solicitante")]/following::input[1]`),
			},
		},
		VisitDate: Field{
			Name:  "visit_date",
			Kind:  TextField,
			Match: MatchFolded,
			Control: []Strategy{
				css("placeholder", `input[placeholder="Data da visita de campo"]`),
				xp("absolute", formRoot+`/div/div/form/div[1]/div[1]/div/div/div[2]/div[2]/div/div/div/input`),
			},
		},
		Region: headerSelect("region", "UNF", ""),
		Urgency: headerSelect("urgency", "Urgência",
			formRoot+`/div/div/form/div[1]/div[1]/div/div/div[6]/div[1]/div/div/div`),
		OccurrenceType: headerSelect("occurrence_type", "Tipo de Ocorrência",
			formRoot+`/div/div/form/div[1]/div[1]/div/div/div[6]/div[2]/div/div/div`),

		Objective:           textarea("objective", "objetivo"),
		Diagnosis:           textarea("diagnosis", "diagnostico"),
		LessonsLearned:      textarea("lessons_learned", "licoesAprendidas"),
		FinalConsiderations: textarea("final_considerations", "consideracoesFinais"),

		Option: []Strategy{
			xp("open-menu", `//div[contains(@class, "menu") and @aria-hidden="false"]//div[contains(@class, "option") and normalize-space(text())={value}]`),
			xp("last-menu", `(//div[contains(@class, "menu")])[last()]//div[contains(@class, "option") and normalize-space(text())={value}]`),
			xp("role", `//div[@role="option" and normalize-space(text())={value}]`),
			xp("enabled", `//div[contains(@class, "option") and normalize-space(text())={value} and not(contains(@class, "disabled"))]`),
		},
		FirstOption: []Strategy{
			xp("open-menu", `//div[contains(@class, "menu") and @aria-hidden="false"]//div[contains(@class, "option")][1]`),
			xp("last-menu", `(//div[contains(@class, "menu")])[last()]//div[contains(@class, "option")][1]`),
			xp("role", `//div[@role="option"][1]`),
			xp("menu-list", `//div[contains(@class, "menuList")]/div[contains(@class, "option")][1]`),
		},
		NoMatch: []Strategy{
			txt("notice", `div`, `^\s*(Nenhum [Rr]esultado|No results)`),
			xp("option", `//div[contains(@class, "option") and contains(text(), "Nenhum")]`),
		},

		AddRow: []Strategy{
			css("aria-label", `button[aria-label="Adicionar linha da Matriz de decisão"]`),
			xp("absolute", formRoot+`/div/div/form/div[2]/div/div[3]/button`),
			xp("icon", `//button[.//svg[@stroke="currentColor" and @fill="currentColor" and contains(@viewBox, "0 0 1024 1024")]]`),
		},

		HomeMarker: []Strategy{
			txt("button-text", "button", "Submissão de Laudos"),
			xp("contains", `//*[contains(text(), "Submissão de Laudos")]`),
		},
		UploadLink: []Strategy{
			xp("link", `//a[contains(text(), "Upload de Laudos")]`),
			xp("any", `//*[contains(text(), "Upload de Laudos")]`),
		},
		FormMarker: []Strategy{
			css("objective", `textarea[name="objetivo"]`),
			xp("matrix", `//*[contains(text(), "UP avaliada:")]`),
		},

		Send: []Strategy{
			xp("absolute", formRoot+`/div/div/form/div[3]/button`),
			txt("button-text", "button", `^\s*Enviar\s*$`),
		},
		Signature: []Strategy{
			xp("absolute", formRoot+`/button/div/div/div[1]`),
			txt("button-text", "button", "Assinatura Funcional"),
			xp("contains", `//*[contains(text(), "Assinatura Funcional")]`),
		},
		Confirm: []Strategy{
			xp("absolute", formRoot+`/div[2]/button`),
			txt("button-text", "button", `^\s*Confirmar\s*$`),
		},

		Login: LoginCatalog{
			Start: []Strategy{
				xp("absolute", `//*[@id="__next"]/div[1]/div[2]/button`),
				txt("button-text", "button", "/entrar|login/i"),
			},
			Email: []Strategy{
				css("loginfmt", `input[name="loginfmt"]`),
				css("type", `input[type="email"]`),
			},
			Next: []Strategy{
				css("submit", `input[type="submit"]`),
				css("id", `#idSIButton9`),
			},
			Password: []Strategy{
				css("id", `#i0118`),
				css("type", `input[type="password"]`),
			},
			Submit: []Strategy{
				css("id", `#idSIButton9`),
				css("submit", `input[type="submit"]`),
			},
			StaySignedIn: []Strategy{
				css("id", `#idSIButton9`),
			},
		},
	}

	c.UnitID.Clear = []Strategy{
		xp("row-container", rowScope+`//span[contains(text(), "UP avaliada:")]/following::div[1]//div[contains(@aria-label, "clear")]`),
		xp("age-anchor", ageScope+`//span[contains(text(), "UP avaliada:")]/following::div[1]//div[contains(@aria-label, "clear")]`),
		xp("indicator", rowScope+`//span[contains(text(), "UP avaliada:")]/following::div[1]//div[contains(@class, "clearIndicator")]`),
	}
	return c
}

// RowFields returns the matrix row fields in bind order.
func (c *Catalog) RowFields() []Field {
	return []Field{c.UnitID, c.DamageType, c.Occurrence, c.Incidence, c.Severity, c.Recommendation}
}
