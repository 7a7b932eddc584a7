package portal

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"fenixrpa/internal/browser"
	"fenixrpa/internal/decision"
)

// The fake form models the portal's react-select matrix closely enough to
// exercise the bind protocol. Elements are addressed by the CSS query of the
// test catalog: "ctl:<field>:<row>", "val:<field>:<row>", `opt:"<text>"`.

var fakeFieldKinds = map[string]FieldKind{
	"unit":           SearchSelect,
	"damage":         ChoiceSelect,
	"occurrence":     FirstChoice,
	"incidence":      TextField,
	"severity":       ChoiceSelect,
	"recommendation": ChoiceSelect,

	"requester": TextField,
	"date":      TextField,
	"region":    ChoiceSelect,
	"urgency":   ChoiceSelect,
	"type":      ChoiceSelect,
	"objective": TextField,
	"diagnosis": TextField,
	"lessons":   TextField,
	"final":     TextField,
}

var fakeRowFields = map[string]bool{
	"unit": true, "damage": true, "occurrence": true,
	"incidence": true, "severity": true, "recommendation": true,
}

type fakeForm struct {
	known  []string
	rows   int
	values map[string]string

	openField string
	openRow   int
	filter    string

	loggedIn    bool
	onForm      bool
	finalStage  int
	sent        int
	stayPending bool

	user, password       string
	typedUser, typedPass string
	homeChecks           int
	loginAfterChecks     int

	missing        map[string]int
	dropSets       map[string]int
	hidden         map[string]bool
	healthFailures int

	url         string
	reloads     int
	navigations int
	events      []string
}

func newFakeForm(known ...string) *fakeForm {
	return &fakeForm{
		known:    known,
		values:   make(map[string]string),
		missing:  make(map[string]int),
		dropSets: make(map[string]int),
		hidden:   make(map[string]bool),
	}
}

// showForm puts the fake directly on an empty report form.
func (f *fakeForm) showForm() *fakeForm {
	f.loggedIn = true
	f.onForm = true
	f.rows = 1
	return f
}

func (f *fakeForm) value(field string, row int) string {
	return f.values[field+":"+strconv.Itoa(row)]
}

func (f *fakeForm) options(field string) []string {
	switch field {
	case "unit":
		return f.known
	case "damage":
		return []string{"D. Hídrico", "Incêndio", "Vendaval"}
	case "occurrence":
		return []string{"Reboleira", "Total"}
	case "severity", "urgency":
		return []string{"Baixa", "Média", "Alta"}
	case "recommendation":
		out := make([]string, 0, 6)
		for c := decision.MaintainCycle; c <= decision.PartialAreaClearing; c++ {
			out = append(out, c.Label())
		}
		return out
	case "region":
		return []string{"CS", "NE", "RGD", "TM"}
	case "type":
		return []string{"Sinistro"}
	}
	return nil
}

func (f *fakeForm) visibleOptions() []string {
	if f.openField == "" {
		return nil
	}
	opts := f.options(f.openField)
	if f.filter == "" {
		return opts
	}
	var out []string
	want := decision.Fold(f.filter)
	for _, o := range opts {
		if strings.Contains(decision.Fold(o), want) {
			out = append(out, o)
		}
	}
	return out
}

func parseKey(q string) (prefix, field string, row int) {
	parts := strings.SplitN(q, ":", 3)
	prefix = parts[0]
	if len(parts) > 1 {
		field = parts[1]
	}
	if len(parts) > 2 {
		row, _ = strconv.Atoi(parts[2])
	}
	return prefix, field, row
}

func (f *fakeForm) hasField(field string, row int) bool {
	if _, ok := fakeFieldKinds[field]; !ok || !f.onForm {
		return false
	}
	if fakeRowFields[field] {
		return row >= 0 && row < f.rows
	}
	return row == 0
}

func (f *fakeForm) exists(q string) bool {
	prefix, field, row := parseKey(q)
	switch prefix {
	case "ctl":
		return f.hasField(field, row)
	case "val", "clr":
		return f.hasField(field, row) && f.value(field, row) != ""
	case "opt":
		opts := f.visibleOptions()
		if q == "opt:first" {
			return len(opts) > 0
		}
		v, err := strconv.Unquote(strings.TrimPrefix(q, "opt:"))
		if err != nil {
			return false
		}
		for _, o := range opts {
			if o == v {
				return true
			}
		}
		return false
	case "nomatch":
		return fakeFieldKinds[f.openField] == SearchSelect && f.filter != "" && len(f.visibleOptions()) == 0
	case "addrow", "btn":
		if !f.onForm {
			return false
		}
		switch q {
		case "btn:signature":
			return f.finalStage >= 1
		case "btn:confirm":
			return f.finalStage >= 2
		}
		return true
	case "marker":
		switch field {
		case "home":
			f.homeChecks++
			if !f.loggedIn && f.loginAfterChecks > 0 && f.homeChecks >= f.loginAfterChecks {
				f.loggedIn = true
			}
			return f.loggedIn
		case "form":
			return f.onForm
		}
	case "link":
		return f.loggedIn && !f.onForm
	case "login":
		if field == "stay" {
			return f.loggedIn && f.stayPending
		}
		return !f.loggedIn
	}
	return false
}

func (f *fakeForm) set(field string, row int, v string) {
	if f.dropSets[field] > 0 {
		f.dropSets[field]--
		return
	}
	f.values[field+":"+strconv.Itoa(row)] = v
}

func (f *fakeForm) close() {
	f.openField = ""
	f.filter = ""
}

func (f *fakeForm) count(event string) int {
	n := 0
	for _, e := range f.events {
		if e == event {
			n++
		}
	}
	return n
}

type fakeElement struct {
	f   *fakeForm
	key string
}

func (e *fakeElement) Click() error {
	f := e.f
	prefix, field, row := parseKey(e.key)
	switch prefix {
	case "ctl":
		if fakeFieldKinds[field] != TextField {
			f.openField, f.openRow, f.filter = field, row, ""
		}
	case "opt":
		if f.openField == "" {
			return errors.New("no menu open")
		}
		var v string
		if e.key == "opt:first" {
			v = f.visibleOptions()[0]
		} else {
			v, _ = strconv.Unquote(strings.TrimPrefix(e.key, "opt:"))
		}
		f.set(f.openField, f.openRow, v)
		f.close()
	case "clr":
		delete(f.values, field+":"+strconv.Itoa(row))
	case "addrow":
		f.rows++
	case "link":
		f.onForm = true
		f.rows = 1
		f.values = make(map[string]string)
		f.finalStage = 0
	case "btn":
		switch field {
		case "send":
			f.finalStage = 1
		case "signature":
			f.finalStage = 2
		case "confirm":
			f.finalStage = 0
			f.onForm = false
			f.sent++
		}
	case "login":
		if field == "stay" {
			f.stayPending = false
		}
	}
	f.events = append(f.events, "click:"+e.key)
	return nil
}

func (e *fakeElement) Visible() (bool, error) { return !e.f.hidden[e.key], nil }

func (e *fakeElement) Text() (string, error) {
	_, field, row := parseKey(e.key)
	return e.f.value(field, row), nil
}

func (e *fakeElement) Value() (string, error) { return e.Text() }

func (e *fakeElement) Input(text string) error {
	f := e.f
	prefix, field, row := parseKey(e.key)
	switch {
	case prefix == "ctl":
		f.set(field, row, text)
	case e.key == "login:email":
		f.typedUser = text
	case e.key == "login:password":
		f.typedPass = text
	default:
		return errors.New("not an input")
	}
	return nil
}

func (e *fakeElement) ScrollIntoView() error { return nil }

type fakeSurface struct {
	f      *fakeForm
	closed bool
}

func (s *fakeSurface) Find(ctx context.Context, sel browser.Selector, _ time.Duration) (browser.Element, error) {
	if s.closed {
		return nil, errors.New("page closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := sel.Query
	if n := s.f.missing[q]; n > 0 {
		s.f.missing[q] = n - 1
		return nil, browser.ErrNoElement
	}
	if !s.f.exists(q) {
		return nil, browser.ErrNoElement
	}
	return &fakeElement{f: s.f, key: q}, nil
}

func (s *fakeSurface) Press(_ context.Context, keys ...browser.Key) error {
	f := s.f
	for _, k := range keys {
		switch k {
		case browser.KeyEscape:
			f.close()
		case browser.KeyBackspace:
			if f.openField != "" {
				delete(f.values, f.openField+":"+strconv.Itoa(f.openRow))
			}
		case browser.KeyEnter:
			if !f.loggedIn && f.typedPass != "" && f.typedUser == f.user && f.typedPass == f.password {
				f.loggedIn = true
				f.stayPending = true
			}
		}
	}
	return nil
}

func (s *fakeSurface) InsertText(_ context.Context, text string) error {
	if s.f.openField != "" {
		s.f.filter += text
	}
	s.f.events = append(s.f.events, "type:"+text)
	return nil
}

func (s *fakeSurface) Navigate(_ context.Context, url string) error {
	s.f.navigations++
	s.f.url = url
	s.f.onForm = false
	return nil
}

func (s *fakeSurface) Reload(context.Context) error {
	s.f.reloads++
	s.f.onForm = false
	return nil
}

func (s *fakeSurface) Eval(context.Context, string) (string, error) {
	if s.closed {
		return "", errors.New("page closed")
	}
	if s.f.healthFailures > 0 {
		s.f.healthFailures--
		return "", errors.New("target crashed")
	}
	return "Fênix", nil
}

func (s *fakeSurface) URL(context.Context) (string, error) { return s.f.url, nil }

func (s *fakeSurface) HTML(context.Context) (string, error) {
	return `<html><head><title>Fênix</title></head><body><form>` +
		`<textarea name="objetivo">Avaliar</textarea></form></body></html>`, nil
}

func (s *fakeSurface) Close() error {
	s.closed = true
	return nil
}

type fakeDriver struct {
	f        *fakeForm
	starts   int
	closes   int
	pages    int
	startErr error
}

func (d *fakeDriver) Start(context.Context) error {
	d.starts++
	return d.startErr
}

func (d *fakeDriver) NewSurface(_ context.Context, url string) (browser.Surface, error) {
	d.pages++
	d.f.url = url
	d.f.onForm = false
	return &fakeSurface{f: d.f}, nil
}

func (d *fakeDriver) Close() error {
	d.closes++
	return nil
}

func noSleep(context.Context, time.Duration) error { return nil }

func testCatalog() *Catalog {
	sel := func(name string, kind FieldKind, match MatchMode) Field {
		return Field{
			Name:    name,
			Kind:    kind,
			Match:   match,
			Control: []Strategy{css("ctl", "ctl:"+name+":{row}")},
			Display: []Strategy{css("val", "val:"+name+":{row}")},
		}
	}
	text := func(name string, match MatchMode) Field {
		return Field{Name: name, Kind: TextField, Match: match, Control: []Strategy{css("ctl", "ctl:"+name+":{row}")}}
	}

	c := &Catalog{
		UnitID:         sel("unit", SearchSelect, MatchContains),
		DamageType:     sel("damage", ChoiceSelect, MatchFolded),
		Occurrence:     sel("occurrence", FirstChoice, MatchNonEmpty),
		Incidence:      text("incidence", MatchNumeric),
		Severity:       sel("severity", ChoiceSelect, MatchFolded),
		Recommendation: sel("recommendation", ChoiceSelect, MatchFolded),

		Requester:      text("requester", MatchFolded),
		VisitDate:      text("date", MatchFolded),
		Region:         sel("region", ChoiceSelect, MatchFolded),
		Urgency:        sel("urgency", ChoiceSelect, MatchFolded),
		OccurrenceType: sel("type", ChoiceSelect, MatchFolded),

		Objective:           text("objective", MatchFolded),
		Diagnosis:           text("diagnosis", MatchFolded),
		LessonsLearned:      text("lessons", MatchFolded),
		FinalConsiderations: text("final", MatchFolded),

		Option:      []Strategy{css("opt", "opt:{value}")},
		FirstOption: []Strategy{css("first", "opt:first")},
		NoMatch:     []Strategy{css("nomatch", "nomatch")},
		AddRow:      []Strategy{css("add", "addrow")},

		HomeMarker: []Strategy{css("home", "marker:home")},
		UploadLink: []Strategy{css("upload", "link:upload")},
		FormMarker: []Strategy{css("form", "marker:form")},

		Send:      []Strategy{css("send", "btn:send")},
		Signature: []Strategy{css("signature", "btn:signature")},
		Confirm:   []Strategy{css("confirm", "btn:confirm")},

		Login: LoginCatalog{
			Start:        []Strategy{css("start", "login:start")},
			Email:        []Strategy{css("email", "login:email")},
			Next:         []Strategy{css("next", "login:next")},
			Password:     []Strategy{css("password", "login:password")},
			Submit:       []Strategy{css("submit", "login:submit")},
			StaySignedIn: []Strategy{css("stay", "login:stay")},
		},
	}
	c.UnitID.Clear = []Strategy{css("clr", "clr:unit:{row}")}
	return c
}

func newTestBinder(f *fakeForm) (*Binder, *Catalog) {
	src := Fixed{S: &fakeSurface{f: f}}
	cat := testCatalog()
	b := NewBinder(src, NewResolver(src, time.Millisecond), cat, DefaultTiming())
	b.sleep = noSleep
	return b, cat
}

func newTestSupervisor(f *fakeForm, creds *Credentials) (*Supervisor, *fakeDriver) {
	drv := &fakeDriver{f: f}
	sup := NewSupervisor(drv, testCatalog(), SessionConfig{
		BaseURL:       "https://fenix.test/",
		Credentials:   creds,
		LoginTimeout:  5 * time.Second,
		LoginPoll:     time.Second,
		LocateTimeout: time.Millisecond,
	})
	sup.sleep = noSleep
	return sup, drv
}
