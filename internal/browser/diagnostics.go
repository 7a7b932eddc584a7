package browser

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/net/html"
)

// FieldState is one named control and its current value.
type FieldState struct {
	Name  string
	Value string
}

// FormSnapshot summarizes what a page's form is showing.
type FormSnapshot struct {
	Title string
	// Fields are named inputs, textareas and native selects.
	Fields []FieldState
	// Selections are the texts shown by custom select widgets.
	Selections []string
	// Alerts are role=alert texts, which is where the portal reports
	// validation errors.
	Alerts []string
}

// String renders the snapshot on a few lines for logs.
func (s FormSnapshot) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "title=%q fields=%d", s.Title, len(s.Fields))
	for _, f := range s.Fields {
		if f.Value != "" {
			fmt.Fprintf(&b, " %s=%q", f.Name, truncate(f.Value, 40))
		}
	}
	if len(s.Selections) > 0 {
		fmt.Fprintf(&b, " selections=%q", s.Selections)
	}
	if len(s.Alerts) > 0 {
		fmt.Fprintf(&b, " alerts=%q", s.Alerts)
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

// SummarizeForm parses a serialized document.
func SummarizeForm(doc string) (FormSnapshot, error) {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return FormSnapshot{}, fmt.Errorf("parse html: %w", err)
	}

	var snap FormSnapshot
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if snap.Title == "" {
					snap.Title = strings.TrimSpace(textOf(n))
				}
			case "input":
				if name := attr(n, "name"); name != "" && attr(n, "type") != "hidden" {
					snap.Fields = append(snap.Fields, FieldState{Name: name, Value: attr(n, "value")})
				}
			case "textarea":
				if name := attr(n, "name"); name != "" {
					v := attr(n, "value")
					if v == "" {
						v = textOf(n)
					}
					snap.Fields = append(snap.Fields, FieldState{Name: name, Value: strings.TrimSpace(v)})
				}
			case "select":
				if name := attr(n, "name"); name != "" {
					snap.Fields = append(snap.Fields, FieldState{Name: name, Value: selectedOption(n)})
				}
			case "div", "span":
				if strings.Contains(attr(n, "class"), "singleValue") || strings.Contains(attr(n, "class"), "single-value") {
					if t := strings.TrimSpace(textOf(n)); t != "" {
						snap.Selections = append(snap.Selections, t)
					}
					return
				}
			}
			if attr(n, "role") == "alert" {
				if t := strings.TrimSpace(textOf(n)); t != "" {
					snap.Alerts = append(snap.Alerts, t)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	sort.SliceStable(snap.Fields, func(i, j int) bool { return snap.Fields[i].Name < snap.Fields[j].Name })
	return snap, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func selectedOption(sel *html.Node) string {
	first := ""
	for c := sel.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.Data != "option" {
			continue
		}
		if first == "" {
			first = strings.TrimSpace(textOf(c))
		}
		for _, a := range c.Attr {
			if a.Key == "selected" {
				return strings.TrimSpace(textOf(c))
			}
		}
	}
	return first
}
