// Package export renders a completed PaperCollection into the three formats
// the export tool surface accepts (SPEC_FULL.md §4.10, §6). No teacher file
// renders bibliography formats, so this package is built directly from the
// stdlib (encoding/json, text/template) — justified in DESIGN.md as an
// ambient concern with no ecosystem analog among the examples.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"scifind-backend/internal/models"
)

// Kind is one of the three accepted export formats.
type Kind string

const (
	JSON     Kind = "json"
	BibTeX   Kind = "bibtex"
	Markdown Kind = "markdown"
)

// Render formats coll according to kind.
func Render(coll models.PaperCollection, kind Kind) (string, error) {
	switch kind {
	case JSON:
		return renderJSON(coll)
	case BibTeX:
		return renderBibTeX(coll), nil
	case Markdown:
		return renderMarkdown(coll), nil
	default:
		return "", fmt.Errorf("export: unknown format %q", kind)
	}
}

func renderJSON(coll models.PaperCollection) (string, error) {
	buf, err := json.MarshalIndent(coll, "", "  ")
	if err != nil {
		return "", fmt.Errorf("export json: %w", err)
	}
	return string(buf), nil
}

func renderBibTeX(coll models.PaperCollection) string {
	var sb strings.Builder
	for _, p := range coll.Papers {
		fmt.Fprintf(&sb, "@article{%s,\n", bibtexKey(p))
		fmt.Fprintf(&sb, "  title = {%s},\n", p.Title)
		if len(p.Authors) > 0 {
			fmt.Fprintf(&sb, "  author = {%s},\n", strings.Join(p.Authors, " and "))
		}
		if p.Year != nil {
			fmt.Fprintf(&sb, "  year = {%d},\n", *p.Year)
		}
		if p.Venue != nil && *p.Venue != "" {
			fmt.Fprintf(&sb, "  journal = {%s},\n", *p.Venue)
		}
		if p.DOI != nil && *p.DOI != "" {
			fmt.Fprintf(&sb, "  doi = {%s},\n", *p.DOI)
		}
		sb.WriteString("}\n\n")
	}
	return sb.String()
}

func bibtexKey(p models.Paper) string {
	firstAuthor := "anon"
	if len(p.Authors) > 0 {
		parts := strings.Fields(p.Authors[0])
		if len(parts) > 0 {
			firstAuthor = strings.ToLower(parts[len(parts)-1])
		}
	}
	year := "n.d."
	if p.Year != nil {
		year = fmt.Sprintf("%d", *p.Year)
	}
	return fmt.Sprintf("%s%s", firstAuthor, year)
}

const markdownTemplate = `# {{.Metadata.Query}}

Found {{.Metadata.TotalFound}} candidates, {{len .Papers}} shown.

{{range .Papers}}## {{.Title}}
{{if .Authors}}*{{join .Authors ", "}}*{{end}}{{if .Year}} ({{deref .Year}}){{end}}{{if .Venue}} — {{deref .Venue}}{{end}}

Relevance: {{printf "%.2f" .RelevanceScore}}{{if .Tags}} · Tags: {{joinTags .Tags}}{{end}}
{{if .Snippet}}
{{.Snippet}}
{{end}}
{{if .FullTextURL}}[Link]({{.FullTextURL}}){{end}}

{{end}}
## Sources by venue

{{range $venue, $count := .Facets.ByVenue}}- {{$venue}}: {{$count}}
{{end}}
`

var markdownFuncs = template.FuncMap{
	"join": strings.Join,
	"joinTags": func(tags []models.RelevanceTag) string {
		strs := make([]string, len(tags))
		for i, t := range tags {
			strs[i] = string(t)
		}
		return strings.Join(strs, ", ")
	},
	"deref": deref,
}

// deref unwraps the *int/*string pointer fields Paper carries for optional
// values, returning "" for a nil pointer.
func deref(v interface{}) interface{} {
	switch p := v.(type) {
	case *int:
		if p == nil {
			return ""
		}
		return *p
	case *string:
		if p == nil {
			return ""
		}
		return *p
	default:
		return v
	}
}

// renderMarkdown relies on text/template's guarantee that ranging over a map
// visits keys in sorted order, so the venue list below is deterministic.
func renderMarkdown(coll models.PaperCollection) string {
	tpl := template.Must(template.New("markdown").Funcs(markdownFuncs).Parse(markdownTemplate))

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, coll); err != nil {
		return fmt.Sprintf("export markdown: %v", err)
	}
	return buf.String()
}
