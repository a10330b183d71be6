package pipeline

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/ironsheep/form-scanner/internal/detection"
)

// NoIDText is shown for a page whose ID could not be read.
const NoIDText = "could not determine ID"

// grading is a form's pages split into the answer key and the graded rest.
type grading struct {
	key    *Page
	graded []int // question indexes the key answers
	pages  []Page
}

func gradeForm(f *Form) grading {
	g := grading{pages: f.Pages()}
	for i := range g.pages {
		if g.pages[i].HasID() && g.pages[i].ID == f.Key {
			g.key = &g.pages[i]
			break
		}
	}
	if g.key != nil {
		for q, a := range g.key.Answers {
			if a != detection.Blank {
				g.graded = append(g.graded, q)
			}
		}
	}
	return g
}

func (g grading) isKey(p *Page) bool {
	return g.key != nil && p.Index == g.key.Index
}

// score returns the correct and graded counts and the percentage. A key
// with nothing marked gives everyone full marks.
func (g grading) score(p Page) (correct, total int, percent float64) {
	total = len(g.graded)
	for _, q := range g.graded {
		if q < len(p.Answers) && p.Answers[q] == g.key.Answers[q] {
			correct++
		}
	}
	if total == 0 {
		return correct, total, 100
	}
	return correct, total, 100 * float64(correct) / float64(total)
}

func (g grading) letters(p Page) string {
	out := make([]string, len(g.graded))
	for i, q := range g.graded {
		a := detection.Blank
		if q < len(p.Answers) {
			a = p.Answers[q]
		}
		out[i] = a.String()
	}
	return strings.Join(out, " ")
}

// Summary renders a form's results as a Markdown table, key first, with
// the form's log appended.
func Summary(f *Form) string {
	g := gradeForm(f)
	var b strings.Builder

	if g.key == nil {
		b.WriteString("Key not found. Given IDs:\n\n")
		for _, p := range g.pages {
			if p.HasID() {
				fmt.Fprintf(&b, "- %d\n", p.ID)
			}
		}
	} else {
		b.WriteString("| Page | ID | Answers | Score |\n")
		b.WriteString("|---|---|---|---|\n")
		fmt.Fprintf(&b, "| %d | %d (key) | %s | |\n", g.key.Index+1, g.key.ID, g.letters(*g.key))
		for i := range g.pages {
			p := g.pages[i]
			switch {
			case g.isKey(&p):
			case !p.HasID():
				fmt.Fprintf(&b, "| %d | %s | | |\n", p.Index+1, NoIDText)
			default:
				correct, total, pct := g.score(p)
				fmt.Fprintf(&b, "| %d | %d | %s | %d/%d (%.2f%%) |\n",
					p.Index+1, p.ID, g.letters(p), correct, total, pct)
			}
		}
	}

	if text := f.LogText(); text != "" {
		b.WriteString("\n```\n")
		b.WriteString(text)
		if !strings.HasSuffix(text, "\n") {
			b.WriteString("\n")
		}
		b.WriteString("```\n")
	}
	return b.String()
}

// CSV renders a form's results: a header of graded question numbers, the
// key row, then one row per page with 1 or 0 per question and the score.
// Without a key only the page IDs are listed.
func CSV(f *Form) (string, error) {
	g := gradeForm(f)
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	id := func(p Page) string {
		if !p.HasID() {
			return "unknown"
		}
		return strconv.FormatInt(p.ID, 10)
	}

	if g.key == nil {
		w.Write([]string{"ID"})
		for _, p := range g.pages {
			w.Write([]string{id(p)})
		}
		w.Flush()
		return buf.String(), w.Error()
	}

	header := []string{"ID"}
	keyRow := []string{id(*g.key)}
	for _, q := range g.graded {
		header = append(header, strconv.Itoa(q+1))
		keyRow = append(keyRow, g.key.Answers[q].String())
	}
	w.Write(append(header, "Score"))
	w.Write(append(keyRow, "100"))

	for _, p := range g.pages {
		if g.isKey(&p) {
			continue
		}
		row := []string{id(p)}
		if !p.HasID() {
			row = append(row, make([]string, len(g.graded)+1)...)
			w.Write(row)
			continue
		}
		for _, q := range g.graded {
			mark := "0"
			if q < len(p.Answers) && p.Answers[q] == g.key.Answers[q] {
				mark = "1"
			}
			row = append(row, mark)
		}
		_, _, pct := g.score(p)
		row = append(row, strconv.FormatFloat(pct, 'f', 2, 64))
		w.Write(row)
	}

	w.Flush()
	return buf.String(), w.Error()
}
