package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/tidwall/pretty"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/wasm-jsapi/conformance"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	passStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	skipStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	suiteStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))
)

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// painter renders with lipgloss styles only when writing to a terminal.
type painter bool

func (p painter) render(s lipgloss.Style, text string) string {
	if !p {
		return text
	}
	return s.Render(text)
}

func writeReports(w io.Writer, format string, reports []*conformance.Report) error {
	switch format {
	case "json":
		data, err := json.Marshal(reports)
		if err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		data = pretty.Pretty(data)
		if isTerminal(w) {
			data = pretty.Color(data, nil)
		}
		_, err = w.Write(data)
		return err
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(reports); err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		return enc.Close()
	default:
		p := painter(isTerminal(w))
		for _, rep := range reports {
			writeText(w, p, rep)
		}
		return nil
	}
}

func writeText(w io.Writer, p painter, rep *conformance.Report) {
	fmt.Fprintf(w, "%s features=%s run=%s\n\n",
		p.render(headerStyle, rep.Backend), rep.Features, rep.ID)

	suite := ""
	for _, res := range rep.Results {
		if res.Suite != suite {
			suite = res.Suite
			fmt.Fprintln(w, p.render(suiteStyle, suite))
		}
		switch res.Status {
		case conformance.StatusPass:
			fmt.Fprintf(w, "  %s %s\n", p.render(passStyle, "PASS"), res.Case)
		case conformance.StatusSkip:
			fmt.Fprintf(w, "  %s %s (%s)\n", p.render(skipStyle, "SKIP"), res.Case, res.Error)
		case conformance.StatusFail:
			fmt.Fprintf(w, "  %s %s\n", p.render(failStyle, "FAIL"), res.Case)
			for _, line := range strings.Split(res.Error, "; ") {
				fmt.Fprintf(w, "       %s\n", p.render(failStyle, line))
			}
		}
	}

	pass, fail, skip := rep.Counts()
	summary := fmt.Sprintf("%d passed, %d failed, %d skipped in %s",
		pass, fail, skip, rep.Duration.Round(time.Microsecond))
	style := passStyle
	if fail > 0 {
		style = failStyle
	}
	fmt.Fprintf(w, "\n%s\n\n", p.render(style, summary))
}

func printList(w io.Writer, suites []conformance.Suite) {
	p := painter(isTerminal(w))
	for _, s := range suites {
		fmt.Fprintln(w, p.render(suiteStyle, s.Name))
		for _, c := range s.Cases {
			if c.Requires != 0 {
				fmt.Fprintf(w, "  %s %s\n", c.Name, p.render(skipStyle, "["+c.Requires.String()+"]"))
				continue
			}
			fmt.Fprintf(w, "  %s\n", c.Name)
		}
	}
}
