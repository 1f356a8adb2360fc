package sessioncmder

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/papercomputeco/landscape/pkg/cliui"
	"github.com/papercomputeco/landscape/pkg/narrative"
	"github.com/papercomputeco/landscape/pkg/session"
)

// PrintSession writes a summary of s. With report set, a finished session's
// report is rendered as markdown below the summary.
func PrintSession(w io.Writer, s *session.Session, report bool) {
	fmt.Fprintln(w)
	cliui.KeyValue(w, "Session:  ", s.ID)

	phase := cliui.Phase(string(s.Phase))
	if s.Paused {
		phase += " " + cliui.WarnStyle.Render("(paused)")
	}
	fmt.Fprintf(w, "  %s  %s\n", cliui.KeyStyle.Render("Phase:    "), phase)

	if s.Inputs.Query != "" {
		cliui.KeyValue(w, "Query:    ", s.Inputs.Query)
	}
	if len(s.Inputs.Subjects) > 0 {
		cliui.KeyValue(w, "Subjects: ", strings.Join(s.Inputs.Subjects, ", "))
	}
	if len(s.Inputs.Topics) > 0 {
		cliui.KeyValue(w, "Topics:   ", strings.Join(s.Inputs.Topics, ", "))
	}

	if r := s.Outputs.Research; r != nil {
		cliui.KeyValue(w, "Research: ", fmt.Sprintf("%d/%d subjects succeeded, %d failed, %d pending",
			r.Succeeded, r.Requested, r.Failed, r.Requested-r.Succeeded-r.Failed))
	}
	if len(s.PeerInsights) > 0 {
		cliui.KeyValue(w, "Peers:    ", strconv.Itoa(len(s.PeerInsights))+" insights merged")
	}

	if s.Error != nil {
		fmt.Fprintf(w, "  %s  %s %s\n",
			cliui.KeyStyle.Render("Error:    "),
			cliui.FailMark,
			cliui.WarnStyle.Render(fmt.Sprintf("[%s in %s] %s", s.Error.Kind, s.Error.Phase, s.Error.Message)),
		)
	}

	if ev := s.Evaluation; ev != nil {
		fmt.Fprintf(w, "  %s  %s %s\n",
			cliui.KeyStyle.Render("Grade:    "),
			cliui.Grade(ev.Grade),
			cliui.DimStyle.Render(fmt.Sprintf("(overall %.2f)", ev.Overall)),
		)
		for _, line := range ev.Feedback {
			fmt.Fprintf(w, "  %s %s\n", cliui.DimStyle.Render("  -"), line)
		}
	}

	if report && s.Outputs.Report != nil {
		body := s.Outputs.Report.Body
		if rendered, err := cliui.RenderMarkdown(body); err == nil {
			body = rendered
		}
		fmt.Fprintln(w)
		fmt.Fprint(w, body)
	}
	fmt.Fprintln(w)
}

// ValidateExport checks the --output and --format flag pair.
func ValidateExport(output, format string) error {
	if format != "" && output == "" {
		return errors.New("--format requires --output")
	}
	return ValidateFormat(format)
}

// ValidateFormat accepts the report export formats. Empty is accepted and
// means the format follows the file name.
func ValidateFormat(format string) error {
	switch strings.ToLower(format) {
	case "", narrative.FormatMarkdown, narrative.FormatHTML:
		return nil
	default:
		return fmt.Errorf("%w: %q (use markdown or html)", narrative.ErrUnknownFormat, format)
	}
}

// ExportReport writes the session's report to path and notes it on w.
func ExportReport(w io.Writer, s *session.Session, path, format string) error {
	if s.Outputs.Report == nil {
		return fmt.Errorf("session %s has no report yet (phase %s)", s.ID, s.Phase)
	}
	if format == "" {
		format = narrative.FormatFromPath(path)
	}
	if err := narrative.ExportFile(path, s.Outputs.Report, format); err != nil {
		return err
	}
	fmt.Fprintf(w, "  %s Wrote %s report to %s\n\n", cliui.SuccessMark, format, cliui.NameStyle.Render(path))
	return nil
}
