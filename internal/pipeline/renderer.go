package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/ppiankov/credtrust/internal/model"
)

// Renderer writes evaluation results as JSON, Markdown and terminal summaries
type Renderer struct {
	useColor bool
}

// NewRenderer creates a renderer. useColor only affects RenderSummary.
func NewRenderer(useColor bool) *Renderer {
	return &Renderer{useColor: useColor}
}

// WriteJSON encodes the result as indented JSON
func (r *Renderer) WriteJSON(w io.Writer, result *model.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return nil
}

// RenderJSON writes the result to path
func (r *Renderer) RenderJSON(result *model.Result, path string) error {
	return writeFile(path, func(w io.Writer) error { return r.WriteJSON(w, result) })
}

// RenderMarkdown writes the Markdown report to path
func (r *Renderer) RenderMarkdown(result *model.Result, path string) error {
	return writeFile(path, func(w io.Writer) error {
		_, err := io.WriteString(w, r.Markdown(result))
		return err
	})
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// Markdown renders a human-readable report
func (r *Renderer) Markdown(result *model.Result) string {
	var b strings.Builder
	inst := result.Institution
	cred := result.Credential

	fmt.Fprintf(&b, "# Credential evaluation: %s\n\n", inst.Claim.Name)
	fmt.Fprintf(&b, "- **Evaluation:** `%s`\n", result.ID)
	if result.StudentID != "" {
		fmt.Fprintf(&b, "- **Student:** %s\n", result.StudentID)
	}
	fmt.Fprintf(&b, "- **Evaluated at:** %s\n", result.EvaluatedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "- **Verdict:** %s (score %d/100)\n", result.Decision.Verdict, result.Decision.Score)
	fmt.Fprintf(&b, "- **Institute verified:** %s\n", yesNo(result.InstituteVerified))
	fmt.Fprintf(&b, "- **Certificate verified:** %s\n\n", yesNo(result.CertificateVerified))

	b.WriteString("## Reasons\n\n")
	for _, reason := range result.Decision.Reasons {
		fmt.Fprintf(&b, "- %s\n", reason)
	}

	fmt.Fprintf(&b, "\n## Institution evidence (score %d)\n\n", inst.Score)
	b.WriteString("| Check | Status | Detail |\n|---|---|---|\n")
	writeRow(&b, "registry", inst.Registry.CheckStatus, registryDetail(inst.Registry))
	writeRow(&b, "website", inst.Website.CheckStatus, websiteDetail(inst.Website))
	writeRow(&b, "code", inst.Code.CheckStatus, codeDetail(inst.Code))
	writeSignals(&b, inst.Signals)

	fmt.Fprintf(&b, "\n## Credential evidence (score %d)\n\n", cred.Score)
	b.WriteString("| Check | Status | Detail |\n|---|---|---|\n")
	writeRow(&b, "text", cred.Text.CheckStatus, fmt.Sprintf("source %s, %d chars", cred.Text.Source, len([]rune(cred.Text.Text))))
	writeRow(&b, "consistency", cred.Consistency.CheckStatus, fmt.Sprintf("%d/%d facts matched", cred.Consistency.Match, cred.Consistency.Total))
	writeRow(&b, "serial_check", cred.Serial.CheckStatus, serialDetail(cred.Serial))
	writeRow(&b, "accreditation", cred.Accreditation.CheckStatus, accreditationDetail(cred.Accreditation))
	writeRow(&b, "date_check", cred.Dates.CheckStatus, dateDetail(cred.Dates))
	writeRow(&b, "tamper", cred.Tamper.CheckStatus, tamperDetail(cred.Tamper))
	writeSignals(&b, cred.Signals)

	if f := inst.ForcedMatch; f != nil {
		fmt.Fprintf(&b, "\n## Override\n\nSignature `%s` matched serial `%s` (%s).\n", f.SignatureID, f.MatchedSerial, f.Reason)
	}
	return b.String()
}

func writeRow(b *strings.Builder, name string, status model.CheckStatus, detail string) {
	state := string(status.State)
	if status.Reason != "" {
		state += " (" + string(status.Reason) + ")"
	}
	fmt.Fprintf(b, "| %s | %s | %s |\n", name, state, strings.ReplaceAll(detail, "|", "\\|"))
}

func writeSignals(b *strings.Builder, signals []model.Signal) {
	if len(signals) == 0 {
		return
	}
	b.WriteString("\nSignals:\n\n")
	for _, s := range signals {
		fmt.Fprintf(b, "- [%s] %s (%+d)", s.Severity, s.Description, s.Points)
		if formula, ok := s.Data["formula"]; ok {
			fmt.Fprintf(b, " `%v`", formula)
		}
		b.WriteString("\n")
	}
}

func registryDetail(m model.RegistryMatch) string {
	if !m.Found {
		return fmt.Sprintf("no match (best %d)", m.Score)
	}
	how := "name"
	if m.ByCode {
		how = "code"
	}
	return fmt.Sprintf("matched by %s, score %d, column %s", how, m.Score, m.Column)
}

func websiteDetail(w model.WebsiteCheck) string {
	if w.URL == "" {
		return "no website"
	}
	parts := []string{w.URL}
	if w.StatusCode != 0 {
		parts = append(parts, fmt.Sprintf("HTTP %d", w.StatusCode))
	}
	if w.SemanticScore != nil {
		parts = append(parts, fmt.Sprintf("similarity %d (%s)", *w.SemanticScore, w.SimilarityMethod))
	}
	if w.DomainAgeDays != nil {
		parts = append(parts, fmt.Sprintf("domain age %dd", *w.DomainAgeDays))
	}
	if w.MXOK {
		parts = append(parts, "mx")
	}
	if w.DomainTier != "" {
		parts = append(parts, string(w.DomainTier))
	}
	return strings.Join(parts, ", ")
}

func codeDetail(c model.CodeCheck) string {
	if c.Code == "" {
		return "none"
	}
	return fmt.Sprintf("%s from %s, counted %s", c.Code, c.Source, yesNo(c.Counted))
}

func serialDetail(s model.SerialCheck) string {
	if s.Serial == "" {
		return "none"
	}
	detail := fmt.Sprintf("%s (%s), %d rows", s.Serial, s.Source, s.Count)
	if s.Reused {
		detail += ", reused"
	}
	if s.ForcedKnownGood {
		detail += ", forced known-good"
	}
	return detail
}

func accreditationDetail(a model.AccreditationCheck) string {
	if a.OK == nil {
		return "undetermined"
	}
	if *a.OK {
		if a.MatchedTerm != "" {
			return fmt.Sprintf("supported (%q)", a.MatchedTerm)
		}
		return "supported"
	}
	return fmt.Sprintf("not supported by %d candidate rows", a.Candidates)
}

func dateDetail(d model.DateCheck) string {
	if d.DeltaDays == nil {
		return "n/a"
	}
	detail := fmt.Sprintf("%d days from issuance to convocation", *d.DeltaDays)
	if d.Issue != "" {
		detail += ", " + d.Issue
	}
	return detail
}

func tamperDetail(t model.TamperCheck) string {
	parts := []string{string(t.Mode)}
	if t.ELAScore != nil {
		parts = append(parts, fmt.Sprintf("ela %.2f", *t.ELAScore))
	}
	if t.Probability != nil {
		parts = append(parts, fmt.Sprintf("p %.2f", *t.Probability))
	}
	if t.AnomalyScore != nil {
		parts = append(parts, fmt.Sprintf("anomaly %.2f", *t.AnomalyScore))
	}
	if t.Likely {
		parts = append(parts, "likely")
	}
	return strings.Join(parts, ", ")
}

// RenderSummary prints a short terminal summary
func (r *Renderer) RenderSummary(w io.Writer, result *model.Result) {
	bold := r.color(color.Bold)
	verdict := r.verdictColor(result.Decision.Verdict)

	_, _ = bold.Fprintf(w, "%s\n", result.Institution.Claim.Name)
	fmt.Fprintf(w, "  Verdict:      ")
	_, _ = verdict.Fprintf(w, "%s", result.Decision.Verdict)
	fmt.Fprintf(w, " (score %d/100)\n", result.Decision.Score)
	fmt.Fprintf(w, "  Institution:  %d/100 (verified: %s)\n", result.Institution.Score, yesNo(result.InstituteVerified))
	fmt.Fprintf(w, "  Credential:   %d/100\n", result.Credential.Score)

	degraded := append(result.Institution.DegradedChecks(), result.Credential.DegradedChecks()...)
	if len(degraded) > 0 {
		sort.Strings(degraded)
		warn := r.color(color.FgYellow)
		_, _ = warn.Fprintf(w, "  Degraded:     %s\n", strings.Join(degraded, ", "))
	}
	if f := result.Institution.ForcedMatch; f != nil {
		fmt.Fprintf(w, "  Override:     %s\n", f.SignatureID)
	}
}

func (r *Renderer) verdictColor(v model.Verdict) *color.Color {
	switch v {
	case model.VerdictVerified:
		return r.color(color.FgGreen, color.Bold)
	case model.VerdictSuspicious:
		return r.color(color.FgYellow, color.Bold)
	default:
		return r.color(color.FgRed, color.Bold)
	}
}

func (r *Renderer) color(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if r.useColor {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
