package workflow

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrPromptRequired is returned (wrapped with the step number) when a step
// section has no "- Prompt:" line. It aborts the whole document parse.
var ErrPromptRequired = errors.New("prompt is required")

var (
	// stepHeadingPattern matches "## Step 1: Title" and "## Step 1:Title".
	stepHeadingPattern = regexp.MustCompile(`(?m)^## Step (\d+): ?(.+)$`)

	// legacyHeadingPattern matches the older "## Step 1 ##" form.
	legacyHeadingPattern = regexp.MustCompile(`(?m)^## Step (\d+) ##.*$`)

	// paramPattern matches a declarative "- Key: value" line. The value is
	// confined to its own line.
	paramPattern = regexp.MustCompile(`(?m)^- (\w+):[ \t]*(.*)$`)
)

// section is one step's slice of the document.
type section struct {
	title string
	body  string
}

// Parse converts a markdown workflow document into a [Document].
//
// Steps are split at "## Step N: Title" headings in order of appearance. When
// no such heading exists, the legacy "## Step N ##" form is tried. A document
// with neither yields zero steps and no error.
//
// Parse fails fast: the first step without a prompt aborts the parse with an
// error wrapping [ErrPromptRequired].
func Parse(markdown string) (*Document, error) {
	markdown = strings.ReplaceAll(markdown, "\r\n", "\n")

	sections := splitIntoSections(markdown)
	steps := make([]Step, 0, len(sections))
	for i, sec := range sections {
		step, err := parseStep(sec, i+1)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}

	return &Document{
		Overview: extractOverview(markdown),
		Steps:    steps,
	}, nil
}

// splitIntoSections cuts the document at step headings.
func splitIntoSections(markdown string) []section {
	matches := stepHeadingPattern.FindAllStringSubmatchIndex(markdown, -1)
	legacy := false
	if len(matches) == 0 {
		matches = legacyHeadingPattern.FindAllStringSubmatchIndex(markdown, -1)
		legacy = true
	}
	if len(matches) == 0 {
		return nil
	}

	sections := make([]section, 0, len(matches))
	for i, m := range matches {
		end := len(markdown)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}

		var title string
		if !legacy {
			title = strings.TrimSpace(markdown[m[4]:m[5]])
		}

		sections = append(sections, section{
			title: title,
			body:  strings.TrimSpace(markdown[m[1]:end]),
		})
	}
	return sections
}

// parseStep applies the normalization rules to one section.
func parseStep(sec section, stepNumber int) (Step, error) {
	step := Step{
		StepNumber:       stepNumber,
		Title:            sec.title,
		RawContent:       sec.body,
		RelyPreviousStep: stepNumber > 1,
	}

	hasPrompt := false
	for _, m := range paramPattern.FindAllStringSubmatch(sec.body, -1) {
		key := strings.ToLower(strings.TrimSpace(m[1]))
		value := strings.TrimSpace(m[2])

		switch key {
		case "playbook":
			step.Playbook = normalizePlaybookID(value)
		case "prompt":
			step.Prompt = value
			hasPrompt = value != ""
		case "handoff":
			step.Handoff = normalizeHandoff(value)
		case "repo":
			step.Repo = normalizeRepo(value)
		case "relypreviousstep", "rely_previous_step":
			if value != "" {
				step.RelyPreviousStep = parseBoolean(value)
			}
		}
	}

	if !hasPrompt {
		return Step{}, fmt.Errorf("step %d: %w", stepNumber, ErrPromptRequired)
	}
	return step, nil
}

// normalizePlaybookID maps empty and "<none>" to absent and ensures the
// playbook- prefix on everything else.
func normalizePlaybookID(value string) string {
	if value == "" || strings.EqualFold(value, "<none>") {
		return ""
	}
	if !strings.HasPrefix(value, PlaybookPrefix) {
		return PlaybookPrefix + value
	}
	return value
}

func normalizeHandoff(value string) string {
	v := strings.TrimSpace(value)
	if v == "" || strings.EqualFold(v, "<none>") || strings.EqualFold(v, "null") {
		return ""
	}
	return value
}

func normalizeRepo(value string) string {
	v := strings.TrimSpace(value)
	switch {
	case v == "" || strings.EqualFold(v, "null"):
		return ""
	case strings.EqualFold(v, RepoNone):
		return RepoNone
	default:
		return value
	}
}

func parseBoolean(value string) bool {
	switch strings.ToLower(value) {
	case "yes", "true", "1":
		return true
	default:
		return false
	}
}

// extractOverview returns the text under "## Overview" up to the next
// level-two heading.
func extractOverview(markdown string) string {
	lines := strings.Split(markdown, "\n")
	start := -1
	for i, line := range lines {
		if strings.TrimRight(line, " \t") == "## Overview" {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return ""
	}

	var b strings.Builder
	for _, line := range lines[start:] {
		if strings.HasPrefix(line, "##") {
			break
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String())
}
