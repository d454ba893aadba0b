// Package textproc prepares raw communication text for extraction: input
// validation, source-aware cleanup, Unicode normalization and cache keys.
package textproc

import (
	"html"
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/taskextract/pkg/task"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"
)

var (
	htmlTagPattern   = regexp.MustCompile(`(?i)<(?:[a-z][a-z0-9]*|/[a-z][a-z0-9]*|!--)[^>]*>`)
	htmlBreakPattern = regexp.MustCompile(`(?i)<br\s*/?>|</p\s*>|</div\s*>|</li\s*>|</tr\s*>`)
	spaceRunPattern  = regexp.MustCompile(`[ \t\f\v]+`)

	// Email reply boundaries. Everything from the first match onward is
	// quoted history or signature.
	emailCutPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?m)^On .{1,200} wrote:\s*$`),
		regexp.MustCompile(`(?m)^-{2,}\s*Original Message\s*-{2,}\s*$`),
		regexp.MustCompile(`(?m)^-- ?$`),
		regexp.MustCompile(`(?m)^From: .+$`),
		regexp.MustCompile(`(?mi)^Sent from my .+$`),
	}
	emailSubjectPattern = regexp.MustCompile(`(?mi)^(?:Subject|Re|Fwd?):\s*`)

	chatPrefixPattern       = regexp.MustCompile(`^\s*(?:\[[^\]]{1,32}\]\s*)?(?:\d{1,2}:\d{2}(?::\d{2})?\s*(?:[AaPp][Mm])?\s*)?(?:<@?[\w.\-]{1,64}>|@?[\w.\-]{1,64}):\s+`)
	chatTimestampPattern    = regexp.MustCompile(`^\s*\[[^\]]{1,32}\]\s*`)
	transcriptSpeakerPrefix = regexp.MustCompile(`^\s*(?:\[?\(?\d{1,2}:\d{2}(?::\d{2})?\)?\]?\s*)?(?:Speaker\s*\d+|[A-Z][\w.'\-]*(?:\s[A-Z][\w.'\-]*)?)\s*(?:\(\d{1,2}:\d{2}(?::\d{2})?\))?:\s+`)
	transcriptNoisePattern  = regexp.MustCompile(`(?i)\[(?:inaudible|crosstalk|laughter|silence|music)\]|\b(?:um+|uh+|erm)\b[,.]?`)
)

var punctReplacer = strings.NewReplacer(
	"\u2018", "'", "\u2019", "'", "\u201a", "'", "\u201b", "'",
	"\u201c", `"`, "\u201d", `"`, "\u201e", `"`,
	"\u2013", "-", "\u2014", "-", "\u2212", "-",
	"\u00a0", " ", "\u200b", "", "\ufeff", "",
)

// Normalize cleans text for the given source type. The result is the form
// that models see and that cache keys are computed from.
//
// Steps: HTML markup is stripped when present, quoted replies and
// signatures are cut from email, chat timestamps and speaker prefixes and
// transcript speaker labels are removed, text is NFKC-normalized,
// typographic punctuation is standardized and whitespace collapsed.
func Normalize(text string, source task.SourceType) string {
	if looksLikeHTML(text) {
		text = stripHTML(text)
	}

	text = norm.NFKC.String(text)
	text = punctReplacer.Replace(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	switch source {
	case task.SourceEmail:
		text = cleanEmail(text)
	case task.SourceChat:
		text = cleanLines(text, chatLine)
	case task.SourceTranscript:
		text = cleanLines(text, transcriptLine)
	}

	return collapseWhitespace(text)
}

func looksLikeHTML(text string) bool {
	return strings.Contains(text, "<") && htmlTagPattern.MatchString(text)
}

func stripHTML(text string) string {
	text = htmlBreakPattern.ReplaceAllString(text, "\n")
	text = bluemonday.StrictPolicy().Sanitize(text)
	return html.UnescapeString(text)
}

func cleanEmail(text string) string {
	cut := len(text)
	for _, re := range emailCutPatterns {
		if loc := re.FindStringIndex(text); loc != nil && loc[0] > 0 && loc[0] < cut {
			cut = loc[0]
		}
	}
	text = text[:cut]

	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), ">") {
			continue
		}
		kept = append(kept, emailSubjectPattern.ReplaceAllString(line, ""))
	}
	return strings.Join(kept, "\n")
}

func chatLine(line string) string {
	if loc := chatPrefixPattern.FindStringIndex(line); loc != nil {
		return line[loc[1]:]
	}
	return chatTimestampPattern.ReplaceAllString(line, "")
}

func transcriptLine(line string) string {
	if loc := transcriptSpeakerPrefix.FindStringIndex(line); loc != nil {
		line = line[loc[1]:]
	}
	return transcriptNoisePattern.ReplaceAllString(line, "")
}

func cleanLines(text string, fn func(string) string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = fn(line)
	}
	return strings.Join(lines, "\n")
}

func collapseWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(spaceRunPattern.ReplaceAllString(line, " "))
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
