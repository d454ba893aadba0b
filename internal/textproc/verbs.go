package textproc

import (
	"slices"
	"strings"
)

// actionVerbs are base-form verbs that open a task request ("complete the
// report", "send the invoice"). Inflected forms are deliberately absent:
// "finished the report" reads as a status update, not a request.
var actionVerbs = []string{
	"add", "analyze", "approve", "arrange", "ask", "assign", "audit",
	"book", "build", "buy", "call", "cancel", "check", "clean", "close",
	"collect", "compile", "complete", "configure", "confirm", "contact",
	"coordinate", "create", "debug", "deploy", "design", "document",
	"draft", "edit", "email", "escalate", "estimate", "file", "finalize",
	"finish", "fix", "follow", "forward", "handle", "implement", "install",
	"investigate", "look", "merge", "migrate", "notify", "order",
	"organize", "outline", "patch", "pay", "pick", "plan", "post",
	"prepare", "present", "print", "process", "proofread", "publish",
	"reconcile", "refactor", "release", "remind", "remove", "renew",
	"reply", "research", "resolve", "respond", "restart", "review",
	"revise", "run", "schedule", "send", "set", "share", "ship", "sign",
	"submit", "summarize", "test", "translate", "update", "upgrade",
	"upload", "validate", "verify", "write",
}

var actionVerbSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(actionVerbs))
	for _, v := range actionVerbs {
		m[v] = struct{}{}
	}
	return m
}()

// IsActionVerb reports whether word (any case) is a base-form action verb.
func IsActionVerb(word string) bool {
	_, ok := actionVerbSet[strings.ToLower(word)]
	return ok
}

// ActionVerbs returns the action verb lexicon, sorted.
func ActionVerbs() []string {
	out := slices.Clone(actionVerbs)
	slices.Sort(out)
	return out
}

// ActionVerbAlternation returns the lexicon as a regexp alternation group,
// e.g. "(?:add|analyze|...)". Longer verbs come first so that prefixes
// never shadow a longer match.
func ActionVerbAlternation() string {
	verbs := slices.Clone(actionVerbs)
	slices.SortFunc(verbs, func(a, b string) int {
		if len(a) != len(b) {
			return len(b) - len(a)
		}
		return strings.Compare(a, b)
	})
	return "(?:" + strings.Join(verbs, "|") + ")"
}
