package imapsession

import (
	"sort"
	"strings"
)

// canonicalizeFlags strips leading backslashes, sorts, and joins IMAP
// flags into the comma-separated form the Cache Store persists and
// messages_by_flag substring-matches against. Idempotent: running it
// again on its own output returns the same string (round-trip law 7).
func canonicalizeFlags(flags []string) string {
	if len(flags) == 0 {
		return ""
	}

	tokens := make([]string, 0, len(flags))
	for _, f := range flags {
		tokens = append(tokens, strings.TrimPrefix(f, `\`))
	}
	sort.Strings(tokens)
	return strings.Join(tokens, ",")
}
