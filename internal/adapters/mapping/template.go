package mapping

import (
	"regexp"
	"strings"

	"github.com/loomhq/loom/internal/domain"
)

var templatePattern = regexp.MustCompile(`\{\{([^}]*)\}\}`)

// renderTemplate substitutes {{ ... }} placeholders. A placeholder naming a
// node output ("nodes.<id>.<path>") resolves against the mapping context and
// records the reference; a bare name resolves against global variables, then
// user context. Placeholders that resolve to nothing are left verbatim so the
// gap stays visible in the output.
func renderTemplate(tmpl string, ctx *domain.MappingContext, refs map[string]bool) string {
	return templatePattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		inner := strings.TrimSpace(match[2 : len(match)-2])
		if inner == "" {
			return match
		}

		if rest, ok := strings.CutPrefix(inner, "nodes."); ok {
			nodeID, path, _ := strings.Cut(rest, ".")
			if nodeID == "" {
				return match
			}
			// Same "<node>.<path>" form reference expressions record.
			refs[rest] = true
			output, ok := ctx.NodeOutputs[nodeID]
			if !ok {
				return match
			}
			value, found := resolvePath(output, path)
			if !found || value == nil {
				return match
			}
			return stringify(value)
		}

		if ctx.GlobalVariables != nil {
			if value, ok := ctx.GlobalVariables[inner]; ok && value != nil {
				return stringify(value)
			}
		}
		if ctx.UserContext != nil {
			if value, ok := ctx.UserContext[inner]; ok && value != nil {
				return stringify(value)
			}
		}
		return match
	})
}
