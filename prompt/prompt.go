// Package prompt assembles ranked candidates into a bounded context block
// and builds the generation prompt around it.
package prompt

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/mementohq/memento-go/core"
)

const (
	// DefaultBudget bounds the assembled context in bytes.
	DefaultBudget = 4000

	blockSeparator = "\n\n---\n\n"
	snippetLen     = 200
)

const systemPrompt = `You are a helpful assistant with access to the user's personal memory.
Answer questions based on the provided context. If the context doesn't contain relevant information, say so clearly.
Always cite your sources using [Source N] notation.`

const noContextPrompt = `You are a helpful assistant with access to the user's personal memory.
No relevant information was found in the user's memory for this question. Provide a helpful response based on your general knowledge and say that nothing relevant was stored.`

// Context is the assembled, budgeted context block plus the candidates that
// made it in, in rank order. Included carries the chunk ids later recorded
// as message citations.
type Context struct {
	Text     string
	Included []core.Candidate
}

// Assemble selects the longest prefix of ranked candidates whose formatted
// blocks fit within budget bytes, preserving rank order. Duplicate chunk
// texts are skipped. If even the single best candidate exceeds the budget,
// its text is truncated to fit rather than returning an empty context.
func Assemble(ranked []core.Candidate, budget int) Context {
	if budget <= 0 {
		budget = DefaultBudget
	}

	var (
		parts []string
		out   Context
		used  int
		seen  = make(map[string]struct{})
	)

	for _, c := range ranked {
		if c.Text == "" {
			continue
		}
		if _, dup := seen[c.Text]; dup {
			continue
		}

		block := formatBlock(c, len(out.Included)+1)
		cost := len(block)
		if len(parts) > 0 {
			cost += len(blockSeparator)
		}
		if used+cost > budget {
			break
		}

		seen[c.Text] = struct{}{}
		parts = append(parts, block)
		out.Included = append(out.Included, c)
		used += cost
	}

	if len(parts) == 0 && len(ranked) > 0 && ranked[0].Text != "" {
		// The best chunk alone blows the budget: truncate it.
		c := ranked[0]
		overhead := len(formatBlock(c, 1)) - len(c.Text)
		keep := budget - overhead
		if keep < 1 {
			keep = 1
		}
		if keep < len(c.Text) {
			for keep > 1 && !utf8.RuneStart(c.Text[keep]) {
				keep--
			}
			c.Text = c.Text[:keep]
		}
		parts = append(parts, formatBlock(c, 1))
		out.Included = append(out.Included, ranked[0])
	}

	out.Text = strings.Join(parts, blockSeparator)
	return out
}

func formatBlock(c core.Candidate, n int) string {
	return fmt.Sprintf("[Source %d]\nType: %s\n\nContent:\n%s", n, c.ContentType, c.Text)
}

// System returns the system prompt for generation, embedding the context
// block when one exists.
func System(ctx Context) string {
	if ctx.Text == "" {
		return noContextPrompt
	}
	return systemPrompt + "\n\nHere is relevant information from the user's memory:\n\n" + ctx.Text
}

var sourceRef = regexp.MustCompile(`\[Source (\d+)\]`)

// ExtractSources resolves [Source N] references in the generated answer
// back to the included candidates. An answer that cites nothing reports
// every included candidate, so the caller always knows what the answer was
// grounded on.
func ExtractSources(answer string, ctx Context) []core.Source {
	cited := make(map[int]struct{})
	for _, m := range sourceRef.FindAllStringSubmatch(answer, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n >= 1 && n <= len(ctx.Included) {
			cited[n-1] = struct{}{}
		}
	}

	var sources []core.Source
	for i, c := range ctx.Included {
		if len(cited) > 0 {
			if _, ok := cited[i]; !ok {
				continue
			}
		}
		sources = append(sources, core.Source{
			MemoryID:    c.MemoryID,
			ChunkID:     c.ChunkID,
			ContentType: c.ContentType,
			Snippet:     snippet(c.Text),
			Similarity:  c.Similarity,
		})
	}
	return sources
}

func snippet(text string) string {
	if len(text) <= snippetLen {
		return text
	}
	keep := snippetLen
	for keep > 0 && !utf8.RuneStart(text[keep]) {
		keep-- // avoid splitting a rune
	}
	return text[:keep]
}
