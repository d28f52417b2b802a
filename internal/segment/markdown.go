package segment

import (
	"regexp"
	"strings"
)

const (
	KindSection    = "section"
	KindCompany    = "company_or_project"
	KindSubsection = "subsection"
	KindPeriod     = "period"
	KindTask       = "task"
	KindText       = "text"
	metaPrefix     = "meta_"

	contextDepth  = 5
	minTaskLength = 5

	metaPeriod      = "기간"
	metaOverview    = "개요"
	metaStack       = "기술"
	metaAchievement = "성과"
)

// Metadata keys emitted as standalone chunks, in emission order.
var chunkedMetaKeys = []string{metaOverview, metaStack, metaAchievement}

var (
	horizontalRule = regexp.MustCompile(`^[-=*_]{3,}$`)
	periodLine     = regexp.MustCompile(`^\d{4}\.\d{2}\s*[–-]\s*\d{4}\.\d{2}`)
	bulletMarker   = regexp.MustCompile(`^[-*•]\s+`)

	inlineMarkup = []struct {
		pattern *regexp.Regexp
		repl    string
	}{
		{regexp.MustCompile(`\*\*(.+?)\*\*`), "${1}"},
		{regexp.MustCompile(`__(.+?)__`), "${1}"},
		{regexp.MustCompile(`\*(.+?)\*`), "${1}"},
		{regexp.MustCompile(`_(.+?)_`), "${1}"},
		{regexp.MustCompile(`\[(.+?)\]\(.+?\)`), "${1}"},
		{regexp.MustCompile("`(.+?)`"), "${1}"},
	}
)

// Node is one parsed markdown line.
type Node struct {
	Level   int
	Kind    string
	Content string
	// Context holds the contents of the enclosing levels, outermost first.
	Context []string
}

// MetaKey returns the key of a meta node and whether the node is one.
func (n Node) MetaKey() (string, bool) {
	return strings.CutPrefix(n.Kind, metaPrefix)
}

type group struct {
	context  string
	tasks    []string
	metadata map[string]string
}

func (g *group) empty() bool {
	return len(g.tasks) == 0 && len(g.metadata) == 0
}

// Parse turns markdown text into nodes. Blank lines and horizontal rules are skipped.
func Parse(text string) []Node {
	var (
		nodes []Node
		stack [contextDepth]string
	)

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || horizontalRule.MatchString(line) {
			continue
		}

		level, kind, content := parseLine(line)

		stack[level] = content
		for i := level + 1; i < contextDepth; i++ {
			stack[i] = ""
		}

		var context []string
		for _, c := range stack[:level] {
			if c != "" {
				context = append(context, c)
			}
		}

		nodes = append(nodes, Node{
			Level:   level,
			Kind:    kind,
			Content: content,
			Context: context,
		})
	}

	return nodes
}

func parseLine(line string) (int, string, string) {
	switch {
	case strings.HasPrefix(line, "## "):
		return 1, KindSection, strings.TrimSpace(line[3:])
	case strings.HasPrefix(line, "### "):
		return 2, KindCompany, cleanMarkdown(line[4:])
	case strings.HasPrefix(line, "#### "):
		return 3, KindSubsection, cleanMarkdown(line[5:])
	case periodLine.MatchString(line):
		return 3, KindPeriod, line
	case strings.HasPrefix(line, "**") && strings.Contains(line, ":**"):
		key, value, _ := strings.Cut(line, ":**")
		key = strings.TrimSpace(strings.ReplaceAll(key, "**", ""))
		return 3, metaPrefix + key, strings.TrimSpace(value)
	case strings.HasPrefix(line, "-"), strings.HasPrefix(line, "*"), strings.HasPrefix(line, "•"):
		return 4, KindTask, cleanMarkdown(bulletMarker.ReplaceAllString(line, ""))
	default:
		return 4, KindText, cleanMarkdown(line)
	}
}

func cleanMarkdown(text string) string {
	for _, m := range inlineMarkup {
		text = m.pattern.ReplaceAllString(text, m.repl)
	}
	return strings.TrimSpace(text)
}

func (s *Segmenter) segmentMarkdown(text string) []string {
	var chunks []string

	for _, g := range groupNodes(Parse(text)) {
		context := g.context
		if period := g.metadata[metaPeriod]; period != "" {
			context += " (" + period + ")"
		}

		for _, key := range chunkedMetaKeys {
			value := g.metadata[key]
			if value == "" {
				continue
			}
			if chunk := context + " - " + key + ": " + value; length(chunk) >= s.MinChunkLength {
				chunks = append(chunks, chunk)
			}
		}

		chunks = append(chunks, s.packTasks(context, g.tasks)...)
	}

	return chunks
}

// packTasks joins tasks under one context prefix into buckets bounded by the
// maximum length. Only the last bucket is subject to the minimum length.
func (s *Segmenter) packTasks(context string, tasks []string) []string {
	switch len(tasks) {
	case 0:
		return nil
	case 1:
		if chunk := context + ": " + tasks[0]; length(chunk) >= s.MinChunkLength {
			return []string{chunk}
		}
		return nil
	}

	var (
		chunks []string
		bucket []string
	)
	prefix := length(context) + 2
	current := prefix

	for _, task := range tasks {
		tentative := current + length(task) + 2
		if tentative > s.MaxChunkLength && len(bucket) > 0 {
			chunks = append(chunks, context+": "+strings.Join(bucket, "; "))
			bucket = []string{task}
			current = prefix + length(task)
			continue
		}

		bucket = append(bucket, task)
		current = tentative
	}

	if len(bucket) > 0 {
		if chunk := context + ": " + strings.Join(bucket, "; "); length(chunk) >= s.MinChunkLength {
			chunks = append(chunks, chunk)
		}
	}

	return chunks
}

// groupNodes collects nodes under their nearest section or company heading.
// Groups without tasks and metadata are discarded.
func groupNodes(nodes []Node) []*group {
	var (
		groups  []*group
		current *group
	)

	for _, node := range nodes {
		switch node.Kind {
		case KindSection, KindCompany:
			if current != nil && !current.empty() {
				groups = append(groups, current)
			}
			current = &group{context: node.Content, metadata: map[string]string{}}
			continue
		}

		if current == nil {
			continue
		}

		if key, ok := node.MetaKey(); ok {
			current.metadata[key] = node.Content
			continue
		}

		switch node.Kind {
		case KindPeriod:
			current.context += " (" + node.Content + ")"
		case KindTask, KindText, KindSubsection:
			if length(node.Content) >= minTaskLength {
				current.tasks = append(current.tasks, node.Content)
			}
		}
	}

	if current != nil && !current.empty() {
		groups = append(groups, current)
	}

	return groups
}
