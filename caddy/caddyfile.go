package caddy

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Site blocks managed by the deployer have the shape
//
//	example.com {
//		reverse_proxy localhost:3333
//	}
//
// Patching is line-based with brace tracking so unrelated blocks and
// operator-added directives inside a managed block survive untouched.

func siteBlockLines(domainName string, port int) []string {
	return []string{
		domainName + " {",
		"\treverse_proxy localhost:" + strconv.Itoa(port),
		"}",
	}
}

func siteBlock(domainName string, port int) string {
	return strings.Join(siteBlockLines(domainName, port), "\n") + "\n"
}

// findBlock locates the block whose heading is exactly domainName and
// returns the line indices of its heading and closing brace. Headings with
// multiple addresses never match; the deployer only writes single-address
// blocks.
func findBlock(lines []string, domainName string) (int, int) {
	depth := 0
	start := -1
	for i, line := range lines {
		if depth == 0 && start == -1 {
			// The heading is whatever precedes the opening brace. This
			// also catches one-line blocks, which open and close on the
			// same line.
			if idx := strings.Index(line, "{"); idx >= 0 {
				heading := strings.TrimSpace(line[:idx])
				if heading == domainName {
					start = i
				}
			}
		}
		depth += strings.Count(line, "{") - strings.Count(line, "}")
		if start >= 0 && depth <= 0 {
			return start, i
		}
	}
	return -1, -1
}

// upsertBlock returns content with the domain's block pointing at port:
// the port of an existing block is rewritten in place, a missing block is
// appended.
func upsertBlock(content, domainName string, port int) string {
	lines := strings.Split(content, "\n")

	start, end := findBlock(lines, domainName)
	if start == -1 {
		trimmed := strings.TrimRight(content, "\n")
		if trimmed == "" {
			return siteBlock(domainName, port)
		}
		return trimmed + "\n\n" + siteBlock(domainName, port)
	}

	if start == end {
		// A one-line block (not written by us); replace it wholesale.
		lines = slices.Replace(lines, start, start+1, siteBlockLines(domainName, port)...)
		return strings.Join(lines, "\n")
	}

	proxyLine := "\treverse_proxy localhost:" + strconv.Itoa(port)
	for i := start + 1; i < end; i++ {
		fields := strings.Fields(lines[i])
		if len(fields) > 0 && fields[0] == "reverse_proxy" {
			lines[i] = proxyLine
			return strings.Join(lines, "\n")
		}
	}

	// Managed block without a reverse_proxy directive; add one before the
	// closing brace.
	lines = slices.Insert(lines, end, proxyLine)
	return strings.Join(lines, "\n")
}

// removeBlock returns content without the domain's block and reports
// whether a block was removed.
func removeBlock(content, domainName string) (string, bool) {
	lines := strings.Split(content, "\n")

	start, end := findBlock(lines, domainName)
	if start == -1 {
		return content, false
	}

	lines = slices.Delete(lines, start, end+1)

	// Removing a block can leave two adjacent blank lines at the seam.
	if start > 0 && start < len(lines) &&
		strings.TrimSpace(lines[start-1]) == "" && strings.TrimSpace(lines[start]) == "" {
		lines = slices.Delete(lines, start, start+1)
	}
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}

	out := strings.TrimRight(strings.Join(lines, "\n"), "\n\t ")
	if out != "" {
		out += "\n"
	}
	return out, true
}

// blockPort reads the reverse_proxy port of the domain's block, for
// verification and listing. Returns 0 when the domain has no block.
func blockPort(content, domainName string) int {
	lines := strings.Split(content, "\n")
	start, end := findBlock(lines, domainName)
	if start == -1 {
		return 0
	}
	for i := start; i <= end; i++ {
		fields := strings.Fields(strings.TrimSuffix(strings.TrimSpace(lines[i]), "}"))
		for j, f := range fields {
			if f == "reverse_proxy" && j+1 < len(fields) {
				var port int
				if _, err := fmt.Sscanf(fields[j+1], "localhost:%d", &port); err == nil {
					return port
				}
			}
		}
	}
	return 0
}
