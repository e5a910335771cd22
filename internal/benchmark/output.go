package benchmark

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// ReadScenarios reads one scenario per non-blank line. Lines starting with
// # are comments.
func ReadScenarios(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}

// WriteSummary prints r for a terminal.
func WriteSummary(w io.Writer, r Report) {
	fmt.Fprintf(w, "requests:   %d (ok %d, failed %d, invalid %d, partial %d)\n",
		r.Requests, r.Succeeded, r.Failed, r.Invalid, r.Partial)
	fmt.Fprintf(w, "latency:    p50 %s  p95 %s  p99 %s  max %s\n", r.P50, r.P95, r.P99, r.Max)
	fmt.Fprintf(w, "duration:   %s (%.1f req/s)\n", r.Duration, r.Throughput)
	if len(r.Problems) > 0 {
		fmt.Fprintln(w, "problems:")
		for _, p := range r.Problems {
			fmt.Fprintf(w, "  - %s\n", p)
		}
	}
}
