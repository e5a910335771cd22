package benchmark

import "fmt"

var verdicts = map[string]bool{"YTA": true, "NTA": true, "ESH": true, "NAH": true}

// validate lists every way resp breaks the retrieval contract for k.
func validate(resp retrieveResponse, k int) []string {
	var problems []string
	if len(resp.Precedents) > k {
		problems = append(problems, fmt.Sprintf("%d precedents returned for k=%d", len(resp.Precedents), k))
	}
	if resp.Status != "ok" && resp.Status != "partial" {
		problems = append(problems, fmt.Sprintf("unknown status %q", resp.Status))
	}
	for i, p := range resp.Precedents {
		if !verdicts[p.Verdict] {
			problems = append(problems, fmt.Sprintf("precedent %s has verdict %q", p.ID, p.Verdict))
		}
		if len(p.Comments) == 0 {
			problems = append(problems, fmt.Sprintf("precedent %s has no comments", p.ID))
		}
		if p.Rank != i+1 {
			problems = append(problems, fmt.Sprintf("precedent %s at position %d has rank %d", p.ID, i+1, p.Rank))
		}
	}
	return problems
}
