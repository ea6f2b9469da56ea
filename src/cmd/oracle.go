package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/username/steuerfolio/src/classification"
)

// consoleOracle prompts on the given writer and reads choices line by line.
// Prompts go to stderr so they interleave with the log instead of the
// report tables. An empty line or EOF accepts the suggestion.
func consoleOracle(in io.Reader, out io.Writer) classification.Oracle {
	scanner := bufio.NewScanner(in)
	return func(review classification.PendingReview) (classification.Decision, error) {
		a := review.Asset
		fmt.Fprintf(out, "\nClassification review: %s\n", a.DisplayName())
		if a.Description != "" {
			fmt.Fprintf(out, "  description: %s\n", a.Description)
		}
		fmt.Fprintf(out, "  broker category: %s / %s\n", a.RawCategory, a.RawSubCategory)
		fmt.Fprintf(out, "  suggested: %s\n", decisionLabel(review.Suggested))
		for i, d := range review.Menu {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, decisionLabel(d))
		}

		for {
			fmt.Fprintf(out, "choice (enter = accept suggestion): ")
			if !scanner.Scan() {
				return review.Suggested, nil
			}
			line := strings.TrimSpace(scanner.Text())
			var d classification.Decision
			if line == "" {
				d = review.Suggested
			} else {
				n, err := strconv.Atoi(line)
				if err != nil || n < 1 || n > len(review.Menu) {
					fmt.Fprintf(out, "enter a number between 1 and %d\n", len(review.Menu))
					continue
				}
				d = review.Menu[n-1]
			}
			// The note is cached with the decision, so the reasoning survives
			// into later runs.
			fmt.Fprintf(out, "note (enter = none): ")
			if scanner.Scan() {
				if note := strings.TrimSpace(scanner.Text()); note != "" {
					d.Notes = note
				}
			}
			return d, nil
		}
	}
}

func decisionLabel(d classification.Decision) string {
	if d.FundType != "" {
		return fmt.Sprintf("%s (%s)", d.Category, d.FundType)
	}
	return string(d.Category)
}
