package benchmark

import (
	"fmt"
	"io"
)

// PrintStartPrompt tells the operator how to stop the run
func PrintStartPrompt(out io.Writer) {
	fmt.Fprintln(out, "Running benchmark, press Enter to stop...")
}

// PrintProgress prints the line for one completed iteration
func PrintProgress(out io.Writer, query string, r Result) {
	fmt.Fprintf(out, "Query execution: %d, Query: %s, Latency: %.2f ms, Request Charge: %.2f RUs\n",
		r.Iteration, query, r.LatencyMs(), r.RequestCharge)
}

// PrintSummary prints the summary block
func PrintSummary(out io.Writer, s Summary) {
	fmt.Fprint(out, "\nSummary\n\n")
	if s.Count == 0 {
		fmt.Fprintln(out, "No results recorded")
		return
	}
	fmt.Fprintf(out, "Average Latency:\t%.1f ms\n", s.AverageLatencyMs)
	fmt.Fprintf(out, "Average Request Units:\t%.1f RUs\n", s.AverageRequestCharge)
}

// PrintExitPrompt asks for the final key press
func PrintExitPrompt(out io.Writer) {
	fmt.Fprintln(out, "\nPress Enter to continue...")
}
