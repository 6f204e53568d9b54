package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/healthstore/internal/record"
	"github.com/roach88/healthstore/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes the trace to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s %s -> %s\n", event.Seq, event.Op, event.Package, event.Outcome)
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failure
// messages. Store errors while evaluating are reported as failures.
func EvaluateAssertions(ctx context.Context, result *Result, assertions []Assertion, st *store.Store) []string {
	var logs []store.AccessLog
	var logsErr error
	logsLoaded := false
	accessLogs := func() ([]store.AccessLog, error) {
		if !logsLoaded {
			logs, logsErr = st.AccessLogs(ctx, 0)
			logsLoaded = true
		}
		return logs, logsErr
	}

	var failures []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertAccessLogCount, AssertAccessLogOrder:
			var entries []store.AccessLog
			if entries, err = accessLogs(); err == nil {
				if a.Type == AssertAccessLogCount {
					err = assertAccessLogCount(entries, a, result.Trace)
				} else {
					err = assertAccessLogOrder(entries, a, result.Trace)
				}
			}
		case AssertPriority:
			err = assertPriority(ctx, st, a, result.Trace)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

// assertTraceCount checks that an operation appears exactly Count times.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	n := 0
	for _, event := range trace {
		if event.Op == a.Op {
			n++
		}
	}
	if n != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%s executed %d time(s)", a.Op, a.Count),
			Actual:   fmt.Sprintf("executed %d time(s)", n),
			Trace:    trace,
		}
	}
	return nil
}

// assertTraceOrder checks that operations appear in the given relative
// order. Intervening operations are allowed.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, event := range trace {
		if next < len(a.Ops) && event.Op == a.Ops[next] {
			next++
		}
	}
	if next < len(a.Ops) {
		return &AssertionError{
			Type:     AssertTraceOrder,
			Expected: fmt.Sprintf("operations in order %v", a.Ops),
			Actual:   fmt.Sprintf("%s not found after %v", a.Ops[next], a.Ops[:next]),
			Trace:    trace,
		}
	}
	return nil
}

func assertAccessLogCount(logs []store.AccessLog, a Assertion, trace []TraceEvent) error {
	n := 0
	for _, l := range logs {
		if l.PackageName == a.Package {
			n++
		}
	}
	if n != a.Count {
		return &AssertionError{
			Type:     AssertAccessLogCount,
			Expected: fmt.Sprintf("%d access log entr(ies) for %s", a.Count, a.Package),
			Actual:   fmt.Sprintf("%d", n),
			Trace:    trace,
		}
	}
	return nil
}

func assertAccessLogOrder(logs []store.AccessLog, a Assertion, trace []TraceEvent) error {
	got := make([]string, len(logs))
	for i, l := range logs {
		got[i] = l.PackageName
	}
	if !slices.Equal(got, a.Packages) {
		return &AssertionError{
			Type:     AssertAccessLogOrder,
			Expected: fmt.Sprintf("access log packages %v", a.Packages),
			Actual:   fmt.Sprintf("%v", got),
			Trace:    trace,
		}
	}
	return nil
}

func assertPriority(ctx context.Context, st *store.Store, a Assertion, trace []TraceEvent) error {
	got, err := st.PriorityList(ctx, record.Category(a.Category))
	if err != nil {
		return err
	}
	if len(got) == 0 && len(a.Packages) == 0 {
		return nil
	}
	if !slices.Equal(got, a.Packages) {
		return &AssertionError{
			Type:     AssertPriority,
			Expected: fmt.Sprintf("%s priority %v", a.Category, a.Packages),
			Actual:   fmt.Sprintf("%v", got),
			Trace:    trace,
		}
	}
	return nil
}
