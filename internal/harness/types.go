package harness

// Outcome of a step that succeeded. Failed steps record the error code.
const OutcomeOK = "ok"

// TraceEvent records one executed store operation.
type TraceEvent struct {
	Seq     int    `json:"seq"`
	Op      string `json:"op"`
	Package string `json:"package,omitempty"`
	Outcome string `json:"outcome"`
	Result  any    `json:"result,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace holds one event per store operation, in execution order.
	Trace []TraceEvent `json:"trace"`

	// Errors holds expectation and assertion failures.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// addTrace appends an event with the next sequence number.
func (r *Result) addTrace(op, pkg, outcome string, result any) *TraceEvent {
	r.Trace = append(r.Trace, TraceEvent{
		Seq:     len(r.Trace) + 1,
		Op:      op,
		Package: pkg,
		Outcome: outcome,
		Result:  result,
	})
	return &r.Trace[len(r.Trace)-1]
}
