package harness

// Trace event kinds.
const (
	EventDirective = "directive" // a rendered include call
	EventFinding   = "finding"   // a validator finding, "CODE: message"
	EventFix       = "fix"       // the suggested rewrite of a finding
	EventError     = "error"     // a walk, reduce or compose failure, "KIND: message"
	EventStatement = "statement" // a planned SQL statement
	EventPlan      = "plan"      // the plan hash of a case
)

// TraceEvent is one outcome of one case.
type TraceEvent struct {
	Seq  int64  `json:"seq"`
	Case string `json:"case"`
	Kind string `json:"kind"`
	Text string `json:"text"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace holds every case outcome in execution order.
	Trace []TraceEvent `json:"trace"`

	// Errors holds expect and assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Plans maps each case that lowered to its plan hash.
	Plans map[string]string `json:"plans,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Plans:  make(map[string]string),
	}
}

// AddError adds a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// record appends an event with the next sequence number.
func (r *Result) record(caseName, kind, text string) {
	r.Trace = append(r.Trace, TraceEvent{
		Seq:  int64(len(r.Trace) + 1),
		Case: caseName,
		Kind: kind,
		Text: text,
	})
}

// events returns the events of caseName, or all events when caseName is
// empty, restricted to kind when kind is not empty.
func (r *Result) events(caseName, kind string) []TraceEvent {
	var out []TraceEvent
	for _, e := range r.Trace {
		if (caseName == "" || e.Case == caseName) && (kind == "" || e.Kind == kind) {
			out = append(out, e)
		}
	}
	return out
}
