package pipeline

// Method identifies the terminal path that produced a unit's output.
// The set is closed so dispatching on it is exhaustive; the free-text
// Reason on a Result carries the details.
type Method int

const (
	// MethodDirect passes a unit through unchanged (already within limit).
	MethodDirect Method = iota

	// MethodServiceRewritten uses the rewriting service's output as returned.
	MethodServiceRewritten

	// MethodServiceRepaired uses service output after local re-splitting.
	MethodServiceRepaired

	// MethodMechanical falls back to fixed-size word windowing.
	MethodMechanical
)

// String returns the method tag used in exported output.
func (m Method) String() string {
	switch m {
	case MethodDirect:
		return "Direct"
	case MethodServiceRewritten:
		return "Service-Rewritten"
	case MethodServiceRepaired:
		return "Service-Repaired"
	case MethodMechanical:
		return "Mechanical-Chunked"
	default:
		return "Unknown"
	}
}

// Result is the externally visible record for one processed unit.
// Output is never empty when Success is true.
type Result struct {
	// Original is the unit text as segmented.
	Original string

	// Output is the final ordered sentence list for the unit.
	Output []string

	// Method is the terminal path that produced Output.
	Method Method

	// WordCount is the original unit's whitespace-delimited word count.
	WordCount int

	// Success reports whether the unit produced usable output.
	Success bool

	// Reason explains a non-obvious path: why a unit fell back, was
	// repaired, or was served from cache. Empty on ordinary paths.
	Reason string
}

// Statistics holds process-wide counters for one run. They are written only
// by the running Controller and read by progress observers and the final
// summary.
type Statistics struct {
	TotalUnits       int
	Direct           int
	ServiceRewritten int
	ServiceRepaired  int
	Mechanical       int

	// Failures counts units that fell back after a service, validation,
	// or repair failure. Mechanical chunking chosen by mode or size is
	// not a failure.
	Failures int

	ServiceCalls int
	CacheHits    int
}

func (s *Statistics) add(m Method, failed bool) {
	s.TotalUnits++
	switch m {
	case MethodDirect:
		s.Direct++
	case MethodServiceRewritten:
		s.ServiceRewritten++
	case MethodServiceRepaired:
		s.ServiceRepaired++
	case MethodMechanical:
		s.Mechanical++
	}
	if failed {
		s.Failures++
	}
}
