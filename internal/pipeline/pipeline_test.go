package pipeline_test

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"strings"
	"testing"

	"github.com/alban-g/go-phraser/internal/pipeline"
	"github.com/alban-g/go-phraser/internal/rewrite"
	"github.com/alban-g/go-phraser/internal/segment"
)

// fakeService is a Rewriter that records calls and delegates to fn.
type fakeService struct {
	calls   int
	batches [][]string
	fn      func(texts []string) (map[string][]string, error)
}

func (f *fakeService) RewriteBatch(_ context.Context, texts []string) (map[string][]string, error) {
	f.calls++
	f.batches = append(f.batches, slices.Clone(texts))
	return f.fn(texts)
}

// echoService accepts every unit by returning a trivially valid rewrite.
func echoService() *fakeService {
	return &fakeService{fn: func(texts []string) (map[string][]string, error) {
		out := make(map[string][]string, len(texts))
		for _, t := range texts {
			out[t] = []string{"compris"}
		}
		return out, nil
	}}
}

func TestNew_RewriteModeRequiresRewriter(t *testing.T) {
	t.Parallel()

	if _, err := pipeline.New(8, segment.ModeRewrite); !errors.Is(err, pipeline.ErrNoRewriter) {
		t.Errorf("got %v, want ErrNoRewriter", err)
	}

	if _, err := pipeline.New(8, segment.ModeMechanical); err != nil {
		t.Errorf("mechanical mode should not need a rewriter: %v", err)
	}
}

func TestProcess_RejectsShortInput(t *testing.T) {
	t.Parallel()

	c, err := pipeline.New(8, segment.ModeMechanical)
	if err != nil {
		t.Fatal(err)
	}

	for _, in := range []string{"", "   ", "court"} {
		if _, err := c.Process(context.Background(), in); !errors.Is(err, pipeline.ErrEmptyInput) {
			t.Errorf("input %q: got %v, want ErrEmptyInput", in, err)
		}
	}
}

func TestProcess_DirectPassThrough(t *testing.T) {
	t.Parallel()

	// Scenario: a short complete sentence in mechanical mode passes
	// through untouched.
	c, err := pipeline.New(8, segment.ModeMechanical)
	if err != nil {
		t.Fatal(err)
	}

	results, err := c.Process(context.Background(), "Le chat est noir.")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}

	r := results[0]
	if r.Method != pipeline.MethodDirect {
		t.Errorf("got method %v, want Direct", r.Method)
	}
	if want := []string{"Le chat est noir."}; !slices.Equal(r.Output, want) {
		t.Errorf("got output %q, want %q", r.Output, want)
	}
	if !r.Success || r.WordCount != 4 {
		t.Errorf("got success=%v wordCount=%d, want true/4", r.Success, r.WordCount)
	}
}

func TestProcess_UnpunctuatedFragmentIsChunkedNotDirect(t *testing.T) {
	t.Parallel()

	// A noun phrase with no terminal punctuation and no conjugated verb is
	// chunked in mechanical mode, never passed through as a sentence.
	c, err := pipeline.New(8, segment.ModeMechanical)
	if err != nil {
		t.Fatal(err)
	}

	results, err := c.Process(context.Background(), "Le chat noir")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}

	r := results[0]
	if r.Method != pipeline.MethodMechanical {
		t.Errorf("got method %v, want Mechanical", r.Method)
	}
	if !strings.Contains(r.Reason, "not a complete sentence") {
		t.Errorf("got reason %q", r.Reason)
	}
	if !r.Success {
		t.Error("mechanical output must still succeed")
	}
}

func TestProcess_MechanicalChunking(t *testing.T) {
	t.Parallel()

	// Twenty words, no punctuation: ceil(20/8) = 3 chunks whose
	// concatenation reconstructs the original word sequence.
	words := []string{
		"un", "deux", "trois", "quatre", "cinq", "six", "sept", "huit",
		"neuf", "dix", "onze", "douze", "treize", "quatorze", "quinze",
		"seize", "dixsept", "dixhuit", "dixneuf", "vingt",
	}
	input := strings.Join(words, " ")

	c, err := pipeline.New(8, segment.ModeMechanical)
	if err != nil {
		t.Fatal(err)
	}
	results, err := c.Process(context.Background(), input)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}

	r := results[0]
	if r.Method != pipeline.MethodMechanical {
		t.Errorf("got method %v, want Mechanical", r.Method)
	}
	if len(r.Output) != 3 {
		t.Fatalf("got %d chunks, want 3", len(r.Output))
	}
	for _, chunk := range r.Output {
		if wc := len(strings.Fields(chunk)); wc > 8 {
			t.Errorf("chunk %q has %d words", chunk, wc)
		}
	}
	if got := strings.Join(r.Output, " "); got != input {
		t.Errorf("concatenation does not reconstruct input:\n got %q\nwant %q", got, input)
	}
}

func TestProcess_FragmentsAreChunkedNotPassedThrough(t *testing.T) {
	t.Parallel()

	c, err := pipeline.New(8, segment.ModeMechanical)
	if err != nil {
		t.Fatal(err)
	}

	// A page number stranded between two paragraphs.
	results, err := c.Process(context.Background(), "Le chat dort.\n\n127.\n\nIl se réveille.")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	var fragment *pipeline.Result
	for i := range results {
		if results[i].Original == "127." {
			fragment = &results[i]
		}
	}
	if fragment == nil {
		t.Fatalf("page number unit not found in %+v", results)
	}
	if fragment.Method != pipeline.MethodMechanical {
		t.Errorf("got method %v, want Mechanical for a digits-only fragment", fragment.Method)
	}
	if !fragment.Success {
		t.Error("mechanical output must still succeed")
	}
}

func TestProcess_ServiceRewriteAccepted(t *testing.T) {
	t.Parallel()

	input := "Le capitaine observait les vagues immenses et la vigie scrutait attentivement la mer."
	svc := &fakeService{fn: func(texts []string) (map[string][]string, error) {
		return map[string][]string{
			texts[0]: {
				"Le capitaine observait les vagues immenses.",
				"La vigie scrutait attentivement la mer.",
			},
		}, nil
	}}

	c, err := pipeline.New(8, segment.ModeRewrite, pipeline.WithRewriter(svc))
	if err != nil {
		t.Fatal(err)
	}
	results, err := c.Process(context.Background(), input)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}

	r := results[0]
	if r.Method != pipeline.MethodServiceRewritten {
		t.Errorf("got method %v (%s), want ServiceRewritten", r.Method, r.Reason)
	}
	if len(r.Output) != 2 {
		t.Errorf("got %d sentences, want 2", len(r.Output))
	}
	if svc.calls != 1 {
		t.Errorf("got %d service calls, want 1", svc.calls)
	}

	stats, ok := c.Stats()
	if !ok {
		t.Fatal("stats should be available after a run")
	}
	if stats.ServiceRewritten != 1 || stats.ServiceCalls != 1 {
		t.Errorf("got stats %+v, want ServiceRewritten=1 ServiceCalls=1", stats)
	}
}

func TestProcess_OverlimitCandidateIsRepaired(t *testing.T) {
	t.Parallel()

	// The service answers with one 9-word sentence for a 12-word unit.
	// With tolerance 0 the validator rejects it and the repairer splits
	// it at the comma; the repaired output passes revalidation.
	input := "Le capitaine observait les vagues immenses et la vigie scrutait attentivement l'horizon."
	svc := &fakeService{fn: func(texts []string) (map[string][]string, error) {
		return map[string][]string{
			texts[0]: {"Le capitaine observait les vagues, la vigie scrutait l'horizon."},
		}, nil
	}}

	c, err := pipeline.New(8, segment.ModeRewrite,
		pipeline.WithRewriter(svc),
		pipeline.WithTolerance(0),
	)
	if err != nil {
		t.Fatal(err)
	}
	results, err := c.Process(context.Background(), input)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	r := results[0]
	if r.Method != pipeline.MethodServiceRepaired {
		t.Fatalf("got method %v (%s), want ServiceRepaired", r.Method, r.Reason)
	}
	want := []string{
		"Le capitaine observait les vagues",
		"la vigie scrutait l'horizon",
	}
	if !slices.Equal(r.Output, want) {
		t.Errorf("got output %q, want %q", r.Output, want)
	}
	if !strings.Contains(r.Reason, "word count exceeded") {
		t.Errorf("reason should record the original rejection, got %q", r.Reason)
	}

	stats, _ := c.Stats()
	if stats.ServiceRepaired != 1 {
		t.Errorf("got stats %+v, want ServiceRepaired=1", stats)
	}
}

func TestProcess_FailedRepairFallsBackToMechanical(t *testing.T) {
	t.Parallel()

	// An over-limit candidate that shares no vocabulary with the unit:
	// the repairer can fix the length but revalidation fails on content.
	input := "Le capitaine observait les vagues immenses et la vigie scrutait attentivement l'horizon."
	svc := &fakeService{fn: func(texts []string) (map[string][]string, error) {
		return map[string][]string{
			texts[0]: {"11111 22222 33333 44444 55555 66666 77777 88888 99999"},
		}, nil
	}}

	c, err := pipeline.New(8, segment.ModeRewrite,
		pipeline.WithRewriter(svc),
		pipeline.WithTolerance(0),
	)
	if err != nil {
		t.Fatal(err)
	}
	results, err := c.Process(context.Background(), input)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	r := results[0]
	if r.Method != pipeline.MethodMechanical {
		t.Fatalf("got method %v, want Mechanical", r.Method)
	}
	if !strings.Contains(r.Reason, "repair failed") {
		t.Errorf("got reason %q, want repair failure recorded", r.Reason)
	}
	if !r.Success {
		t.Error("mechanical fallback must succeed")
	}
	// Fallback chunks the original unit, not the rejected candidate.
	if got := strings.Join(r.Output, " "); got != input {
		t.Errorf("fallback output %q does not reconstruct the unit", got)
	}

	stats, _ := c.Stats()
	if stats.Failures != 1 {
		t.Errorf("got stats %+v, want Failures=1", stats)
	}
}

func TestProcess_ServiceErrorFailsWholeBatch(t *testing.T) {
	t.Parallel()

	// Three oversized paragraphs, one failing service call: every unit
	// falls back mechanically and carries the error text.
	paragraphs := []string{
		"Le capitaine observait silencieusement les vagues immenses depuis la haute passerelle du navire.",
		"La vigie scrutait patiemment la ligne sombre qui séparait le ciel noir de la mer.",
		"Les matelots fatigués hissaient lentement les lourdes voiles trempées sous la pluie battante du soir.",
	}
	svc := &fakeService{fn: func([]string) (map[string][]string, error) {
		return nil, errors.New("quota exhausted")
	}}

	c, err := pipeline.New(8, segment.ModeRewrite, pipeline.WithRewriter(svc))
	if err != nil {
		t.Fatal(err)
	}
	results, err := c.Process(context.Background(), strings.Join(paragraphs, "\n\n"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}

	for i, r := range results {
		if r.Method != pipeline.MethodMechanical {
			t.Errorf("result %d: got method %v, want Mechanical", i, r.Method)
		}
		if !r.Success {
			t.Errorf("result %d: fallback must succeed", i)
		}
		if !strings.Contains(r.Reason, "quota exhausted") {
			t.Errorf("result %d: got reason %q, want service error recorded", i, r.Reason)
		}
	}

	stats, _ := c.Stats()
	if stats.Mechanical != 3 || stats.Failures != 3 || stats.ServiceCalls != 1 {
		t.Errorf("got stats %+v, want Mechanical=3 Failures=3 ServiceCalls=1", stats)
	}
}

func TestProcess_MissingBatchEntryFallsBackIndependently(t *testing.T) {
	t.Parallel()

	// The service omits the second unit: it falls back alone while its
	// sibling is still accepted.
	paragraphs := []string{
		"Le capitaine observait silencieusement les vagues immenses depuis la haute passerelle du navire.",
		"La vigie scrutait patiemment la ligne sombre qui séparait le ciel noir de la mer.",
	}
	svc := &fakeService{fn: func(texts []string) (map[string][]string, error) {
		return map[string][]string{
			texts[0]: {
				"Le capitaine observait silencieusement les vagues immenses.",
				"Il était sur la haute passerelle du navire.",
			},
		}, nil
	}}

	c, err := pipeline.New(8, segment.ModeRewrite, pipeline.WithRewriter(svc))
	if err != nil {
		t.Fatal(err)
	}
	results, err := c.Process(context.Background(), strings.Join(paragraphs, "\n\n"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if results[0].Method != pipeline.MethodServiceRewritten {
		t.Errorf("result 0: got %v (%s), want ServiceRewritten", results[0].Method, results[0].Reason)
	}
	if results[1].Method != pipeline.MethodMechanical {
		t.Errorf("result 1: got %v, want Mechanical", results[1].Method)
	}
	if !strings.Contains(results[1].Reason, "no result") {
		t.Errorf("result 1: got reason %q", results[1].Reason)
	}
}

func TestProcess_RepeatedUnitServedFromCache(t *testing.T) {
	t.Parallel()

	// Six ~100-word paragraphs force a batch capacity of 4, so the
	// repeated paragraph lands after its first copy was accepted and is
	// served from the cache without a second service call for it.
	long := func(word string) string {
		return strings.TrimSpace(strings.Repeat(word+" ", 100))
	}
	paragraphs := []string{
		long("mota"), long("motb"), long("motc"),
		long("motd"), long("mote"), long("mota"),
	}

	svc := echoService()
	c, err := pipeline.New(8, segment.ModeRewrite,
		pipeline.WithRewriter(svc),
		pipeline.WithMinOverlap(0),
	)
	if err != nil {
		t.Fatal(err)
	}
	results, err := c.Process(context.Background(), strings.Join(paragraphs, "\n\n"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if svc.calls != 2 {
		t.Fatalf("got %d service calls, want 2 (batch of 4, then remainder)", svc.calls)
	}
	if len(svc.batches[0]) != 4 || len(svc.batches[1]) != 1 {
		t.Errorf("got batch sizes %d and %d, want 4 and 1",
			len(svc.batches[0]), len(svc.batches[1]))
	}

	last := results[5]
	if last.Method != pipeline.MethodServiceRewritten || last.Reason != "cache hit" {
		t.Errorf("got method %v reason %q, want cached ServiceRewritten", last.Method, last.Reason)
	}
	if want := []string{"compris"}; !slices.Equal(last.Output, want) {
		t.Errorf("got output %q, want %q", last.Output, want)
	}

	stats, _ := c.Stats()
	if stats.CacheHits != 1 {
		t.Errorf("got stats %+v, want CacheHits=1", stats)
	}
}

func TestProcess_WordLimitInvariant(t *testing.T) {
	t.Parallel()

	input := "Le chat dort. " +
		"Le capitaine observait silencieusement les vagues immenses depuis la haute passerelle du navire pendant la tempête. " +
		"Des mots sans ponctuation se suivent ici longuement et interminablement sans aucune pause naturelle visible."

	for _, limit := range []int{4, 8} {
		c, err := pipeline.New(limit, segment.ModeMechanical)
		if err != nil {
			t.Fatal(err)
		}
		results, err := c.Process(context.Background(), input)
		if err != nil {
			t.Fatalf("Process: %v", err)
		}

		for _, r := range results {
			if !r.Success {
				t.Errorf("limit %d: unit %q did not succeed", limit, r.Original)
			}
			if len(r.Output) == 0 {
				t.Errorf("limit %d: unit %q has empty output", limit, r.Original)
			}
			for _, s := range r.Output {
				if wc := len(strings.Fields(s)); wc > limit {
					t.Errorf("limit %d: sentence %q has %d words", limit, s, wc)
				}
			}
		}
	}
}

func TestProcess_MechanicalModeIsDeterministic(t *testing.T) {
	t.Parallel()

	input := "Le chat dort. Le capitaine observait silencieusement les vagues immenses depuis la haute passerelle du navire.\n\nLa vigie scrutait la mer."

	c1, err := pipeline.New(8, segment.ModeMechanical)
	if err != nil {
		t.Fatal(err)
	}
	c2, err := pipeline.New(8, segment.ModeMechanical)
	if err != nil {
		t.Fatal(err)
	}

	first, err := c1.Process(context.Background(), input)
	if err != nil {
		t.Fatal(err)
	}
	second, err := c2.Process(context.Background(), input)
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("mechanical runs differ:\n first: %+v\nsecond: %+v", first, second)
	}
}

func TestProcess_OversizedUnitSkipsService(t *testing.T) {
	t.Parallel()

	// A unit above the service ceiling is chunked without a call.
	huge := strings.TrimSpace(strings.Repeat("mot ", 600))
	svc := echoService()

	c, err := pipeline.New(8, segment.ModeRewrite, pipeline.WithRewriter(svc))
	if err != nil {
		t.Fatal(err)
	}
	results, err := c.Process(context.Background(), huge)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	r := results[0]
	if r.Method != pipeline.MethodMechanical {
		t.Errorf("got method %v, want Mechanical", r.Method)
	}
	if !strings.Contains(r.Reason, "service ceiling") {
		t.Errorf("got reason %q", r.Reason)
	}
	if svc.calls != 0 {
		t.Errorf("got %d service calls, want 0", svc.calls)
	}
}

func TestProcess_ProgressReportsEveryUnit(t *testing.T) {
	t.Parallel()

	var dones []int
	total := 0

	c, err := pipeline.New(8, segment.ModeMechanical,
		pipeline.WithProgress(func(done, t int, _ string) {
			dones = append(dones, done)
			total = t
		}),
	)
	if err != nil {
		t.Fatal(err)
	}
	results, err := c.Process(context.Background(), "Le chat dort. La vigie regarde. Les matelots chantent.")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if total != len(results) {
		t.Errorf("got total %d, want %d", total, len(results))
	}
	for i, done := range dones {
		if done != i+1 {
			t.Fatalf("got progress sequence %v, want 1..%d", dones, len(results))
		}
	}
}

func TestStats_UnavailableBeforeFirstRun(t *testing.T) {
	t.Parallel()

	c, err := pipeline.New(8, segment.ModeMechanical)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Stats(); ok {
		t.Error("stats should not be available before a run")
	}
}

func TestBatchCapacity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mean float64
		want int
	}{
		{0, 50},  // degenerate mean clamps to the largest batch
		{8, 50},  // simple units, ceiling applies
		{10, 40}, // 400 / 10
		{40, 10}, // 400 / 40
		{100, 4}, // complex units hit the floor
		{300, 4}, // floor holds
	}
	for _, tt := range tests {
		if got := pipeline.BatchCapacity(tt.mean); got != tt.want {
			t.Errorf("BatchCapacity(%v) = %d, want %d", tt.mean, got, tt.want)
		}
	}
}

func TestLooksLikeSentence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want bool
	}{
		{"Le chat est noir.", true},
		{"Elle va bien !", true},
		{"Ils vont au marché…", true},
		{`Il s'est levé."`, true}, // elision exposes "est"; closing quote allowed
		{"Le chat dort.", false},  // no common conjugated verb
		{"Il est parti", false},   // verb but no terminal punctuation
		{"Le chat noir", false},   // noun phrase
		{"127.", false},           // page number
		{"42 17", false},          // digits only
		{"mot", false},            // single word
	}
	for _, tt := range tests {
		wc := len(strings.Fields(tt.text))
		if got := pipeline.LooksLikeSentence(tt.text, wc); got != tt.want {
			t.Errorf("LooksLikeSentence(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestMethodString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		method pipeline.Method
		want   string
	}{
		{pipeline.MethodDirect, "Direct"},
		{pipeline.MethodServiceRewritten, "Service-Rewritten"},
		{pipeline.MethodServiceRepaired, "Service-Repaired"},
		{pipeline.MethodMechanical, "Mechanical-Chunked"},
		{pipeline.Method(99), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.method.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.method, got, tt.want)
		}
	}
}

// Interface compliance of the fake used across these tests.
var _ rewrite.Rewriter = (*fakeService)(nil)
