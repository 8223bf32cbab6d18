package intent

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"rootcause/internal/query"
)

// orderPattern finds "order 123", "order #123", "order#123".
var orderPattern = regexp.MustCompile(`order\s*#?\s*(\d+)`)

// OrderReference extracts an explicit order reference from the question.
// ok reports whether one is present. ref is the number as written; id is
// zero when ref does not fit an int64, so no loaded order can match it.
func OrderReference(question string) (id int64, ref string, ok bool) {
	m := orderPattern.FindStringSubmatch(strings.ToLower(question))
	if m == nil {
		return 0, "", false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, m[1], true
	}
	return id, m[1], true
}

// orderIntent builds the query_order intent for an explicit reference.
func orderIntent(question, strategy string) (Intent, bool) {
	id, ref, ok := OrderReference(question)
	if !ok {
		return Intent{}, false
	}
	in := Intent{Action: ActionQueryOrder, OrderID: id, Strategy: strategy}
	if id == 0 {
		in.OrderRef = ref
	}
	return in, true
}

// span is one occurrence of a vocabulary entry in the lower-cased question.
type span struct {
	value      string
	start, end int
}

// Mentions returns the distinct vocabulary entries that occur in text, in
// the order they are mentioned. Matching is a case-insensitive substring
// test. Occurrences are ordered by earliest offset, then longest; an
// occurrence lying inside a longer kept one is dropped, so "New Delhi" does
// not also report "Delhi" unless "Delhi" appears on its own elsewhere.
func Mentions(text string, vocab []string) []string {
	lower := strings.ToLower(text)
	var spans []span
	for _, v := range vocab {
		needle := strings.ToLower(v)
		if needle == "" {
			continue
		}
		for off := 0; off < len(lower); {
			i := strings.Index(lower[off:], needle)
			if i < 0 {
				break
			}
			start := off + i
			spans = append(spans, span{value: v, start: start, end: start + len(needle)})
			off = start + 1
		}
	}
	sort.SliceStable(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].end-spans[i].start > spans[j].end-spans[j].start
	})

	var out []string
	seen := make(map[string]bool)
	maxEnd := -1
	for _, s := range spans {
		if s.end <= maxEnd {
			continue
		}
		maxEnd = s.end
		if !seen[s.value] {
			seen[s.value] = true
			out = append(out, s.value)
		}
	}
	return out
}

// Matcher is the deterministic vocabulary strategy.
type Matcher struct {
	vocab Vocabulary
}

// NewMatcher returns a Matcher over vocab.
func NewMatcher(vocab Vocabulary) *Matcher {
	return &Matcher{vocab: vocab}
}

// Name implements Router.
func (m *Matcher) Name() string { return StrategyVocabulary }

// Route implements Router. Precedence: explicit order reference, two or more
// cities, then any of one city, one client, one warehouse.
func (m *Matcher) Route(_ context.Context, question string) Intent {
	if in, ok := orderIntent(question, StrategyVocabulary); ok {
		return in
	}

	cities := Mentions(question, m.vocab.Cities)
	if len(cities) >= 2 {
		return Intent{Action: ActionCompareCities, Cities: cities[:2], Strategy: StrategyVocabulary}
	}

	var f query.Filter
	if len(cities) == 1 {
		f.City = cities[0]
	}
	if clients := Mentions(question, m.vocab.Clients); len(clients) > 0 {
		f.Client = clients[0]
	}
	if warehouses := Mentions(question, m.vocab.Warehouses); len(warehouses) > 0 {
		f.Warehouse = warehouses[0]
	}
	if f.IsZero() {
		return Intent{Action: ActionShowInsights, Strategy: StrategyVocabulary}
	}
	return Intent{Action: ActionFilterAnalysis, Filter: f, Strategy: StrategyVocabulary}
}
