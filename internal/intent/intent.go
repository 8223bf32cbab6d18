// Package intent maps a free-text question to one structured query action.
//
// Two strategies sit behind the Router interface and are chosen by name from
// a registry:
//
//	vocabulary  deterministic substring matching against entity names
//	genai       structured extraction by the external text-generation service
//
// Both give absolute precedence to an explicit order reference ("order #123")
// and both fall back to show_insights when nothing usable is found. Routing
// never fails; problems are logged and degrade to the fallback action.
package intent

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"rootcause/internal/apperr"
	"rootcause/internal/dataset"
	"rootcause/internal/llm"
	"rootcause/internal/query"
)

// Action is one of the four structured query actions.
type Action string

const (
	ActionQueryOrder     Action = "query_order"
	ActionCompareCities  Action = "compare_cities"
	ActionFilterAnalysis Action = "filter_analysis"
	ActionShowInsights   Action = "show_insights"
)

// Intent is the routed form of a question.
type Intent struct {
	Action Action `yaml:"action" json:"action"`
	// OrderID is set for query_order.
	OrderID int64 `yaml:"order_id,omitempty" json:"order_id,omitempty"`
	// OrderRef holds the referenced number as written when it is out of
	// range for OrderID.
	OrderRef string `yaml:"order_ref,omitempty" json:"order_ref,omitempty"`
	// Cities holds exactly two cities for compare_cities.
	Cities []string `yaml:"cities,omitempty" json:"cities,omitempty"`
	// Filter is set for filter_analysis; a time range may also narrow
	// show_insights.
	Filter query.Filter `yaml:"filter,omitempty" json:"filter,omitempty"`
	// Strategy names the router that produced the intent.
	Strategy string `yaml:"strategy" json:"strategy"`
}

// Describe renders the intent for the "Detected intent" line of the CLI.
func (in Intent) Describe() string {
	switch in.Action {
	case ActionQueryOrder:
		if in.OrderRef != "" {
			return "Analyze order " + in.OrderRef
		}
		return fmt.Sprintf("Analyze order %d", in.OrderID)
	case ActionCompareCities:
		return fmt.Sprintf("Compare %s and %s", in.Cities[0], in.Cities[1])
	case ActionFilterAnalysis:
		return in.Filter.Title()
	default:
		return "General insights (no specific entities found)"
	}
}

// Router turns a question into an Intent.
type Router interface {
	// Name returns the strategy's registry key.
	Name() string
	// Route never fails; unusable input yields show_insights.
	Route(ctx context.Context, question string) Intent
}

// ---------------------------------------------------------------------------
// Vocabulary
// ---------------------------------------------------------------------------

// Vocabulary is the set of entity names a question may mention.
type Vocabulary struct {
	Cities     []string `json:"cities"`
	Clients    []string `json:"clients"`
	Warehouses []string `json:"warehouses"`
}

// VocabularyFrom collects entity names from the loaded tables. Cities come
// from order cities followed by warehouse cities. Values are deduplicated
// case-insensitively keeping the first spelling, so the result is stable for
// a given input.
func VocabularyFrom(set *dataset.Set) Vocabulary {
	var cities, clients, warehouses []string
	for _, o := range set.Orders {
		cities = appendPresent(cities, o.City)
	}
	for _, w := range set.Warehouses {
		cities = appendPresent(cities, w.City)
		warehouses = appendPresent(warehouses, w.Name)
	}
	for _, c := range set.Clients {
		clients = appendPresent(clients, c.Name)
	}
	return Vocabulary{
		Cities:     dedupeFold(cities),
		Clients:    dedupeFold(clients),
		Warehouses: dedupeFold(warehouses),
	}
}

func appendPresent(dst []string, p *string) []string {
	if p == nil {
		return dst
	}
	if v := strings.TrimSpace(*p); v != "" {
		dst = append(dst, v)
	}
	return dst
}

func dedupeFold(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		k := strings.ToLower(v)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, v)
	}
	return out
}

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

// Strategy names.
const (
	StrategyVocabulary = "vocabulary"
	StrategyGenAI      = "genai"
)

// Deps carries what a strategy may need. Generator is nil when the external
// service is not configured; GeneratorErr then says why.
type Deps struct {
	Vocabulary   Vocabulary
	Generator    Generator
	GeneratorErr error
	Logger       *zap.Logger
}

// Generator is the slice of llm.Client the extraction strategy uses.
type Generator interface {
	Generate(ctx context.Context, purpose string, req llm.Request) (string, error)
}

// Factory builds a Router.
type Factory func(d Deps) Router

// strategies is the registry of available routers.
var strategies = map[string]Factory{
	StrategyVocabulary: func(d Deps) Router { return NewMatcher(d.Vocabulary) },
	StrategyGenAI:      func(d Deps) Router { return NewExtractor(d) },
}

// Strategies lists registered strategy names in sorted order.
func Strategies() []string {
	names := make([]string, 0, len(strategies))
	for name := range strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the named strategy.
func New(name string, d Deps) (Router, error) {
	f, ok := strategies[name]
	if !ok {
		return nil, apperr.Validation(fmt.Sprintf("unknown intent strategy %q (available: %s)",
			name, strings.Join(Strategies(), ", ")))
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return f(d), nil
}
