package intent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"rootcause/internal/apperr"
	"rootcause/internal/dataset"
	"rootcause/internal/llm"
	"rootcause/internal/query"
)

const extractSystem = `You route questions about delivery performance to one action.
Actions: query_order (the question names an order number), compare_cities (two
cities are compared), filter_analysis (one city, client or warehouse is named),
show_insights (anything else). Only use entity names from the candidate lists,
spelled exactly as listed. time_range is "YYYY-MM-DD..YYYY-MM-DD" when the
question names a period, otherwise null. Answer with JSON only.`

// extractRequest is the fixed request payload.
type extractRequest struct {
	Question   string   `json:"question"`
	Cities     []string `json:"candidate_cities"`
	Clients    []string `json:"candidate_clients"`
	Warehouses []string `json:"candidate_warehouses"`
}

// extractResponse is the fixed response shape. Every key must be present.
type extractResponse struct {
	Action    string          `json:"action" validate:"oneof=query_order compare_cities filter_analysis show_insights"`
	OrderID   *int64          `json:"order_id" validate:"required_if=Action query_order,omitempty,gt=0"`
	Cities    []string        `json:"cities" validate:"required_if=Action compare_cities,omitempty,len=2,dive,required"`
	Filters   *extractFilters `json:"filters"`
	TimeRange *string         `json:"time_range"`
}

type extractFilters struct {
	City      *string `json:"city"`
	Client    *string `json:"client"`
	Warehouse *string `json:"warehouse"`
}

var responseKeys = []string{"action", "order_id", "cities", "filters", "time_range"}

// responseSchema mirrors extractResponse for the service's JSON mode.
var responseSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"action": {
			Type: genai.TypeString,
			Enum: []string{string(ActionQueryOrder), string(ActionCompareCities), string(ActionFilterAnalysis), string(ActionShowInsights)},
		},
		"order_id": {Type: genai.TypeInteger, Nullable: genai.Ptr(true)},
		"cities": {
			Type:     genai.TypeArray,
			Items:    &genai.Schema{Type: genai.TypeString},
			Nullable: genai.Ptr(true),
		},
		"filters": {
			Type:     genai.TypeObject,
			Nullable: genai.Ptr(true),
			Properties: map[string]*genai.Schema{
				"city":      {Type: genai.TypeString, Nullable: genai.Ptr(true)},
				"client":    {Type: genai.TypeString, Nullable: genai.Ptr(true)},
				"warehouse": {Type: genai.TypeString, Nullable: genai.Ptr(true)},
			},
		},
		"time_range": {Type: genai.TypeString, Nullable: genai.Ptr(true)},
	},
	Required: responseKeys,
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Extractor delegates entity recognition to the external service. The order
// reference check always runs locally first.
type Extractor struct {
	vocab  Vocabulary
	gen    Generator
	genErr error
	logger *zap.Logger
}

// NewExtractor returns the genai strategy. With a nil Generator every
// question without an order reference routes to show_insights.
func NewExtractor(d Deps) *Extractor {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{vocab: d.Vocabulary, gen: d.Generator, genErr: d.GeneratorErr, logger: logger}
}

// Name implements Router.
func (e *Extractor) Name() string { return StrategyGenAI }

// Route implements Router.
func (e *Extractor) Route(ctx context.Context, question string) Intent {
	if in, ok := orderIntent(question, StrategyGenAI); ok {
		return in
	}
	fallback := Intent{Action: ActionShowInsights, Strategy: StrategyGenAI}

	if e.gen == nil {
		err := e.genErr
		if err == nil {
			err = apperr.NotConfigured("no generator")
		}
		e.logger.Warn("intent: extraction service not configured; using show_insights", zap.Error(err))
		return fallback
	}

	prompt, err := json.Marshal(extractRequest{
		Question:   question,
		Cities:     e.vocab.Cities,
		Clients:    e.vocab.Clients,
		Warehouses: e.vocab.Warehouses,
	})
	if err != nil {
		e.logger.Error("intent: encode request", zap.Error(err))
		return fallback
	}

	text, err := e.gen.Generate(ctx, "intent", llm.Request{
		System: extractSystem,
		Prompt: string(prompt),
		Schema: responseSchema,
	})
	if err != nil {
		if apperr.Is(err, apperr.KindNotConfigured) {
			e.logger.Warn("intent: extraction service not configured; using show_insights", zap.Error(err))
		} else {
			e.logger.Warn("intent: extraction failed; using show_insights",
				zap.String("kind", apperr.GetKind(err).String()), zap.Error(err))
		}
		return fallback
	}

	in, err := parseResponse([]byte(text))
	if err != nil {
		e.logger.Warn("intent: malformed extraction response; using show_insights",
			zap.Error(err), zap.String("response", text))
		return fallback
	}
	in.Strategy = StrategyGenAI
	if in.timeRangeErr != nil {
		e.logger.Warn("intent: ignoring time_range", zap.Error(in.timeRangeErr))
	}
	return in.Intent
}

// parsed is an Intent plus a tolerated time_range problem.
type parsed struct {
	Intent
	timeRangeErr error
}

// parseResponse validates a raw extraction response against the fixed shape
// and converts it. Any deviation is a Malformed error.
func parseResponse(data []byte) (parsed, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return parsed{}, apperr.Wrap(apperr.KindMalformed, "response is not a JSON object", err)
	}
	for _, k := range responseKeys {
		if _, ok := keys[k]; !ok {
			return parsed{}, apperr.Malformed(fmt.Sprintf("response missing %q", k))
		}
	}

	var resp extractResponse
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&resp); err != nil {
		return parsed{}, apperr.Wrap(apperr.KindMalformed, "decode response", err)
	}
	if err := validate.Struct(resp); err != nil {
		return parsed{}, apperr.Wrap(apperr.KindMalformed, "validate response", err)
	}

	out := parsed{Intent: Intent{Action: Action(resp.Action)}}
	switch out.Action {
	case ActionQueryOrder:
		out.OrderID = *resp.OrderID
		return out, nil
	case ActionCompareCities:
		out.Cities = []string{resp.Cities[0], resp.Cities[1]}
		return out, nil
	}

	if resp.Filters != nil {
		out.Filter.City = trimmed(resp.Filters.City)
		out.Filter.Client = trimmed(resp.Filters.Client)
		out.Filter.Warehouse = trimmed(resp.Filters.Warehouse)
	}
	if resp.TimeRange != nil && strings.TrimSpace(*resp.TimeRange) != "" {
		from, to, err := ParseTimeRange(*resp.TimeRange)
		if err != nil {
			out.timeRangeErr = err
		} else {
			out.Filter.From, out.Filter.To = from, to
		}
	}
	if out.Action == ActionShowInsights {
		// Entity filters only apply to filter_analysis.
		out.Filter = query.Filter{From: out.Filter.From, To: out.Filter.To}
	}
	if out.Action == ActionFilterAnalysis && out.Filter.IsZero() {
		out.Action = ActionShowInsights
	}
	return out, nil
}

func trimmed(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

// ParseTimeRange parses "FROM..TO" where either side may be empty and each
// side is a date in any layout dataset.ParseDate accepts.
func ParseTimeRange(s string) (from, to *time.Time, err error) {
	lo, hi, ok := strings.Cut(strings.TrimSpace(s), "..")
	if !ok {
		return nil, nil, apperr.Validation(fmt.Sprintf("time range %q: want FROM..TO", s))
	}
	parse := func(v string) (*time.Time, error) {
		v = strings.TrimSpace(v)
		if v == "" {
			return nil, nil
		}
		t, ok := dataset.ParseDate(v)
		if !ok {
			return nil, apperr.Validation(fmt.Sprintf("time range %q: bad date %q", s, v))
		}
		return &t, nil
	}
	if from, err = parse(lo); err != nil {
		return nil, nil, err
	}
	if to, err = parse(hi); err != nil {
		return nil, nil, err
	}
	if from == nil && to == nil {
		return nil, nil, apperr.Validation(fmt.Sprintf("time range %q: both ends empty", s))
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, nil, apperr.Validation(fmt.Sprintf("time range %q: end before start", s))
	}
	return from, to, nil
}
