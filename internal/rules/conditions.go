package rules

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/cel-go/cel"

	"pulse/pkg/models"
)

// Evaluator checks a rule's condition tree against an event.
//
//	{"any": [c1, c2]}  true if any sub-condition is true
//	{"all": [c1, c2]}  true if all sub-conditions are true
//	bare object        a single predicate; first recognized key wins
//
// A condition object with no recognized key evaluates to true. The
// permissive fallback is deliberate: a rule with conditions the engine
// does not understand fires rather than silently never firing.
type Evaluator struct {
	env *cel.Env
}

func NewEvaluator() (*Evaluator, error) {
	// "type" is a reserved CEL identifier, so the event type is exposed
	// as event_type.
	env, err := cel.NewEnv(
		cel.Variable("event_type", cel.StringType),
		cel.Variable("source", cel.StringType),
		cel.Variable("payload", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &Evaluator{env: env}, nil
}

// predicateKeys is the recognition order within a single condition object.
var predicateKeys = []string{
	"title_contains",
	"attendee_includes",
	"subject_contains",
	"body_contains",
	"from_vip",
	"time_range",
	"expression",
}

func (e *Evaluator) Check(conditions map[string]interface{}, event models.Event) bool {
	if len(conditions) == 0 {
		return true
	}

	if subs, ok := conditionList(conditions["any"]); ok {
		for _, sub := range subs {
			if e.Check(sub, event) {
				return true
			}
		}
		return false
	}

	if subs, ok := conditionList(conditions["all"]); ok {
		for _, sub := range subs {
			if !e.Check(sub, event) {
				return false
			}
		}
		return true
	}

	return e.checkPredicate(conditions, event)
}

func (e *Evaluator) checkPredicate(cond map[string]interface{}, event models.Event) bool {
	for _, key := range predicateKeys {
		value, ok := cond[key]
		if !ok {
			continue
		}

		switch key {
		case "title_contains":
			return containsFold(payloadString(event, "title"), value)
		case "subject_contains":
			return containsFold(payloadString(event, "subject"), value)
		case "body_contains":
			return containsFold(payloadString(event, "body"), value)
		case "attendee_includes":
			return attendeeIncludes(event, value)
		case "from_vip":
			want, _ := value.(bool)
			got, _ := event.Payload["from_vip"].(bool)
			return got == want
		case "time_range":
			return inTimeRange(event, value)
		case "expression":
			expr, _ := value.(string)
			return e.evalExpression(expr, event)
		}
	}

	// Unrecognized condition object: permissive fallback.
	return true
}

func (e *Evaluator) evalExpression(expr string, event models.Event) bool {
	if expr == "" {
		return true
	}

	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return false
	}
	if ast.OutputType() != cel.BoolType {
		return false
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return false
	}

	result, _, err := program.Eval(map[string]interface{}{
		"event_type": event.Type,
		"source":     event.Source,
		"payload":    event.Payload,
	})
	if err != nil {
		return false
	}

	matched, ok := result.Value().(bool)
	return ok && matched
}

func conditionList(v interface{}) ([]map[string]interface{}, bool) {
	raw, ok := v.([]interface{})
	if !ok {
		return nil, false
	}
	subs := make([]map[string]interface{}, 0, len(raw))
	for _, item := range raw {
		if sub, ok := item.(map[string]interface{}); ok {
			subs = append(subs, sub)
		}
	}
	return subs, true
}

func payloadString(event models.Event, key string) string {
	s, _ := event.Payload[key].(string)
	return s
}

func containsFold(haystack string, needle interface{}) bool {
	want, _ := needle.(string)
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(want))
}

// attendeeIncludes matches against a nested attendee list; entries may be
// bare email strings or objects with an "email" field.
func attendeeIncludes(event models.Event, value interface{}) bool {
	want, _ := value.(string)
	attendees, _ := event.Payload["attendees"].([]interface{})

	for _, a := range attendees {
		var email string
		switch v := a.(type) {
		case string:
			email = v
		case map[string]interface{}:
			email, _ = v["email"].(string)
		}
		if strings.EqualFold(email, want) {
			return true
		}
	}
	return false
}

// inTimeRange checks the event time against an inclusive local-time window
// such as {"start": "09:00", "end": "17:00"}. Windows crossing midnight
// wrap.
func inTimeRange(event models.Event, value interface{}) bool {
	window, ok := value.(map[string]interface{})
	if !ok {
		return true
	}

	start, err1 := parseClock(window["start"])
	end, err2 := parseClock(window["end"])
	if err1 != nil || err2 != nil {
		return true
	}

	ts := event.Timestamp
	if raw, ok := event.Payload["timestamp"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			ts = parsed
		}
	}
	if ts.IsZero() {
		return false
	}

	minute := ts.Local().Hour()*60 + ts.Local().Minute()
	if start <= end {
		return minute >= start && minute <= end
	}
	return minute >= start || minute <= end
}

func parseClock(v interface{}) (int, error) {
	s, _ := v.(string)
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}
