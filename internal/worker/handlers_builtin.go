package worker

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Sleep is how the helloworld smoke test waits out time_. A package var so
// tests can shrink it instead of actually blocking.
var Sleep = time.Sleep

const builtinHelloworld = "helloworld"

// Helloworld is the reserved smoke-test action (§4.4): it sleeps time_
// seconds and echoes a diagnostic string. time_ is read positionally from
// args[0] when present, else from kwargs["time_"], else defaults to 0;
// either way it is consumed, so the echoed args/kwargs reflect only what's
// left over (§8 scenario S1: args=[1] -> "HELLO time_=1 ([], {})").
func Helloworld(_ *Context, args []any, kwargs map[string]any) (json.RawMessage, error) {
	timeVal, remArgs, remKwargs := extractTimeArg(args, kwargs)

	seconds := toSeconds(timeVal)
	if seconds > 0 {
		Sleep(time.Duration(seconds * float64(time.Second)))
	}

	retval := fmt.Sprintf("HELLO time_=%s (%s, %s)", reprScalar(timeVal), reprList(remArgs), reprMap(remKwargs))
	return json.Marshal(retval)
}

func extractTimeArg(args []any, kwargs map[string]any) (timeVal any, remArgs []any, remKwargs map[string]any) {
	remKwargs = make(map[string]any, len(kwargs))
	for k, v := range kwargs {
		remKwargs[k] = v
	}
	if len(args) > 0 {
		return args[0], append([]any{}, args[1:]...), remKwargs
	}
	if v, ok := remKwargs["time_"]; ok {
		delete(remKwargs, "time_")
		return v, append([]any{}, args...), remKwargs
	}
	return 0, append([]any{}, args...), remKwargs
}

func toSeconds(v any) float64 {
	switch t := v.(type) {
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case float64:
		return t
	case json.Number:
		f, _ := t.Float64()
		return f
	default:
		f, _ := strconv.ParseFloat(fmt.Sprint(v), 64)
		return f
	}
}

func reprScalar(v any) string {
	switch t := v.(type) {
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func reprList(vs []any) string {
	if len(vs) == 0 {
		return "[]"
	}
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = reprScalar(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func reprMap(m map[string]any) string {
	if len(m) == 0 {
		return "{}"
	}
	parts := make([]string, 0, len(m))
	for k, v := range m {
		parts = append(parts, fmt.Sprintf("'%s': %s", k, reprScalar(v)))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
