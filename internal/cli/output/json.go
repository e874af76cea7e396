package output

import (
	"encoding/json"
	"io"

	"github.com/yndnr/memkv-go/pkg/resp"
)

// JSONFormatter writes one JSON document per reply. Error replies become
// {"error": "..."}.
type JSONFormatter struct{}

func (f *JSONFormatter) Format(w io.Writer, v resp.Value) error {
	return json.NewEncoder(w).Encode(toJSON(v))
}

func toJSON(v resp.Value) any {
	switch {
	case v.Null:
		return nil
	case v.Kind == resp.KindError:
		return map[string]string{"error": v.Str}
	case v.Kind == resp.KindInteger:
		return v.Int
	case v.Kind == resp.KindArray:
		out := make([]any, len(v.Array))
		for i, item := range v.Array {
			out[i] = toJSON(item)
		}
		return out
	default:
		return v.Str
	}
}
