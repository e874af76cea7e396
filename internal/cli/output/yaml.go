package output

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/yndnr/memkv-go/pkg/resp"
)

// YAMLFormatter writes one YAML document per reply, with the same value
// mapping as JSONFormatter.
type YAMLFormatter struct{}

func (f *YAMLFormatter) Format(w io.Writer, v resp.Value) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(toJSON(v)); err != nil {
		return err
	}
	return enc.Close()
}
