package output

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/yndnr/memkv/internal/cli/connection"
)

// YAMLFormatter formats replies as YAML.
type YAMLFormatter struct{}

// Format formats r as a YAML document.
func (f *YAMLFormatter) Format(w io.Writer, r *connection.Reply) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(document(r)); err != nil {
		return err
	}
	return enc.Close()
}
