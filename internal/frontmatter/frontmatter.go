// Package frontmatter reads and writes markdown pages that open with a YAML
// metadata block between --- delimiters. Report pages use it to record which
// run and which inputs produced them.
package frontmatter

import (
	"bytes"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

const delim = "---\n"

// Meta is the metadata block written at the top of every report page.
type Meta struct {
	Title        string    `yaml:"title"`
	RunID        string    `yaml:"run_id"`
	GeneratedAt  time.Time `yaml:"generated_at"`
	InputsSHA256 string    `yaml:"inputs_sha256"`
	Orders       int       `yaml:"orders"`
	Problematic  int       `yaml:"problematic"`
}

// Split separates a page into its raw YAML block and body. The page must
// start with "---\n" and the block ends at the next "---" line.
func Split(data []byte) (block []byte, body []byte, err error) {
	if !bytes.HasPrefix(data, []byte(delim)) {
		return nil, nil, fmt.Errorf("frontmatter: missing opening --- delimiter")
	}
	rest := data[len(delim):]
	idx := bytes.Index(rest, []byte("\n---"))
	if idx < 0 {
		return nil, nil, fmt.Errorf("frontmatter: missing closing --- delimiter")
	}
	block = rest[:idx+1]
	body = rest[idx+len("\n---"):]
	if len(body) > 0 && body[0] == '\n' {
		body = body[1:]
	}
	return block, body, nil
}

// Parse decodes the metadata block of a page and returns the body.
func Parse(data []byte) (Meta, []byte, error) {
	var m Meta
	block, body, err := Split(data)
	if err != nil {
		return m, nil, err
	}
	if err := yaml.Unmarshal(block, &m); err != nil {
		return m, nil, fmt.Errorf("frontmatter: unmarshal: %w", err)
	}
	return m, body, nil
}

// Render returns the complete page: the metadata block followed by body.
func Render(m Meta, body string) ([]byte, error) {
	block, err := yaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("frontmatter: marshal: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(delim)
	buf.Write(block)
	buf.WriteString(delim)
	buf.WriteString(body)
	return buf.Bytes(), nil
}
