package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/danmuck/uwsgictl/internal/client"
	"gopkg.in/yaml.v3"
)

var (
	okStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	failStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))
	keyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// Formatter renders a decoded response.
type Formatter interface {
	Format(resp *client.Response) string
}

// NewFormatter returns a Formatter for format.
// Supported formats: "table" (default), "raw", "json", "yaml".
func NewFormatter(format string) (Formatter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "table":
		return tableFormatter{}, nil
	case "raw":
		return rawFormatter{}, nil
	case "json":
		return jsonFormatter{}, nil
	case "yaml":
		return yamlFormatter{}, nil
	default:
		return nil, fmt.Errorf("unknown output format: %s", format)
	}
}

type rawFormatter struct{}

func (rawFormatter) Format(resp *client.Response) string {
	if strings.HasSuffix(resp.Raw, "\n") {
		return resp.Raw
	}
	return resp.Raw + "\n"
}

type jsonFormatter struct{}

func (jsonFormatter) Format(resp *client.Response) string {
	b, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return fmt.Sprintf("error formatting JSON: %v\n", err)
	}
	return string(b) + "\n"
}

type yamlFormatter struct{}

func (yamlFormatter) Format(resp *client.Response) string {
	b, err := yaml.Marshal(resp)
	if err != nil {
		return fmt.Sprintf("error formatting YAML: %v\n", err)
	}
	return string(b)
}

// tableFormatter prints a status line, aligned headers and the raw body.
type tableFormatter struct{}

func (tableFormatter) Format(resp *client.Response) string {
	var buf bytes.Buffer
	status := fmt.Sprintf("%d %s", resp.Status, resp.StatusText)
	if resp.OK() {
		buf.WriteString(okStyle.Render(status))
	} else {
		buf.WriteString(failStyle.Render(status))
	}
	buf.WriteByte('\n')

	names := make([]string, 0, len(resp.Headers))
	for name := range resp.Headers {
		names = append(names, name)
	}
	sort.Strings(names)
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	for _, name := range names {
		fmt.Fprintf(w, "%s\t%s\n", keyStyle.Render(name+":"), resp.Headers[name])
	}
	w.Flush()

	if resp.Raw != "" {
		buf.WriteByte('\n')
		buf.WriteString(rawFormatter{}.Format(resp))
	}
	return buf.String()
}
