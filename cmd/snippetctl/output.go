package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/goccy/go-yaml"
)

// render writes v as indented JSON or as YAML.
//
// YAML goes through JSON first so both formats share the json tags and
// field order; UseOrderedMap keeps that order on the way back, and
// multi-line code is emitted as a literal block instead of an escaped
// one-line string.
func render(w io.Writer, format string, v any) error {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}

	if format == "json" {
		_, err = fmt.Fprintln(w, string(jsonData))
		return err
	}

	var ordered any
	if err := yaml.UnmarshalWithOptions(jsonData, &ordered, yaml.UseOrderedMap()); err != nil {
		return fmt.Errorf("converting output to yaml: %w", err)
	}
	yamlData, err := yaml.MarshalWithOptions(ordered, yaml.UseLiteralStyleIfMultiline(true))
	if err != nil {
		return fmt.Errorf("encoding yaml: %w", err)
	}
	_, err = w.Write(yamlData)
	return err
}
