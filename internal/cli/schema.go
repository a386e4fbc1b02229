package cli

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/vburojevic/ttycast/internal/asciicast"
	"github.com/vburojevic/ttycast/internal/domain"
	"github.com/vburojevic/ttycast/internal/output"
)

// SchemaCmd outputs JSON Schema for ttycast documents and status lines
type SchemaCmd struct {
	Type []string `short:"t" help:"Types to include (transcript,converted,skipped,watch_cycle,uploaded,tmux,frame,inspect_summary,error,version). Default: all"`
}

// schemaTypes maps each output type to a value of its Go type.
var schemaTypes = map[string]interface{}{
	"transcript":      &asciicast.Transcript{},
	"converted":       &domain.Converted{},
	"skipped":         &domain.Skipped{},
	"watch_cycle":     &domain.WatchCycle{},
	"uploaded":        &domain.Uploaded{},
	"tmux":            &domain.TmuxSession{},
	"frame":           &domain.FrameRecord{},
	"inspect_summary": &domain.InspectSummary{},
	"error":           &output.ErrorOutput{},
	"version":         &VersionOutput{},
}

func schemaTypeNames() []string {
	names := make([]string, 0, len(schemaTypes))
	for name := range schemaTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var (
	eventType   = reflect.TypeOf(asciicast.Event{})
	secondsType = reflect.TypeOf(asciicast.Seconds(0))
)

// schemaMapper describes types whose JSON form differs from their fields.
func schemaMapper(t reflect.Type) *jsonschema.Schema {
	switch t {
	case eventType:
		return &jsonschema.Schema{
			Type:        "array",
			Description: "[delay in seconds since the previous event, output text]",
			PrefixItems: []*jsonschema.Schema{{Type: "number"}, {Type: "string"}},
		}
	case secondsType:
		return &jsonschema.Schema{Type: "number"}
	}
	return nil
}

func reflectSchema(v interface{}) *jsonschema.Schema {
	r := &jsonschema.Reflector{
		ExpandedStruct: true,
		DoNotReference: true,
		Mapper:         schemaMapper,
	}
	s := r.Reflect(v)
	s.Version = ""
	s.ID = ""
	return s
}

// Run executes the schema command
func (c *SchemaCmd) Run(globals *Globals) error {
	typesToOutput := c.Type
	if len(typesToOutput) == 0 {
		typesToOutput = schemaTypeNames()
	}

	defs := map[string]*jsonschema.Schema{}
	for _, t := range typesToOutput {
		t = strings.ToLower(strings.TrimSpace(t))
		v, ok := schemaTypes[t]
		if !ok {
			return outputErrorCommon(globals, "INVALID_FLAGS", fmt.Sprintf("unknown schema type %q", t),
				"choose from "+strings.Join(schemaTypeNames(), ", "))
		}
		defs[t] = reflectSchema(v)
	}

	out := map[string]interface{}{
		"$schema":     jsonschema.Version,
		"title":       "ttycast Output Schemas",
		"description": "JSON Schema definitions for transcripts and every ttycast NDJSON output type",
		"definitions": defs,
	}

	encoder := json.NewEncoder(globals.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}
