package block

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// schemaJSON describes a well-formed block. Decoding never enforces it; Lint
// uses it to tell authors which parameters will fall back to defaults.
const schemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["type"],
  "properties": {
    "type": {"enum": ["move", "turn", "goto", "say", "think", "wait", "repeat", "animation"]}
  },
  "allOf": [
    {
      "if": {"required": ["type"], "properties": {"type": {"enum": ["move", "turn"]}}},
      "then": {"required": ["value"], "properties": {"value": {"type": "number"}}}
    },
    {
      "if": {"required": ["type"], "properties": {"type": {"const": "goto"}}},
      "then": {"required": ["x", "y"], "properties": {"x": {"type": "number"}, "y": {"type": "number"}}}
    },
    {
      "if": {"required": ["type"], "properties": {"type": {"enum": ["say", "think"]}}},
      "then": {
        "required": ["message", "time"],
        "properties": {"message": {"type": "string"}, "time": {"type": "number", "minimum": 0}}
      }
    },
    {
      "if": {"required": ["type"], "properties": {"type": {"const": "wait"}}},
      "then": {"required": ["time"], "properties": {"time": {"type": "number", "minimum": 0}}}
    },
    {
      "if": {"required": ["type"], "properties": {"type": {"const": "repeat"}}},
      "then": {
        "required": ["count"],
        "properties": {
          "count": {"type": "integer", "minimum": 0, "maximum": 10000},
          "subBlocks": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["type"],
              "properties": {"type": {"enum": ["move", "turn", "goto"]}}
            }
          }
        }
      }
    },
    {
      "if": {"required": ["type"], "properties": {"type": {"const": "animation"}}},
      "then": {
        "required": ["animationName", "duration"],
        "properties": {"animationName": {"type": "string"}, "duration": {"type": "number", "minimum": 0}}
      }
    }
  ]
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
)

func blockSchema() *jsonschema.Schema {
	schemaOnce.Do(func() {
		schema = jsonschema.MustCompileString("block.schema.json", schemaJSON)
	})
	return schema
}

// Issue is one lint finding. Path is a JSON pointer into the linted document.
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	path := i.Path
	if path == "" {
		path = "/"
	}
	return path + ": " + i.Message
}

// Lint validates a decoded JSON value (one block object or a list of them)
// and returns the findings sorted by path. An empty result means every block
// decodes without falling back to a default.
func Lint(doc any) []Issue {
	var issues []Issue
	if list, ok := doc.([]any); ok {
		for i, item := range list {
			issues = append(issues, lintOne(item, fmt.Sprintf("/%d", i))...)
		}
	} else {
		issues = lintOne(doc, "")
	}
	sort.SliceStable(issues, func(a, b int) bool { return issues[a].Path < issues[b].Path })
	return issues
}

// LintJSON is Lint for raw JSON. It only errors on invalid JSON syntax.
func LintJSON(data []byte) ([]Issue, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse blocks: %w", err)
	}
	return Lint(doc), nil
}

func lintOne(item any, prefix string) []Issue {
	err := blockSchema().Validate(item)
	if err == nil {
		return nil
	}

	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []Issue{{Path: prefix, Message: err.Error()}}
	}

	var issues []Issue
	seen := map[string]bool{}
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			issue := Issue{Path: prefix + e.InstanceLocation, Message: e.Message}
			if key := issue.String(); !seen[key] {
				seen[key] = true
				issues = append(issues, issue)
			}
			return
		}
		for _, cause := range e.Causes {
			walk(cause)
		}
	}
	walk(ve)
	return issues
}

// Summary joins issues into one human readable line per finding.
func Summary(issues []Issue) string {
	lines := make([]string, len(issues))
	for i, issue := range issues {
		lines[i] = issue.String()
	}
	return strings.Join(lines, "\n")
}
