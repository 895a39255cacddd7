package block

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// wire is the JSON/YAML shape of a block as the editor exchanges it.
type wire struct {
	Type          Kind     `json:"type" yaml:"type"`
	Value         *float64 `json:"value,omitempty" yaml:"value,omitempty"`
	X             *float64 `json:"x,omitempty" yaml:"x,omitempty"`
	Y             *float64 `json:"y,omitempty" yaml:"y,omitempty"`
	Message       *string  `json:"message,omitempty" yaml:"message,omitempty"`
	Time          *float64 `json:"time,omitempty" yaml:"time,omitempty"`
	Count         *int     `json:"count,omitempty" yaml:"count,omitempty"`
	SubBlocks     []Block  `json:"subBlocks,omitempty" yaml:"subBlocks,omitempty"`
	AnimationName *string  `json:"animationName,omitempty" yaml:"animationName,omitempty"`
	Duration      *float64 `json:"duration,omitempty" yaml:"duration,omitempty"`
}

func (b Block) toWire() wire {
	w := wire{Type: b.Kind}
	switch b.Kind {
	case KindMove, KindTurn:
		w.Value = &b.Value
	case KindGoto:
		w.X, w.Y = &b.X, &b.Y
	case KindSay, KindThink:
		w.Message, w.Time = &b.Message, &b.Time
	case KindWait:
		w.Time = &b.Time
	case KindRepeat:
		w.Count = &b.Count
		w.SubBlocks = b.SubBlocks
		if w.SubBlocks == nil {
			w.SubBlocks = []Block{}
		}
	case KindAnimation:
		w.AnimationName, w.Duration = &b.AnimationName, &b.Duration
	}
	return w
}

// MarshalJSON emits only the parameters relevant to the block's kind.
func (b Block) MarshalJSON() ([]byte, error) {
	w := b.toWire()
	if b.Kind != KindRepeat {
		return json.Marshal(w)
	}
	// omitempty would drop an empty sub-block list; keep it explicit.
	type repeatWire struct {
		Type      Kind    `json:"type"`
		Count     int     `json:"count"`
		SubBlocks []Block `json:"subBlocks"`
	}
	return json.Marshal(repeatWire{Type: b.Kind, Count: b.Count, SubBlocks: w.SubBlocks})
}

// UnmarshalJSON decodes leniently via FromAny. Only syntactically invalid
// JSON is an error; a well-formed value of the wrong shape becomes an
// unknown block.
func (b *Block) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("failed to decode block: %w", err)
	}
	*b = FromAny(v)
	return nil
}

// MarshalYAML emits the same shape as MarshalJSON.
func (b Block) MarshalYAML() (any, error) {
	return b.toWire(), nil
}

// UnmarshalYAML decodes leniently via FromAny.
func (b *Block) UnmarshalYAML(node *yaml.Node) error {
	var v any
	if err := node.Decode(&v); err != nil {
		return fmt.Errorf("failed to decode block: %w", err)
	}
	*b = FromAny(v)
	return nil
}

// DecodeJSON decodes either a single block object or a list of blocks.
func DecodeJSON(data []byte) ([]Block, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to decode blocks: %w", err)
	}
	if _, isList := v.([]any); isList {
		return ListFromAny(v), nil
	}
	return []Block{FromAny(v)}, nil
}
