// Package block defines the executable commands a sprite's script is made
// of. A Block carries no behaviour; the interpreter gives it meaning.
//
// Blocks arrive from the editor as loosely typed maps (JSON or YAML). Every
// decoding path coerces missing or mistyped parameters to fixed defaults so
// that no block ever reaches the interpreter holding NaN or a nil field, and
// one malformed block never prevents its siblings from decoding.
package block

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind tags which command a Block is.
type Kind string

const (
	KindMove      Kind = "move"
	KindTurn      Kind = "turn"
	KindGoto      Kind = "goto"
	KindSay       Kind = "say"
	KindThink     Kind = "think"
	KindWait      Kind = "wait"
	KindRepeat    Kind = "repeat"
	KindAnimation Kind = "animation"
)

// Known reports whether k is one of the kinds the interpreter executes.
func (k Kind) Known() bool {
	switch k {
	case KindMove, KindTurn, KindGoto, KindSay, KindThink, KindWait, KindRepeat, KindAnimation:
		return true
	}
	return false
}

// Motion reports whether k may appear inside a repeat.
func (k Kind) Motion() bool {
	return k == KindMove || k == KindTurn || k == KindGoto
}

// Parameter defaults applied by the decoders.
const (
	DefaultNumber  = 0.0
	DefaultCount   = 1
	DefaultSeconds = 1.0
	DefaultMessage = ""
	// MaxRepeatCount caps repeat counts. Larger counts are clamped on
	// decode and reported by Lint.
	MaxRepeatCount = 10000
)

// Block is one instruction. Only the fields relevant to Kind are meaningful:
//
//	move, turn        Value
//	goto              X, Y
//	say, think        Message, Time (seconds)
//	wait              Time (seconds)
//	repeat            Count, SubBlocks (motion kinds only)
//	animation         AnimationName, Duration (seconds)
type Block struct {
	Kind          Kind
	Value         float64
	X             float64
	Y             float64
	Message       string
	Time          float64
	Count         int
	SubBlocks     []Block
	AnimationName string
	Duration      float64
}

// Move translates the sprite by value units.
func Move(value float64) Block { return Normalize(Block{Kind: KindMove, Value: value}) }

// Turn adds degrees to the sprite's heading.
func Turn(degrees float64) Block { return Normalize(Block{Kind: KindTurn, Value: degrees}) }

// Goto sets an absolute position.
func Goto(x, y float64) Block { return Normalize(Block{Kind: KindGoto, X: x, Y: y}) }

// Say shows a speech bubble for seconds.
func Say(message string, seconds float64) Block {
	return Normalize(Block{Kind: KindSay, Message: message, Time: seconds})
}

// Think shows a thought bubble for seconds.
func Think(message string, seconds float64) Block {
	return Normalize(Block{Kind: KindThink, Message: message, Time: seconds})
}

// Wait suspends the script for seconds.
func Wait(seconds float64) Block { return Normalize(Block{Kind: KindWait, Time: seconds}) }

// Repeat runs subBlocks count times.
func Repeat(count int, subBlocks ...Block) Block {
	return Normalize(Block{Kind: KindRepeat, Count: count, SubBlocks: subBlocks})
}

// Animation tags the sprite with an animation for seconds.
func Animation(name string, seconds float64) Block {
	return Normalize(Block{Kind: KindAnimation, AnimationName: name, Duration: seconds})
}

// Unknown builds a block of an unrecognised kind. The interpreter skips it.
func Unknown(kind string) Block { return Block{Kind: Kind(kind)} }

// Normalize applies the decoding contract to a Block built in code: non-finite
// numbers take their defaults, negative durations become zero, counts are
// clamped to [0, MaxRepeatCount] and nested repeats are dropped.
func Normalize(b Block) Block {
	b.Value = finiteOr(b.Value, DefaultNumber)
	b.X = finiteOr(b.X, DefaultNumber)
	b.Y = finiteOr(b.Y, DefaultNumber)
	b.Time = seconds(finiteOr(b.Time, DefaultSeconds))
	b.Duration = seconds(finiteOr(b.Duration, DefaultSeconds))
	b.Count = clampCount(b.Count)

	if b.Kind != KindRepeat {
		b.SubBlocks = nil
		return b
	}
	subs := make([]Block, 0, len(b.SubBlocks))
	for _, sub := range b.SubBlocks {
		if sub.Kind == KindRepeat {
			continue
		}
		sub.SubBlocks = nil
		subs = append(subs, Normalize(sub))
	}
	b.SubBlocks = subs
	return b
}

// Clone returns a deep copy of b.
func (b Block) Clone() Block {
	if b.SubBlocks != nil {
		subs := make([]Block, len(b.SubBlocks))
		copy(subs, b.SubBlocks)
		b.SubBlocks = subs
	}
	return b
}

// CloneList deep-copies a block list.
func CloneList(blocks []Block) []Block {
	if blocks == nil {
		return nil
	}
	out := make([]Block, len(blocks))
	for i, b := range blocks {
		out[i] = b.Clone()
	}
	return out
}

// Describe renders the label the editor shows for b.
func (b Block) Describe() string {
	switch b.Kind {
	case KindMove:
		return fmt.Sprintf("Move %s steps", num(b.Value))
	case KindTurn:
		return fmt.Sprintf("Turn %s degrees", num(b.Value))
	case KindGoto:
		return fmt.Sprintf("Go to X: %s Y: %s", num(b.X), num(b.Y))
	case KindSay:
		return fmt.Sprintf("Say %q for %s sec", b.Message, num(b.Time))
	case KindThink:
		return fmt.Sprintf("Think %q for %s sec", b.Message, num(b.Time))
	case KindWait:
		return fmt.Sprintf("Wait %s seconds", num(b.Time))
	case KindRepeat:
		return fmt.Sprintf("Repeat %d times", b.Count)
	case KindAnimation:
		return fmt.Sprintf("Play %q for %s sec", b.AnimationName, num(b.Duration))
	default:
		if b.Kind == "" {
			return "unknown block"
		}
		return string(b.Kind)
	}
}

// Palette returns the blocks the editor offers, with their default parameters.
func Palette() []Block {
	return []Block{
		Move(10),
		Turn(15),
		Goto(0, 0),
		Say("Hello!", 2),
		Think("Hmm...", 2),
		Repeat(3),
		Wait(1),
		Animation("spin", 1),
	}
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func finiteOr(f, fallback float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fallback
	}
	return f
}

func seconds(f float64) float64 {
	if f < 0 {
		return 0
	}
	return f
}

func clampCount(n int) int {
	switch {
	case n < 0:
		return 0
	case n > MaxRepeatCount:
		return MaxRepeatCount
	}
	return n
}

// FromMap decodes one block from the loosely typed form the editor produces,
// e.g. {"type": "move", "value": "10"}. It never fails: anything that cannot
// be interpreted resolves to the documented default.
func FromMap(m map[string]any) Block {
	kind, _ := m["type"].(string)
	b := Block{Kind: Kind(strings.TrimSpace(kind))}

	switch b.Kind {
	case KindMove, KindTurn:
		b.Value = numberOr(m["value"], DefaultNumber)
	case KindGoto:
		b.X = numberOr(m["x"], DefaultNumber)
		b.Y = numberOr(m["y"], DefaultNumber)
	case KindSay, KindThink:
		b.Message = stringOr(m["message"])
		b.Time = seconds(numberOr(m["time"], DefaultSeconds))
	case KindWait:
		b.Time = seconds(numberOr(m["time"], DefaultSeconds))
	case KindRepeat:
		count := math.Trunc(numberOr(m["count"], DefaultCount))
		b.Count = clampCount(int(math.Max(-1, math.Min(count, MaxRepeatCount+1))))
		if list, ok := m["subBlocks"].([]any); ok {
			b.SubBlocks = make([]Block, 0, len(list))
			for _, item := range list {
				sub := FromAny(item)
				if sub.Kind == KindRepeat {
					continue
				}
				b.SubBlocks = append(b.SubBlocks, sub)
			}
		} else {
			b.SubBlocks = []Block{}
		}
	case KindAnimation:
		b.AnimationName = stringOr(m["animationName"])
		b.Duration = seconds(numberOr(m["duration"], DefaultSeconds))
	}
	return b
}

// FromAny decodes a block from any decoded JSON/YAML value. Values that are
// not maps become blocks of empty (unknown) kind.
func FromAny(v any) Block {
	switch m := v.(type) {
	case map[string]any:
		return FromMap(m)
	case map[any]any:
		conv := make(map[string]any, len(m))
		for k, val := range m {
			conv[fmt.Sprint(k)] = val
		}
		return FromMap(conv)
	default:
		return Block{}
	}
}

// ListFromAny decodes a block list. A non-list yields an empty list.
func ListFromAny(v any) []Block {
	list, ok := v.([]any)
	if !ok {
		return []Block{}
	}
	out := make([]Block, 0, len(list))
	for _, item := range list {
		out = append(out, FromAny(item))
	}
	return out
}

func numberOr(v any, fallback float64) float64 {
	if f, ok := toNumber(v); ok {
		return f
	}
	return fallback
}

func toNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case interface{ Float64() (float64, error) }:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func stringOr(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return DefaultMessage
}
