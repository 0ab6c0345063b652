// Package toolcmd assembles command lines for wrapped prediction tools from
// declarative flag tables. Each tool contributes a Table describing its
// flags, defaults and token vocabulary; Assemble turns user-supplied values
// into the minimal argument list the tool accepts.
package toolcmd

import (
	"fmt"
	"math"
	"strconv"

	"github.com/epigenomicscode/foldlaunch/pkg/bind"
)

// Kind enumerates the value types a flag can carry.
type Kind int

const (
	Bool Kind = iota
	Int
	Float
	String
	// Enum behaves like String for emission; the CLI layer validates the
	// accepted values.
	Enum
)

// floatTolerance is the comparison tolerance for float defaults.
const floatTolerance = 1e-6

// Flag describes one flag of a wrapped tool.
//
// Bool flags emit exactly one of On/Off depending on the value. A side may
// be left empty for tools whose vocabulary treats absence as the default
// state; nothing is emitted for that side.
//
// Scalar flags emit "--name=value" only when the value differs from
// Default (exact equality, except floats which use a 1e-6 tolerance),
// unless Always is set. A nil Default marks an optional flag that is only
// emitted when a value is present.
//
// Requires names a governing Bool flag; when that flag is off this flag is
// never emitted, whatever its value.
type Flag struct {
	Name     string
	Kind     Kind
	Default  any
	On, Off  string
	Requires string
	Always   bool
}

// Table is the ordered flag vocabulary of one wrapped tool. Emission order
// follows table order so generated commands are stable across runs.
type Table []Flag

// Assemble builds the flag argument list for the given values. Values are
// keyed by flag name; a missing entry means "use the default". Unknown
// value types are an error rather than a silent skip.
func (t Table) Assemble(values map[string]any) ([]string, error) {
	args := make([]string, 0, len(t))

	for _, f := range t {
		if f.Requires != "" && !boolValue(values, f.Requires) {
			continue
		}

		if f.Kind == Bool {
			token := f.Off
			if boolValue(values, f.Name, f.Default) {
				token = f.On
			}
			if token != "" {
				args = append(args, token)
			}
			continue
		}

		value, ok := values[f.Name]
		if !ok || value == nil {
			value = f.Default
		}
		if value == nil {
			// Optional flag left unset.
			continue
		}

		rendered, err := render(value)
		if err != nil {
			return nil, fmt.Errorf("flag %s: %w", f.Name, err)
		}

		if !f.Always && f.Default != nil {
			same, err := equalsDefault(value, f.Default)
			if err != nil {
				return nil, fmt.Errorf("flag %s: %w", f.Name, err)
			}
			if same {
				continue
			}
		}

		args = append(args, "--"+f.Name+"="+rendered)
	}

	return args, nil
}

// boolValue reads a bool from the value map, falling back to the supplied
// default (or false).
func boolValue(values map[string]any, name string, def ...any) bool {
	if v, ok := values[name]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	if len(def) > 0 {
		if b, ok := def[0].(bool); ok {
			return b
		}
	}
	return false
}

func render(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64), nil
	case bool:
		return strconv.FormatBool(val), nil
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}

func equalsDefault(value, def any) (bool, error) {
	switch d := def.(type) {
	case float64:
		v, ok := value.(float64)
		if !ok {
			return false, fmt.Errorf("expected float64, got %T", value)
		}
		return math.Abs(v-d) <= floatTolerance, nil
	default:
		return value == def, nil
	}
}

// Invocation is the fully assembled description of one wrapped-tool run:
// the entrypoint and arguments to execute inside the container, the bind
// mounts the run needs, and the environment to inject. It is built once,
// not mutated afterwards, and consumed exactly once by the invoker.
type Invocation struct {
	Executable string
	Args       []string // positional arguments, including any subcommand
	FlagArgs   []string
	Binds      bind.Set
	Env        map[string]string
}

// Argv returns the complete in-container command line.
func (inv *Invocation) Argv() []string {
	argv := make([]string, 0, 1+len(inv.Args)+len(inv.FlagArgs))
	argv = append(argv, inv.Executable)
	argv = append(argv, inv.Args...)
	argv = append(argv, inv.FlagArgs...)
	return argv
}
