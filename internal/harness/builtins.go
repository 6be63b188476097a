package harness

import "fmt"

// builtinFunc computes an int64 from dependency values in declaration order.
type builtinFunc func(args []int64) (int64, error)

var builtins = map[string]builtinFunc{
	"identity": func(args []int64) (int64, error) {
		return first(args), nil
	},
	"sum": func(args []int64) (int64, error) {
		var total int64
		for _, a := range args {
			total += a
		}
		return total, nil
	},
	"double": func(args []int64) (int64, error) {
		return first(args) * 2, nil
	},
	"parity": func(args []int64) (int64, error) {
		return first(args) & 1, nil
	},
	"sign": func(args []int64) (int64, error) {
		switch {
		case first(args) > 0:
			return 1, nil
		case first(args) < 0:
			return -1, nil
		}
		return 0, nil
	},
	// reject_negative fails while its first argument is negative.
	"reject_negative": func(args []int64) (int64, error) {
		if first(args) < 0 {
			return 0, fmt.Errorf("negative value %d", first(args))
		}
		return first(args), nil
	},
}

// Builtins returns the names of the available builtin functions.
func Builtins() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	return names
}

// first returns the first argument, or 0 when there are none.
func first(args []int64) int64 {
	if len(args) == 0 {
		return 0
	}
	return args[0]
}
