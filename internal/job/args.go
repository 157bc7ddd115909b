// Package job handles job bootstrap: resolving the named arguments the job
// is invoked with and tracking the lifetime of a single run.
package job

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingOption is returned when a required --NAME argument is absent.
var ErrMissingOption = errors.New("missing required option")

// ResolveOptions extracts the named options from argv, accepting both
// "--NAME value" and "--NAME=value". Every name must be present. Arguments
// that do not belong to a requested name are returned unchanged in rest so
// the caller can hand them to its own flag parser.
func ResolveOptions(argv []string, names ...string) (opts map[string]string, rest []string, err error) {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}

	opts = make(map[string]string, len(names))
	for i := 0; i < len(argv); i++ {
		a := argv[i]
		if !strings.HasPrefix(a, "--") {
			rest = append(rest, a)
			continue
		}
		key, val, hasVal := strings.Cut(strings.TrimPrefix(a, "--"), "=")
		if !want[key] {
			rest = append(rest, a)
			continue
		}
		if !hasVal {
			if i+1 >= len(argv) {
				return nil, nil, fmt.Errorf("option --%s: missing value", key)
			}
			i++
			val = argv[i]
		}
		opts[key] = val
	}

	for _, n := range names {
		if _, ok := opts[n]; !ok {
			return nil, nil, fmt.Errorf("%w: --%s", ErrMissingOption, n)
		}
	}
	return opts, rest, nil
}
