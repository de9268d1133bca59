package unit

import (
	"fmt"
	"sort"
	"strings"
)

// Disassemble renders the unit in a human-readable form: the build id,
// pools, and every function's instruction block with comments where debug
// info was retained.
func (u *Unit) Disassemble() string {
	var b strings.Builder

	fmt.Fprintf(&b, "unit %s\n", u.BuildID)

	if len(u.StaticStrings) > 0 {
		b.WriteString("strings:\n")
		for i, s := range u.StaticStrings {
			fmt.Fprintf(&b, "  %4d: %q\n", i, s)
		}
	}
	if len(u.StaticObjectKeys) > 0 {
		b.WriteString("object keys:\n")
		for i, keys := range u.StaticObjectKeys {
			fmt.Fprintf(&b, "  %4d: [%s]\n", i, strings.Join(keys, ", "))
		}
	}

	// Deduplicate: instance functions are registered under two hashes.
	seen := make(map[*Fn]bool)
	fns := make([]*Fn, 0, len(u.Functions))
	for _, fn := range u.Functions {
		if !seen[fn] {
			seen[fn] = true
			fns = append(fns, fn)
		}
	}
	sort.Slice(fns, func(i, j int) bool { return fns[i].Item < fns[j].Item })

	for _, fn := range fns {
		switch fn.Kind {
		case FnTuple:
			fmt.Fprintf(&b, "\nfn %s(%d) = tuple constructor\n", fn.Item, fn.Args)
			continue
		case FnTupleVariant:
			fmt.Fprintf(&b, "\nfn %s(%d) = variant constructor\n", fn.Item, fn.Args)
			continue
		}

		fmt.Fprintf(&b, "\nfn %s(%s) [%s]\n", fn.Item, strings.Join(fn.ArgNames, ", "), fn.Call)
		for i, in := range fn.Insts {
			line := fmt.Sprintf("  %04d: %s", i, in)
			if i < len(fn.Comments) && fn.Comments[i] != "" {
				line += " // " + fn.Comments[i]
			}
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}

	return b.String()
}
