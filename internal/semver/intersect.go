// SPDX-License-Identifier: MPL-2.0

package semver

type (
	// bound is one endpoint of a version interval. A nil version means the
	// interval is unbounded on that side.
	bound struct {
		version   *Version
		inclusive bool
	}

	// interval is the half-open/closed range a single-operator constraint denotes.
	interval struct {
		lo bound
		hi bound
	}
)

// interval converts the constraint into its version interval.
func (c *Constraint) interval() interval {
	v := c.Version
	switch c.Op {
	case "=":
		return interval{lo: bound{v, true}, hi: bound{v, true}}
	case ">":
		return interval{lo: bound{v, false}}
	case ">=":
		return interval{lo: bound{v, true}}
	case "<":
		return interval{hi: bound{v, false}}
	case "<=":
		return interval{hi: bound{v, true}}
	case "~":
		// ~1.2.3 := >=1.2.3 <1.3.0
		return interval{
			lo: bound{v, true},
			hi: bound{&Version{Major: v.Major, Minor: v.Minor + 1}, false},
		}
	case "^":
		// Caret upper bound depends on the left-most non-zero component.
		upper := &Version{Major: v.Major + 1}
		if v.Major == 0 {
			upper = &Version{Minor: v.Minor + 1}
			if v.Minor == 0 {
				upper = &Version{Patch: v.Patch + 1}
			}
		}
		return interval{lo: bound{v, true}, hi: bound{upper, false}}
	default:
		// Unknown operator matches nothing: empty interval.
		return interval{lo: bound{v, false}, hi: bound{v, false}}
	}
}

// Intersects reports whether two constraints admit at least one common version.
// Prerelease identifiers participate via Version.Compare ordering.
func Intersects(a, b *Constraint) bool {
	ia, ib := a.interval(), b.interval()

	lo := maxLower(ia.lo, ib.lo)
	hi := minUpper(ia.hi, ib.hi)

	if lo.version == nil || hi.version == nil {
		return true
	}
	switch lo.version.Compare(hi.version) {
	case -1:
		return true
	case 0:
		return lo.inclusive && hi.inclusive
	default:
		return false
	}
}

func maxLower(a, b bound) bound {
	if a.version == nil {
		return b
	}
	if b.version == nil {
		return a
	}
	switch a.version.Compare(b.version) {
	case 1:
		return a
	case -1:
		return b
	default:
		// Same version: the stricter (exclusive) bound wins.
		if !a.inclusive {
			return a
		}
		return b
	}
}

func minUpper(a, b bound) bound {
	if a.version == nil {
		return b
	}
	if b.version == nil {
		return a
	}
	switch a.version.Compare(b.version) {
	case -1:
		return a
	case 1:
		return b
	default:
		if !a.inclusive {
			return a
		}
		return b
	}
}
