// SPDX-License-Identifier: MPL-2.0

package version

import (
	"cmp"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DevAliasSegment is the segment value used for branch pseudo-versions
// ("1.0.x-dev" normalizes to "1.0.9999999.9999999-dev").
const DevAliasSegment = 9999999

// DefaultBranchVersion is the normalized form of master, trunk and default.
const DefaultBranchVersion = "9999999-dev"

const modifierPattern = `[._-]?(?:(stable|beta|b|rc|alpha|a|patch|pl|p)(?:[.-]?(\d+))?)?([.-]?dev)?`

var (
	classicalPattern = regexp.MustCompile(`(?i)^v?(\d{1,5})(\.\d+)?(\.\d+)?(\.\d+)?` + modifierPattern + `$`)
	datePattern      = regexp.MustCompile(`(?i)^v?(\d{4}(?:[.:-]?\d{2}){1,6}(?:[.:-]?\d{1,3})?)` + modifierPattern + `$`)
	defaultBranch    = regexp.MustCompile(`(?i)^(?:dev-)?(?:master|trunk|default)$`)
	devSuffix        = regexp.MustCompile(`(?i)^(.*?)[.-]?dev$`)
	numericBranch    = regexp.MustCompile(`(?i)^v?(\d+)(\.(?:\d+|[x*]))?(\.(?:\d+|[x*]))?(\.(?:\d+|[x*]))?$`)
	dateSeparators   = regexp.MustCompile(`[.:-]`)
)

// modifier orders pre-release labels within one set of numeric segments.
type modifier int

const (
	modDev modifier = iota
	modAlpha
	modBeta
	modRC
	modStable
	modPatch
)

func (m modifier) label() string {
	switch m {
	case modAlpha:
		return "alpha"
	case modBeta:
		return "beta"
	case modRC:
		return "RC"
	case modPatch:
		return "patch"
	case modDev:
		return "dev"
	default:
		return ""
	}
}

func parseModifier(s string) modifier {
	switch strings.ToLower(s) {
	case "alpha", "a":
		return modAlpha
	case "beta", "b":
		return modBeta
	case "rc":
		return modRC
	case "patch", "pl", "p":
		return modPatch
	default:
		return modStable
	}
}

// Version is a normalized, comparable version.
//
// The zero value is not a valid version; obtain values from [Normalize],
// [NormalizeBranch] or [MustNormalize].
type Version struct {
	// Pretty is the version string as written by the package author.
	Pretty string
	// Normalized is the canonical text form, stable across runs.
	Normalized string

	segments  []int64
	mod       modifier
	modNum    int64
	devSuffix bool
	branch    string
}

// Normalize parses a raw version string into a comparable Version.
func Normalize(raw string) (Version, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return Version{}, invalid(raw, "empty version")
	}

	if defaultBranch.MatchString(v) {
		return Version{
			Pretty:     raw,
			Normalized: DefaultBranchVersion,
			segments:   []int64{DevAliasSegment, DevAliasSegment, DevAliasSegment, DevAliasSegment},
			mod:        modDev,
		}, nil
	}
	if v == DefaultBranchVersion {
		out, _ := Normalize("master")
		out.Pretty = raw
		return out, nil
	}

	if len(v) > 4 && strings.EqualFold(v[:4], "dev-") {
		return Version{Pretty: raw, Normalized: "dev-" + v[4:], mod: modDev, branch: v[4:]}, nil
	}

	if m := classicalPattern.FindStringSubmatch(v); m != nil {
		segs := make([]int64, 0, 4)
		for i := 1; i <= 4; i++ {
			part := strings.TrimPrefix(m[i], ".")
			if part == "" {
				segs = append(segs, 0)
				continue
			}
			n, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return Version{}, invalid(raw, "numeric segment out of range")
			}
			segs = append(segs, n)
		}
		out, err := fromParts(raw, segs, nil, m[5], m[6], m[7])
		if err != nil {
			return Version{}, err
		}
		return out, nil
	}

	if m := datePattern.FindStringSubmatch(v); m != nil {
		texts := dateSeparators.Split(m[1], -1)
		segs := make([]int64, 0, len(texts))
		for _, t := range texts {
			n, err := strconv.ParseInt(t, 10, 64)
			if err != nil {
				return Version{}, invalid(raw, "numeric segment out of range")
			}
			segs = append(segs, n)
		}
		return fromParts(raw, segs, texts, m[2], m[3], m[4])
	}

	if m := devSuffix.FindStringSubmatch(v); m != nil && m[1] != "" {
		out := NormalizeBranch(m[1])
		out.Pretty = raw
		return out, nil
	}

	return Version{}, invalid(raw, "not a version, branch, or date")
}

// MustNormalize is like Normalize but panics on error. Intended for tests and
// compile-time constants.
func MustNormalize(raw string) Version {
	v, err := Normalize(raw)
	if err != nil {
		panic(err)
	}
	return v
}

// NormalizeBranch maps a VCS branch name to its version. Numeric branches
// ("1.0", "2.x") become pseudo-versions; anything else becomes "dev-<name>".
func NormalizeBranch(name string) Version {
	n := strings.TrimSpace(name)
	if defaultBranch.MatchString(n) {
		v, _ := Normalize("master")
		v.Pretty = "dev-" + n
		return v
	}
	if m := numericBranch.FindStringSubmatch(n); m != nil {
		segs := make([]int64, 0, 4)
		for i := 1; i <= 4; i++ {
			part := strings.TrimPrefix(m[i], ".")
			switch part {
			case "", "x", "X", "*":
				segs = append(segs, DevAliasSegment)
			default:
				val, err := strconv.ParseInt(part, 10, 64)
				if err != nil {
					val = DevAliasSegment
				}
				segs = append(segs, val)
			}
		}
		v := build(segs, nil, modDev, 0, false)
		v.Pretty = n + "-dev"
		if !strings.HasSuffix(strings.ToLower(n), "x") {
			v.Pretty = n + ".x-dev"
		}
		return v
	}
	return Version{Pretty: "dev-" + n, Normalized: "dev-" + n, mod: modDev, branch: n}
}

func fromParts(raw string, segs []int64, texts []string, mod, num, dev string) (Version, error) {
	m := modStable
	var n int64
	if mod != "" {
		m = parseModifier(mod)
		if num != "" {
			parsed, err := strconv.ParseInt(num, 10, 64)
			if err != nil {
				return Version{}, invalid(raw, "modifier number out of range")
			}
			n = parsed
		}
	}
	hasDev := dev != ""
	if m == modStable && hasDev {
		// "1.0.0-dev" is a plain dev snapshot, ordered below alpha.
		m, hasDev = modDev, false
	}
	v := build(segs, texts, m, n, hasDev)
	v.Pretty = raw
	return v, nil
}

func build(segs []int64, texts []string, m modifier, n int64, hasDev bool) Version {
	var b strings.Builder
	for i, s := range segs {
		if i > 0 {
			b.WriteByte('.')
		}
		if texts != nil {
			b.WriteString(texts[i])
		} else {
			b.WriteString(strconv.FormatInt(s, 10))
		}
	}
	if m != modStable {
		b.WriteByte('-')
		b.WriteString(m.label())
		if n > 0 {
			b.WriteString(strconv.FormatInt(n, 10))
		}
	}
	if hasDev {
		b.WriteString("-dev")
	}
	return Version{
		Normalized: b.String(),
		segments:   segs,
		mod:        m,
		modNum:     n,
		devSuffix:  hasDev,
	}
}

// IsValid reports whether v was produced by a parser.
func (v Version) IsValid() bool { return v.Normalized != "" }

// IsBranch reports whether v is a named dev branch ("dev-feature").
// Named branches only compare equal to themselves under constraints.
func (v Version) IsBranch() bool { return v.branch != "" }

// Branch returns the branch name for named dev branches and branch
// pseudo-versions ("1.0.x"), or "" for releases.
func (v Version) Branch() string {
	if v.branch != "" {
		return v.branch
	}
	if v.IsDev() && len(v.segments) == 4 && v.segments[len(v.segments)-1] == DevAliasSegment {
		if v.Normalized == DefaultBranchVersion {
			return "master"
		}
		parts := make([]string, 0, 4)
		for _, s := range v.segments {
			if s == DevAliasSegment {
				parts = append(parts, "x")
				break
			}
			parts = append(parts, strconv.FormatInt(s, 10))
		}
		return strings.Join(parts, ".")
	}
	return ""
}

// IsDev reports whether v has dev stability.
func (v Version) IsDev() bool { return v.Stability() == Dev }

// Stability returns the maturity class of v.
func (v Version) Stability() Stability {
	if v.branch != "" || v.devSuffix {
		return Dev
	}
	switch v.mod {
	case modDev:
		return Dev
	case modAlpha:
		return Alpha
	case modBeta:
		return Beta
	case modRC:
		return RC
	default:
		return Stable
	}
}

// Segments returns a copy of the numeric segments.
func (v Version) Segments() []int64 {
	return append([]int64(nil), v.segments...)
}

// String returns the pretty form, falling back to the normalized form.
func (v Version) String() string {
	if v.Pretty != "" {
		return v.Pretty
	}
	return v.Normalized
}

// Equal reports whether a and b normalize to the same version.
func (v Version) Equal(o Version) bool { return v.Normalized == o.Normalized }

// GoString supports %#v in test failures.
func (v Version) GoString() string { return fmt.Sprintf("version.Version(%q)", v.Normalized) }

// devLowered returns the lowest dev snapshot sharing v's numeric segments.
func (v Version) devLowered() Version {
	return build(padded(v.segments), nil, modDev, 0, false)
}

// Compare orders versions: -1 if a < b, 0 if equal, +1 if a > b.
//
// Named dev branches sort below every numeric version and among themselves
// by name. Numeric versions compare segment-wise (missing segments count as
// zero), then by label: dev < alpha < beta < RC < stable < patch, then by
// label number, with a trailing -dev below its plain counterpart. Remaining
// ties fall back to the normalized text so the order stays total.
func Compare(a, b Version) int {
	aBranch, bBranch := a.branch != "", b.branch != ""
	switch {
	case aBranch && !bBranch:
		return -1
	case !aBranch && bBranch:
		return 1
	case aBranch && bBranch:
		if c := cmp.Compare(a.branch, b.branch); c != 0 {
			return c
		}
		return cmp.Compare(a.Normalized, b.Normalized)
	}

	n := max(len(a.segments), len(b.segments))
	for i := range n {
		if c := cmp.Compare(segment(a.segments, i), segment(b.segments, i)); c != 0 {
			return c
		}
	}
	if c := cmp.Compare(a.mod, b.mod); c != 0 {
		return c
	}
	if c := cmp.Compare(a.modNum, b.modNum); c != 0 {
		return c
	}
	if a.devSuffix != b.devSuffix {
		if a.devSuffix {
			return -1
		}
		return 1
	}
	return cmp.Compare(a.Normalized, b.Normalized)
}

// Less reports whether a sorts before b.
func Less(a, b Version) bool { return Compare(a, b) < 0 }

func segment(s []int64, i int) int64 {
	if i < len(s) {
		return s[i]
	}
	return 0
}

func padded(s []int64) []int64 {
	out := append([]int64(nil), s...)
	for len(out) < 4 {
		out = append(out, 0)
	}
	return out
}
