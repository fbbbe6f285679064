// SPDX-License-Identifier: MPL-2.0

package version

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// FromSemver converts a Masterminds semantic version, typically recognised
// from a VCS tag, into a normalized Version. The Pretty form keeps the
// original tag text.
func FromSemver(sv *semver.Version) (Version, error) {
	if sv == nil {
		return Version{}, invalid("", "nil semantic version")
	}
	raw := fmt.Sprintf("%d.%d.%d", sv.Major(), sv.Minor(), sv.Patch())
	if pre := sv.Prerelease(); pre != "" {
		raw += "-" + pre
	}
	v, err := Normalize(raw)
	if err != nil {
		return Version{}, invalid(sv.Original(), "pre-release label is not a known stability")
	}
	v.Pretty = sv.Original()
	return v, nil
}

// FromTag normalizes a VCS tag name. Tags that parse as semantic versions
// go through FromSemver; other tags fall back to Normalize, which also
// accepts four-segment and date versions.
func FromTag(tag string) (Version, error) {
	name := strings.TrimPrefix(tag, "refs/tags/")
	v, err := fromTagName(name)
	if err != nil {
		return Version{}, err
	}
	if v.IsBranch() || v.IsDev() {
		return Version{}, invalid(tag, "tags must not name dev versions")
	}
	return v, nil
}

func fromTagName(name string) (Version, error) {
	if sv, err := semver.NewVersion(name); err == nil {
		if v, err := FromSemver(sv); err == nil {
			return v, nil
		}
	}
	return Normalize(name)
}
