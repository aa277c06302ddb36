// Package util is a set of utility variables or methods
package util

import (
	"path"

	mapset "github.com/deckarep/golang-set/v2"
)

// SupportedExt is the case-sensitive set of image extensions shown in the slideshow.
var SupportedExt = mapset.NewSet(
	".jpg", ".jpeg",
	".png",
	".gif",
)

// IsImageName reports whether name ends in one of SupportedExt.
func IsImageName(name string) bool {
	return SupportedExt.Contains(path.Ext(name))
}
