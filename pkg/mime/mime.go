// Package mime detects file content types for filtering mirrored files.
package mime

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Detect Reads the head of the file at path and returns its type details
func Detect(path string) (details *Details, err error) {
	var mtype *mimetype.MIME
	if mtype, err = mimetype.DetectFile(path); err != nil {
		return
	}

	details = &Details{
		SubClass:  make([]string, 0),
		Extension: mtype.Extension(),
	}
	// drop parameters such as "; charset=utf-8"
	details.Type, _, _ = strings.Cut(mtype.String(), ";")
	details.Catagory, _, _ = strings.Cut(details.Type, "/")

	for p := mtype.Parent(); p != nil; p = p.Parent() {
		t, _, _ := strings.Cut(p.String(), ";")
		details.SubClass = append(details.SubClass, t)
	}
	return
}

// Skip Test if the file at path has one of the given types.
// Files that cannot be read are never skipped.
func Skip(path string, types []string) bool {
	if len(types) == 0 {
		return false
	}
	details, err := Detect(path)
	if err != nil {
		return false
	}
	return details.Matches(types)
}
