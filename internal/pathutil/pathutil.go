// Package pathutil interns build-graph paths into dense FileIDs.
//
// Paths are treated as opaque byte sequences, never as Unicode text:
// canonicalization and interning both operate on raw bytes so a path that
// happens not to be valid UTF-8 is handled the same as any other.
package pathutil

import "bytes"

// FileID is a dense index into an Interner's path table.
type FileID int32

// NoFile is the "no file" sentinel (-1) and never assigned to a real path.
const NoFile FileID = -1

// Interner canonicalizes and interns paths, handing back a stable FileID
// for each distinct canonical path. Ids are dense and start at 0; callers
// that want a "no file" sentinel should use NoFile.
type Interner struct {
	byPath map[string]FileID
	paths  []string
}

// NewInterner creates an empty Interner.
func NewInterner() *Interner {
	return &Interner{byPath: make(map[string]FileID)}
}

// Intern canonicalizes path and returns its FileID, assigning a new one on
// first use. The canonical bytes are used as a map key but never decoded
// as text.
func (in *Interner) Intern(path string) FileID {
	canon := Canonicalize(path)
	if id, ok := in.byPath[canon]; ok {
		return id
	}
	id := FileID(len(in.paths))
	in.paths = append(in.paths, canon)
	in.byPath[canon] = id
	return id
}

// Lookup returns the FileID for path if it has already been interned,
// without creating a new entry.
func (in *Interner) Lookup(path string) (FileID, bool) {
	id, ok := in.byPath[Canonicalize(path)]
	return id, ok
}

// Path returns the canonical path string for id. Panics if id is out of
// range, which indicates a caller bug (ids only ever come from Intern).
func (in *Interner) Path(id FileID) string {
	return in.paths[id]
}

// Len returns the number of distinct paths interned so far.
func (in *Interner) Len() int {
	return len(in.paths)
}

// Canonicalize normalizes a path the way Ninja does: backslashes become
// forward slashes, "." components are dropped, ".." pops the previous real
// component (never escaping above a relative or root prefix it didn't
// come from), and repeated slashes collapse to one. Case is preserved.
// A trailing slash is preserved only if the input was non-empty and ended
// in one — it is semantically significant for directory-only inputs.
//
// Canonicalize is idempotent: Canonicalize(Canonicalize(p)) == Canonicalize(p).
func Canonicalize(path string) string {
	if path == "" {
		return path
	}

	b := []byte(path)
	for i, c := range b {
		if c == '\\' {
			b[i] = '/'
		}
	}

	leadingSlash := b[0] == '/'
	trailingSlash := len(b) > 1 && b[len(b)-1] == '/'

	var out [][]byte
	for _, comp := range bytes.Split(b, []byte{'/'}) {
		switch {
		case len(comp) == 0:
			continue
		case len(comp) == 1 && comp[0] == '.':
			continue
		case len(comp) == 2 && comp[0] == '.' && comp[1] == '.':
			if n := len(out); n > 0 && !(len(out[n-1]) == 2 && out[n-1][0] == '.' && out[n-1][1] == '.') {
				out = out[:n-1]
			} else if leadingSlash {
				// ".." above an absolute root is dropped; there's nowhere to go.
				continue
			} else {
				out = append(out, comp)
			}
		default:
			out = append(out, comp)
		}
	}

	var result bytes.Buffer
	if leadingSlash {
		result.WriteByte('/')
	}
	for i, comp := range out {
		if i > 0 {
			result.WriteByte('/')
		}
		result.Write(comp)
	}
	if result.Len() == 0 {
		return "."
	}
	if trailingSlash && result.Bytes()[result.Len()-1] != '/' {
		result.WriteByte('/')
	}
	return result.String()
}
