package storage

import (
	"errors"
	"net/url"
	"path/filepath"
	"strings"
)

type URI url.URL

// ParseURI parses the path using `url.Parse`. If the provided uri does not
// contain a scheme, the scheme is set to file. Relative paths are
// treated as files and resolved as absolute paths using filepath.Abs.
// If path is an empty, a pointer to zero-valued URI is returned.
func ParseURI(path string) (*URI, error) {
	if path == "" {
		return &URI{}, nil
	}
	u, err := url.Parse(path)
	if err != nil || !knownScheme(Scheme(u.Scheme)) {
		// If we don't know the scheme, either it's empty string,
		// implying a file, or it's a file path with a colon embedded,
		// so we parse it either way as a file.
		return parseBarePath(path)
	}
	return (*URI)(u), nil
}

func MustParseURI(path string) *URI {
	u, err := ParseURI(path)
	if err != nil {
		panic(err)
	}
	return u
}

func parseBarePath(path string) (*URI, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if len(filepath.VolumeName(path)) == 2 {
		// Add leading '/' to paths beginning with a drive letter.
		path = "/" + path
	}
	return &URI{Scheme: string(FileScheme), Path: filepath.ToSlash(path)}, nil
}

func (u URI) String() string {
	return (*url.URL)(&u).String()
}

func (u *URI) HasScheme(s Scheme) bool {
	return Scheme(u.Scheme) == s
}

func (u URI) Filepath() string {
	path := u.Path
	if len(path) > 0 && path[0] == '/' && len(filepath.VolumeName(path[1:])) == 2 {
		// Strip leading '/' from paths beginning with a drive letter.
		path = path[1:]
	}
	return filepath.FromSlash(path)
}

// Resolve interprets ref relative to the directory holding u.  Absolute
// paths and URIs with a known scheme are returned as parsed.
func (u *URI) Resolve(ref string) (*URI, error) {
	if ref == "" {
		return nil, errors.New("empty path reference")
	}
	if r, err := url.Parse(ref); err == nil && knownScheme(Scheme(r.Scheme)) {
		return (*URI)(r), nil
	}
	if u.HasScheme(FileScheme) || u.Scheme == "" {
		if filepath.IsAbs(ref) {
			return parseBarePath(ref)
		}
		return parseBarePath(filepath.Join(filepath.Dir(u.Filepath()), ref))
	}
	out := *u
	ref = filepath.ToSlash(ref)
	if strings.HasPrefix(ref, "/") {
		out.Path = ref
	} else {
		out.Path = u.Path[:strings.LastIndexByte(u.Path, '/')+1] + strings.TrimPrefix(ref, "./")
	}
	return &out, nil
}

func (u *URI) IsZero() bool {
	return *u == URI{}
}

func (u *URI) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

func (u *URI) UnmarshalText(b []byte) error {
	uri, err := ParseURI(string(b))
	if err != nil {
		return err
	}
	*u = *uri
	return nil
}
