package xmeml

import (
	"net/url"
	"path/filepath"
	"strings"
)

// PathFromURL converts a pathurl value to a local filesystem path.
//
// file://localhost/Users/me/a%20b.mov -> /Users/me/a b.mov
// file:///C:/Media/a.mov              -> C:/Media/a.mov
// file://server/share/a.mov           -> //server/share/a.mov
//
// Values without a file scheme are unescaped and returned as is. Relative
// results are resolved against baseDir when it is not empty.
func PathFromURL(raw, baseDir string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	var p string
	if len(raw) >= len("file://") && strings.EqualFold(raw[:len("file://")], "file://") {
		p = fileURLPath(raw)
	} else if unescaped, err := url.PathUnescape(raw); err == nil {
		p = unescaped
	} else {
		p = raw
	}

	if baseDir != "" && !isAbs(p) {
		p = filepath.Join(baseDir, filepath.FromSlash(p))
	}
	return p
}

func fileURLPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		rest := raw[len("file://"):]
		if unescaped, uerr := url.PathUnescape(rest); uerr == nil {
			rest = unescaped
		}
		return trimDriveSlash(strings.TrimPrefix(rest, "localhost"))
	}

	p := u.Path
	if u.Host != "" && !strings.EqualFold(u.Host, "localhost") {
		return "//" + u.Host + p
	}
	return trimDriveSlash(p)
}

// trimDriveSlash turns /C:/dir into C:/dir.
func trimDriveSlash(p string) string {
	if len(p) >= 3 && p[0] == '/' && isDriveLetter(p[1]) && p[2] == ':' {
		return p[1:]
	}
	return p
}

func isAbs(p string) bool {
	if filepath.IsAbs(p) || strings.HasPrefix(p, "/") || strings.HasPrefix(p, `\`) {
		return true
	}
	return len(p) >= 2 && isDriveLetter(p[0]) && p[1] == ':'
}

func isDriveLetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}
