package webdav

import (
	"strings"
	"unicode"
)

// NormalizePath trims surrounding slashes and collapses repeated ones. The
// root folder is the empty path.
func NormalizePath(p string) string {
	p = strings.TrimSpace(p)
	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, part := range parts {
		if part != "" {
			out = append(out, part)
		}
	}
	return strings.Join(out, "/")
}

// ParentPath returns the folder holding p.
func ParentPath(p string) string {
	p = NormalizePath(p)
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return ""
	}
	return p[:i]
}

// FileName returns the sanitized last segment of p.
func FileName(p string) string {
	p = NormalizePath(p)
	return SanitizeName(p[strings.LastIndexByte(p, '/')+1:])
}

// JoinPath joins and normalizes path segments.
func JoinPath(elem ...string) string {
	return NormalizePath(strings.Join(elem, "/"))
}

var reservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// SanitizeName makes name safe to use as a single path segment on any
// filesystem. An empty result becomes "root".
func SanitizeName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, strings.TrimSpace(name))
	name = strings.TrimRight(name, ". ")

	stem, _, _ := strings.Cut(name, ".")
	if reservedNames[strings.ToUpper(stem)] {
		name = "_" + name
	}
	if name == "" {
		return "root"
	}
	return name
}
