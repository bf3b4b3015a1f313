package webdav

import "testing"

func TestNormalizePath(t *testing.T) {
	tests := map[string]string{
		"":             "",
		"/":            "",
		"//a///b/":     "a/b",
		" /docs/x.txt": "docs/x.txt",
		"a/b/c":        "a/b/c",
	}
	for in, want := range tests {
		if got := NormalizePath(in); got != want {
			t.Errorf("NormalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParentAndFileName(t *testing.T) {
	if got := ParentPath("/a/b/c.txt"); got != "a/b" {
		t.Fatalf("ParentPath: %q", got)
	}
	if got := ParentPath("c.txt"); got != "" {
		t.Fatalf("ParentPath of top level: %q", got)
	}
	if got := FileName("/a/b/c.txt/"); got != "c.txt" {
		t.Fatalf("FileName: %q", got)
	}
}

func TestSanitizeName(t *testing.T) {
	tests := map[string]string{
		"":           "root",
		"  ":         "root",
		"a:b?c":      "a_b_c",
		"x\x00y\tz":  "xyz",
		"con":        "_con",
		"LPT1.txt":   "_LPT1.txt",
		"console":    "console",
		"trailing. ": "trailing",
		"普通文件.mp4":   "普通文件.mp4",
	}
	for in, want := range tests {
		if got := SanitizeName(in); got != want {
			t.Errorf("SanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}
