// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"strings"
	"testing"
)

const testSchema = `
#Repo: {
	type: "registry" | "vcs" | "path"
	url:  string
	optional?: bool
}
#Doc: {
	name:          string
	repositories?: [...#Repo]
	require?: [string]: string
}
`

type (
	testRepo struct {
		Type     string `json:"type"`
		URL      string `json:"url"`
		Optional bool   `json:"optional,omitempty"`
	}
	testDoc struct {
		Name         string            `json:"name"`
		Repositories []testRepo        `json:"repositories,omitempty"`
		Require      map[string]string `json:"require,omitempty"`
	}
)

func TestParseAndDecode(t *testing.T) {
	t.Parallel()

	t.Run("json input", func(t *testing.T) {
		t.Parallel()

		data := []byte(`{"name": "acme/app", "require": {"acme/widgets": "^1.0"}, "repositories": [{"type": "vcs", "url": "https://example.com/w.git", "optional": true}]}`)
		res, err := ParseAndDecode[testDoc]([]byte(testSchema), data, "#Doc", WithFilename("pakt.json"))
		if err != nil {
			t.Fatalf("ParseAndDecode() error = %v", err)
		}
		if res.Value.Name != "acme/app" || res.Value.Require["acme/widgets"] != "^1.0" {
			t.Errorf("decoded = %+v", res.Value)
		}
		if len(res.Value.Repositories) != 1 || !res.Value.Repositories[0].Optional {
			t.Errorf("repositories = %+v", res.Value.Repositories)
		}
	})

	t.Run("cue input", func(t *testing.T) {
		t.Parallel()

		res, err := ParseAndDecode[testDoc]([]byte(testSchema), []byte(`name: "acme/app"`), "#Doc")
		if err != nil {
			t.Fatalf("ParseAndDecode() error = %v", err)
		}
		if res.Value.Name != "acme/app" {
			t.Errorf("Name = %q", res.Value.Name)
		}
	})

	t.Run("invalid enum reports path and filename", func(t *testing.T) {
		t.Parallel()

		data := []byte(`{"name": "a/b", "repositories": [{"type": "ftp", "url": "x"}]}`)
		_, err := ParseAndDecode[testDoc]([]byte(testSchema), data, "#Doc", WithFilename("pakt.json"))
		if err == nil {
			t.Fatal("expected error")
		}
		msg := err.Error()
		if !strings.Contains(msg, "pakt.json") || !strings.Contains(msg, "repositories[0].type") {
			t.Errorf("error = %q, want filename and path", msg)
		}
	})

	t.Run("missing required field", func(t *testing.T) {
		t.Parallel()

		if _, err := ParseAndDecode[testDoc]([]byte(testSchema), []byte(`{}`), "#Doc"); err == nil {
			t.Error("expected error for missing name")
		}
	})

	t.Run("syntax error", func(t *testing.T) {
		t.Parallel()

		if _, err := ParseAndDecode[testDoc]([]byte(testSchema), []byte(`{"name": `), "#Doc"); err == nil {
			t.Error("expected syntax error")
		}
	})

	t.Run("size limit", func(t *testing.T) {
		t.Parallel()

		_, err := ParseAndDecode[testDoc]([]byte(testSchema), []byte(`{"name": "a/b"}`), "#Doc", WithMaxFileSize(4))
		if !errors.Is(err, ErrFileTooLarge) {
			t.Errorf("error = %v, want ErrFileTooLarge", err)
		}
	})

	t.Run("unknown definition", func(t *testing.T) {
		t.Parallel()

		_, err := ParseAndDecode[testDoc]([]byte(testSchema), []byte(`{"name": "a/b"}`), "#Missing")
		if err == nil || !strings.Contains(err.Error(), "internal error") {
			t.Errorf("error = %v", err)
		}
	})
}

func TestFormatPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   []string
		want string
	}{
		{nil, ""},
		{[]string{"name"}, "name"},
		{[]string{"repositories", "0", "url"}, "repositories[0].url"},
		{[]string{"0"}, "0"},
	}
	for _, tt := range tests {
		if got := formatPath(tt.in); got != tt.want {
			t.Errorf("formatPath(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatError_Nil(t *testing.T) {
	t.Parallel()

	if FormatError(nil, "x") != nil {
		t.Error("FormatError(nil) should be nil")
	}
}
