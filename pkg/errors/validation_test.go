package errors

import (
	"strings"
	"testing"
)

func TestValidators(t *testing.T) {
	segment := func(s string) error { return ValidatePathSegment("segment", s) }
	tests := []struct {
		name     string
		validate func(string) error
		valid    []string
		invalid  []string
		code     Code
	}{
		{
			name:     "path segment",
			validate: segment,
			valid:    []string{"requests", "1.0.0", "2.31.0-METADATA", ".fails"},
			invalid:  []string{"", ".", "..", "a/b", `a\b`, "a\x00b", "a\nb", strings.Repeat("x", 256)},
			code:     ErrCodeInvalidInput,
		},
		{
			name:     "package name",
			validate: ValidatePackageName,
			valid:    []string{"requests", "Django", "zope.interface", "typing_extensions", "a", "pkg123"},
			invalid:  []string{"", "-pkg", "pkg-", ".pkg", "pkg.", "my pkg", "my@pkg", "../x", "a/b"},
			code:     ErrCodeInvalidPackage,
		},
		{
			name:     "index URL",
			validate: ValidateURL,
			valid:    []string{"https://pypi.org/simple/", "http://localhost:8080/", "file:///tmp/wheelhouse/scenario"},
			invalid:  []string{"", "ftp://example.com", "javascript:alert(1)", "pypi.org/simple"},
			code:     ErrCodeInvalidInput,
		},
		{
			name:     "scenario name",
			validate: ValidateScenarioName,
			valid:    []string{"requests-0.ignore", "django-celery-3"},
			invalid:  []string{"", "../etc/passwd", ".hidden", `a\b`},
			code:     ErrCodeInvalidInput,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, in := range tt.valid {
				if err := tt.validate(in); err != nil {
					t.Errorf("%q rejected: %v", in, err)
				}
			}
			for _, in := range tt.invalid {
				err := tt.validate(in)
				if err == nil {
					t.Errorf("%q accepted", in)
					continue
				}
				if GetCode(err) != tt.code {
					t.Errorf("%q: code %s, want %s", in, GetCode(err), tt.code)
				}
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	v := &ValidationError{Subject: "scenario requests-0"}
	if v.Err() != nil {
		t.Fatal("empty ValidationError should yield nil Err()")
	}

	v.Add("packages.Foo", "not a normalized package name")
	v.Add("packages.foo", "multiple versions with canonical value %q", "1")

	err := v.Err()
	if err == nil {
		t.Fatal("Err() = nil, want error")
	}
	msg := err.Error()
	for _, want := range []string{
		"2 validation errors for scenario requests-0",
		"  packages.Foo: not a normalized package name",
		`  packages.foo: multiple versions with canonical value "1"`,
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() missing %q:\n%s", want, msg)
		}
	}
}

func TestErrorCodesAreUnique(t *testing.T) {
	codes := []Code{
		ErrCodeInvalidInput,
		ErrCodeInvalidPackage,
		ErrCodeInvalidScenario,
		ErrCodeInvalidConfig,
		ErrCodeNotFound,
		ErrCodeInspectFailed,
	}

	seen := make(map[Code]bool)
	for _, code := range codes {
		if seen[code] {
			t.Errorf("Duplicate error code: %s", code)
		}
		seen[code] = true
	}
}
