package textutil_test

import (
	"testing"

	"phototag/internal/textutil"
)

func TestSanitizeFileName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"cat.jpg", "cat.jpg"},
		{"  My Cat.JPG ", "My_Cat.JPG"},
		{"../../etc/passwd", "etc_passwd"},
		{`C:\photos\dog.png`, "C_photos_dog.png"},
		{"café.jpg", "cafe.jpg"},
		{"Ångström crème.webp", "Angstrom_creme.webp"},
		{"猫.jpg", "jpg"},
		{".hidden.png", "hidden.png"},
		{"a   b.jpg", "a_b.jpg"},
		{"con.jpg", "_con.jpg"},
		{"", ""},
		{"///", ""},
	}
	for _, tc := range cases {
		if got := textutil.SanitizeFileName(tc.in); got != tc.want {
			t.Errorf("SanitizeFileName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestExtension(t *testing.T) {
	cases := map[string]string{
		"cat.JPG":     "jpg",
		"archive.tar": "tar",
		"noext":       "",
		"a.b.WebP":    "webp",
	}
	for in, want := range cases {
		if got := textutil.Extension(in); got != want {
			t.Errorf("Extension(%q) = %q, want %q", in, got, want)
		}
	}
}
