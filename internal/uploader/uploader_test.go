package uploader

import (
	"context"
	"testing"

	"github.com/spf13/afero"

	"lancer/internal/config"
)

func TestNewDefaultsToNoop(t *testing.T) {
	up, err := New(config.StorageConfig{})
	if err != nil {
		t.Fatalf("new uploader: %v", err)
	}
	if up.Enabled() {
		t.Fatalf("expected disabled uploader")
	}
	loc, err := up.UploadFile(context.Background(), afero.NewMemMapFs(), "missing.tar.zst")
	if err != nil || loc != "" {
		t.Fatalf("noop upload returned %q, %v", loc, err)
	}
}

func TestObjectKey(t *testing.T) {
	cases := []struct {
		prefix string
		path   string
		want   string
	}{
		{"", "logs/postgres/cases/database0-x.tar.zst", "database0-x.tar.zst"},
		{"/nightly/", "logs/postgres/cases/database0-x.tar.zst", "nightly/database0-x.tar.zst"},
	}
	for _, c := range cases {
		if got := objectKey(c.prefix, c.path); got != c.want {
			t.Fatalf("objectKey(%q, %q)=%q, want %q", c.prefix, c.path, got, c.want)
		}
	}
}
