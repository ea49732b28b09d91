package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgallion1/richconv/internal/convert"
)

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	root := NewRootCmd()
	out, errOut := new(bytes.Buffer), new(bytes.Buffer)
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(out)
	root.SetErr(errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), errOut.String(), err
}

func TestNewRootCmd_HasSubcommands(t *testing.T) {
	root := NewRootCmd()
	for _, name := range []string{"deserialize", "serialize", "roundtrip"} {
		if c, _, err := root.Find([]string{name}); err != nil || c.Name() != name {
			t.Errorf("expected subcommand %q", name)
		}
	}
	if root.PersistentFlags().Lookup("max-depth") == nil {
		t.Error("expected --max-depth flag")
	}
}

func TestDeserialize_Stdin(t *testing.T) {
	out, _, err := run(t, `<p>Hello <strong>World</strong></p>`, "deserialize")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got []map[string]any
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not a JSON array: %v\n%s", err, out)
	}
	if len(got) != 1 || got[0]["type"] != "paragraph" {
		t.Errorf("expected one paragraph, got %s", out)
	}
}

func TestSerialize_AcceptsArrayAndObject(t *testing.T) {
	nodes := `[{"object":"block","type":"paragraph","nodes":[{"object":"text","text":"a < b"}]}]`
	for _, in := range []string{nodes, `{"nodes":` + nodes + `}`} {
		out, _, err := run(t, in, "serialize")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out != "<p>a &lt; b</p>\n" {
			t.Errorf("unexpected output %q", out)
		}
	}
}

func TestSerialize_BadInput(t *testing.T) {
	_, _, err := run(t, `[{"object":"nope"}]`, "serialize")
	if err == nil {
		t.Fatal("expected error for unknown object")
	}
}

func TestRoundtrip_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.md")
	if err := os.WriteFile(path, []byte("# Notes\n\n- *one*\n- two\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, _, err := run(t, "", "roundtrip", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "<h1>Notes</h1><ul><li><em>one</em></li><li>two</li></ul>\n"
	if out != want {
		t.Errorf("expected %q, got %q", want, out)
	}
}

func TestRoundtrip_FormatFlagAndFallback(t *testing.T) {
	out, _, err := run(t, "<section><p>kept</p><blink>x</blink></section>", "roundtrip", "--format", "html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "<p>kept</p>x\n" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestRoundtrip_Verbose(t *testing.T) {
	_, errOut, err := run(t, "<div><p>x</p></div>", "roundtrip", "-v")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(errOut, "div") {
		t.Errorf("expected fallback logged to stderr, got %q", errOut)
	}
	if !strings.Contains(errOut, "paragraph<->p") {
		t.Errorf("expected rule names logged to stderr, got %q", errOut)
	}
}

func TestRoundtrip_AtDepthLimit(t *testing.T) {
	in := strings.Repeat("<blockquote>", 3) + "x" + strings.Repeat("</blockquote>", 3)
	out, _, err := run(t, in, "roundtrip", "--max-depth", "3")
	if err != nil {
		t.Fatalf("expected a tree at the limit to round trip: %v", err)
	}
	if strings.TrimSpace(out) != in {
		t.Errorf("expected %q, got %q", in, out)
	}
	in = "<blockquote>" + in + "</blockquote>"
	if _, _, err := run(t, in, "roundtrip", "--max-depth", "3"); !errors.Is(err, convert.ErrMaxDepth) {
		t.Fatalf("expected ErrMaxDepth one level past the limit, got %v", err)
	}
}

func TestMaxDepthFlag(t *testing.T) {
	in := strings.Repeat("<div>", 10) + "x" + strings.Repeat("</div>", 10)
	_, _, err := run(t, in, "deserialize", "--max-depth", "5")
	if !errors.Is(err, convert.ErrMaxDepth) {
		t.Fatalf("expected ErrMaxDepth, got %v", err)
	}
	if _, _, err := run(t, in, "deserialize", "--max-depth", "0"); err != nil {
		t.Fatalf("expected unlimited depth to succeed: %v", err)
	}
}

func TestMissingFile(t *testing.T) {
	if _, _, err := run(t, "", "deserialize", filepath.Join(t.TempDir(), "missing.html")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
