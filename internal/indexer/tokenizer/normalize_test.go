package tokenizer

import "testing"

func TestSteps(t *testing.T) {
	cases := []struct {
		name string
		step Step
		in   string
		want string
	}{
		{"lower ascii", Lowercase, "QuIcK", "quick"},
		{"lower leaves non-ascii", Lowercase, "ÉCOLE", "École"},
		{"quotes wrapped", StripQuotes, "''fox'", "fox"},
		{"quotes bare", StripQuotes, "fox42", "fox42"},
		{"quotes inner", StripQuotes, "don't", ""},
		{"quotes only", StripQuotes, "'''", ""},
		{"quotes symbol", StripQuotes, "c++", ""},
		{"entity lt", StripEntities, "&ltcode&gt", "code"},
		{"entity amp kept", StripEntities, "&amp", "&amp"},
		{"entity short", StripEntities, "&l", "&l"},
		{"px", DropPixelSize, "300px", ""},
		{"px no digits", DropPixelSize, "px", "px"},
		{"px mixed", DropPixelSize, "a300px", "a300px"},
		{"px trailing letter", DropPixelSize, "300pxl", "300pxl"},
		{"px inner", DropPixelSize, "300px2", "300px2"},
		{"form", DropFormAttr, "formatting", ""},
		{"form exact", DropFormAttr, "form", ""},
		{"form inside", DropFormAttr, "platform", "platform"},
		{"heading", DropHeading, "h2", ""},
		{"heading long", DropHeading, "h22", "h22"},
		{"heading letter", DropHeading, "hx", "hx"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.step(tc.in); got != tc.want {
				t.Errorf("step(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"Quick":    "quick",
		"'Python'": "python",
		"400PX":    "",
		"H1":       "",
		"Form1":    "",
		"it's":     "",
		"&lt":      "",
		"MySQL5":   "mysql5",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestQuoteStripRequiresLowercaseFirst(t *testing.T) {
	// Reversing the first two steps changes the result for capitalised words.
	if got := Lowercase(StripQuotes("'Fox'")); got != "" {
		t.Fatalf("reordered pipeline = %q, want empty", got)
	}
	if got := StripQuotes(Lowercase("'Fox'")); got != "fox" {
		t.Fatalf("pipeline = %q, want fox", got)
	}
}
