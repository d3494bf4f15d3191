package executor

import (
	"encoding/json"
	"testing"

	"github.com/devicelab-dev/wdclient/pkg/flow"
	"github.com/devicelab-dev/wdclient/pkg/webdriver"
)

func TestVariables_Expand(t *testing.T) {
	t.Setenv("WDCLIENT_TEST_VAR", "from-env")
	v := newVariables()
	v.setAll(map[string]string{"USER": "ada", "EMPTY": ""})

	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"${USER}", "ada"},
		{"hi ${USER}!", "hi ada!"},
		{"[${EMPTY}]", "[]"},
		{"${WDCLIENT_TEST_VAR}", "from-env"},
		{"${WDCLIENT_UNSET_VAR_42}", "${WDCLIENT_UNSET_VAR_42}"},
		{"$USER", "$USER"},
		{"${1BAD}", "${1BAD}"},
	}
	for _, tt := range tests {
		if got := v.expand(tt.in); got != tt.want {
			t.Errorf("expand(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestVariables_ExpandExpressions(t *testing.T) {
	v := newVariables()
	v.setAll(map[string]string{"USER": "ada", "COUNT": "2"})

	tests := []struct {
		in, want string
	}{
		{"${USER.toUpperCase()}", "ADA"},
		{"${1 + 2}", "3"},
		{"${Number(COUNT) * 10}", "20"},
		{"${ USER }", "ada"},
		{"${USER + '@example.com'}", "ada@example.com"},
		{"${({a: 'x'}).a}", "x"},
		{"${void 0}", ""},
		{"${nope.length}", "${nope.length}"},
		{"${USER} is ${COUNT > 1 ? 'many' : 'one'}", "ada is many"},
		{"open ${", "open ${"},
	}
	for _, tt := range tests {
		if got := v.expand(tt.in); got != tt.want {
			t.Errorf("expand(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestVariables_ExpandSeesLaterValues(t *testing.T) {
	v := newVariables()
	v.set("TOKEN", "abc")
	v.set("TOKEN", "xyz")
	v.set("not-an-identifier", "skip")

	if got := v.expand("${TOKEN.length}:${TOKEN}"); got != "3:xyz" {
		t.Errorf("expand = %q, want %q", got, "3:xyz")
	}
	if got := v.expand("${not-an-identifier}"); got != "${not-an-identifier}" {
		t.Errorf("expand = %q, want it left as written", got)
	}
}

func TestVariables_ExpandArgs(t *testing.T) {
	v := newVariables()
	v.set("ID", "42")

	args := []interface{}{"${ID}", 7, []interface{}{"x${ID}"}, map[string]interface{}{"k": "${ID}"}}
	got := v.expandArgs(args)

	if got[0] != "42" || got[1] != 7 {
		t.Errorf("unexpected scalars %v", got[:2])
	}
	if got[2].([]interface{})[0] != "x42" {
		t.Errorf("list not expanded: %v", got[2])
	}
	if got[3].(map[string]interface{})["k"] != "42" {
		t.Errorf("map not expanded: %v", got[3])
	}
	if args[0] != "${ID}" {
		t.Error("input args were modified")
	}
}

func TestLocatorFor(t *testing.T) {
	v := newVariables()
	v.set("NAME", "login")

	tests := []struct {
		sel  flow.Selector
		want webdriver.Locator
	}{
		{flow.Selector{CSS: "#${NAME}"}, webdriver.ByCSS("#login")},
		{flow.Selector{XPath: "//a"}, webdriver.ByXPath("//a")},
		{flow.Selector{LinkText: "Sign ${NAME}"}, webdriver.ByLinkText("Sign login")},
		{flow.Selector{ID: "${NAME}"}, webdriver.ByID("login")},
	}
	for _, tt := range tests {
		got, err := locatorFor(tt.sel, v)
		if err != nil {
			t.Fatalf("locatorFor(%+v) error = %v", tt.sel, err)
		}
		if got != tt.want {
			t.Errorf("locatorFor(%+v) = %s, want %s", tt.sel, got, tt.want)
		}
	}

	if _, err := locatorFor(flow.Selector{}, v); err == nil {
		t.Error("expected error for empty selector")
	}
	if _, err := locatorFor(flow.Selector{CSS: "a", ID: "b"}, v); err == nil {
		t.Error("expected error for two strategies")
	}
}

func TestResolveURL(t *testing.T) {
	tests := []struct {
		base, ref, want string
	}{
		{"", "https://a.test/x", "https://a.test/x"},
		{"", "relative.html", "relative.html"},
		{"https://a.test/dir/index.html", "next.html", "https://a.test/dir/next.html"},
		{"https://a.test/dir/index.html", "/root.html", "https://a.test/root.html"},
		{"https://a.test/dir/index.html", "https://b.test/", "https://b.test/"},
	}
	for _, tt := range tests {
		got, err := resolveURL(tt.base, tt.ref)
		if err != nil {
			t.Fatalf("resolveURL(%q, %q) error = %v", tt.base, tt.ref, err)
		}
		if got != tt.want {
			t.Errorf("resolveURL(%q, %q) = %q, want %q", tt.base, tt.ref, got, tt.want)
		}
	}
}

func TestDecodeScriptResult(t *testing.T) {
	tests := []struct {
		raw     string
		wantStr string
	}{
		{`null`, ""},
		{`"text"`, "text"},
		{`42`, "42"},
		{`{"a":1}`, `{"a":1}`},
		{`[true]`, `[true]`},
	}
	for _, tt := range tests {
		_, str := decodeScriptResult(json.RawMessage(tt.raw))
		if str != tt.wantStr {
			t.Errorf("decodeScriptResult(%s) string = %q, want %q", tt.raw, str, tt.wantStr)
		}
	}

	value, _ := decodeScriptResult(json.RawMessage(`{"a":1}`))
	if m, ok := value.(map[string]interface{}); !ok || m["a"] != float64(1) {
		t.Errorf("unexpected decoded value %#v", value)
	}
}
