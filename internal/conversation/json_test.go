package conversation

import "testing"

func TestStripCodeFence(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tc := range cases {
		if got := stripCodeFence(tc.in); got != tc.want {
			t.Fatalf("stripCodeFence(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestExtractJSONObject(t *testing.T) {
	got, err := extractJSONObject(`Here you go: {"intent":"interested","note":"has } inside"} trailing`)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if got != `{"intent":"interested","note":"has } inside"}` {
		t.Fatalf("got %q", got)
	}

	got, err = extractJSONObject(`{"outer":{"inner":1}}`)
	if err != nil || got != `{"outer":{"inner":1}}` {
		t.Fatalf("nested: %q %v", got, err)
	}

	if _, err := extractJSONObject("no json here"); err == nil {
		t.Fatalf("missing object accepted")
	}
	if _, err := extractJSONObject(`{"unclosed":`); err == nil {
		t.Fatalf("unbalanced object accepted")
	}
}
