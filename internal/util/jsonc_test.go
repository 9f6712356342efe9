package util

import "testing"

func TestStripComments(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "line comment", input: "{\"a\": 1 // one\n}", want: "{\"a\": 1 \n}"},
		{name: "block comment", input: `{/* x */"a": 1}`, want: `{"a": 1}`},
		{name: "multiline block", input: "{\"a\": /* x\n y */ 2}", want: `{"a":  2}`},
		{name: "marker in string", input: `{"url": "http://x/*y*/"}`, want: `{"url": "http://x/*y*/"}`},
		{name: "escaped quote", input: `{"a": "q\"//"} // c`, want: `{"a": "q\"//"} `},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := string(StripComments([]byte(tc.input)))
			if got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}
