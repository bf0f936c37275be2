package lineproto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type kv struct{ key, value string }

func pairs(fields []Field) []kv {
	var out []kv
	for _, f := range fields {
		out = append(out, kv{f.Key, f.Value})
	}
	return out
}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []kv
	}{
		{
			name: "tab separated with space after colon",
			line: "Key1: 1\tKey2: 0",
			want: []kv{{"Key1", "true"}, {"Key2", "false"}},
		},
		{
			name: "malformed token in the middle",
			line: "Good: 1  BadTokenNoColon  Also:Good",
			want: []kv{{"Good", "true"}, {"Also", "Good"}},
		},
		{
			name: "compact tokens",
			line: "SW1:true SW2:false",
			want: []kv{{"SW1", "true"}, {"SW2", "false"}},
		},
		{
			name: "seven switches",
			line: "Key1: true\tKey2: false\tKey3: true\tKey4: false\tKey5: false\tKey6: true\tKey7: false",
			want: []kv{
				{"Key1", "true"}, {"Key2", "false"}, {"Key3", "true"}, {"Key4", "false"},
				{"Key5", "false"}, {"Key6", "true"}, {"Key7", "false"},
			},
		},
		{
			name: "duplicate keys kept in order",
			line: "A:1 A:0 A:x",
			want: []kv{{"A", "true"}, {"A", "false"}, {"A", "x"}},
		},
		{
			name: "mixed whitespace runs",
			line: " \tTemp:\t 21.5 \t\tHum: 40 ",
			want: []kv{{"Temp", "21.5"}, {"Hum", "40"}},
		},
		{name: "empty line", line: "", want: nil},
		{name: "whitespace only", line: " \t ", want: nil},
		{name: "key without value at end", line: "A:1 B:", want: []kv{{"A", "true"}}},
		{name: "key without value before another pair", line: "B: C:1", want: []kv{{"C", "true"}}},
		{name: "two colons", line: "a:b:c ok:1", want: []kv{{"ok", "true"}}},
		{name: "empty key", line: ":5 x:y", want: []kv{{"x", "y"}}},
		{name: "lone colon", line: ": 1", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pairs(Parse(tt.line)))
		})
	}
}

func TestParse_KeepsRawValue(t *testing.T) {
	fields := Parse("SW1: 1\tMode: auto")
	require.Equal(t, []Field{
		{Key: "SW1", Raw: "1", Value: "true"},
		{Key: "Mode", Raw: "auto", Value: "auto"},
	}, fields)
}

func TestParse_SkipHook(t *testing.T) {
	var skips []Skip
	p := NewParser(WithSkipHook(func(s Skip) { skips = append(skips, s) }))

	fields := p.Parse("Good: 1  BadTokenNoColon  a:b:c  :v  Also:Good  End:")
	require.Equal(t, []kv{{"Good", "true"}, {"Also", "Good"}}, pairs(fields))
	require.Equal(t, []Skip{
		{Token: "BadTokenNoColon", Reason: SkipNoColon},
		{Token: "a:b:c", Reason: SkipExtraColon},
		{Token: ":v", Reason: SkipEmptyKey},
		{Token: "End:", Reason: SkipEmptyValue},
	}, skips)
}

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"0":     "false",
		"1":     "true",
		"01":    "01",
		"10":    "10",
		"true":  "true",
		"false": "false",
		"":      "",
		"1.0":   "1.0",
	}
	for in, want := range tests {
		assert.Equal(t, want, Normalize(in), "input %q", in)
	}
}

func TestParse_NormalizationIsIdempotent(t *testing.T) {
	for _, f := range Parse("a:0 b:1 c:true d:01") {
		assert.Equal(t, f.Value, Normalize(f.Value))
	}
}
