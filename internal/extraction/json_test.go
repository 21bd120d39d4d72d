package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutermostObject(t *testing.T) {
	tests := []struct {
		name         string
		text         string
		wantSpan     string
		wantBalanced bool
	}{
		{
			name:         "plain object",
			text:         `{"a": 1}`,
			wantSpan:     `{"a": 1}`,
			wantBalanced: true,
		},
		{
			name:         "object with surrounding prose",
			text:         `Sure! {"a": {"b": 2}} Hope that helps.`,
			wantSpan:     `{"a": {"b": 2}}`,
			wantBalanced: true,
		},
		{
			name:         "braces inside string literals ignored",
			text:         `{"a": "has } and { inside", "b": 1} tail`,
			wantSpan:     `{"a": "has } and { inside", "b": 1}`,
			wantBalanced: true,
		},
		{
			name:         "escaped quote inside string",
			text:         `{"a": "say \" {", "b": 1}`,
			wantSpan:     `{"a": "say \" {", "b": 1}`,
			wantBalanced: true,
		},
		{
			name:         "unterminated object runs to end",
			text:         `prefix {"a": [1, 2`,
			wantSpan:     `{"a": [1, 2`,
			wantBalanced: false,
		},
		{
			name:         "no object at all",
			text:         "no json here",
			wantSpan:     "",
			wantBalanced: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			span, balanced := OutermostObject(tt.text)
			assert.Equal(t, tt.wantSpan, span)
			assert.Equal(t, tt.wantBalanced, balanced)
		})
	}
}

func TestRepairTruncation(t *testing.T) {
	tests := []struct {
		name string
		span string
		want string
	}{
		{name: "unterminated string", span: `{"a": "cut off`, want: `{"a": "cut off"}`},
		{name: "dangling comma", span: `{"a": 1,`, want: `{"a": 1}`},
		{name: "dangling colon", span: `{"a":`, want: `{"a": null}`},
		{name: "open array", span: `{"a": [1, 2,`, want: `{"a": [1, 2]}`},
		{name: "nested open containers", span: `{"a": {"b": ["x`, want: `{"a": {"b": ["x"]}}`},
		{name: "already balanced", span: `{"a": 1}`, want: `{"a": 1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RepairTruncation(tt.span))
		})
	}
}

func TestDecodeLenient(t *testing.T) {
	type scorePayload struct {
		Scores map[string]float64 `json:"scores"`
	}

	tests := []struct {
		name    string
		raw     string
		wantErr bool
		want    map[string]float64
	}{
		{
			name: "clean json",
			raw:  `{"scores": {"clarity": 0.8}}`,
			want: map[string]float64{"clarity": 0.8},
		},
		{
			name: "fenced json",
			raw:  "```json\n{\"scores\": {\"clarity\": 0.8}}\n```",
			want: map[string]float64{"clarity": 0.8},
		},
		{
			name: "trailing prose",
			raw:  `{"scores": {"clarity": 0.8}} evaluated as requested.`,
			want: map[string]float64{"clarity": 0.8},
		},
		{
			name: "truncated",
			raw:  `{"scores": {"clarity": 0.8, "rigor": 0.7`,
			want: map[string]float64{"clarity": 0.8, "rigor": 0.7},
		},
		{
			name:    "no json",
			raw:     "nothing to see",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var payload scorePayload
			err := DecodeLenient(tt.raw, &payload)
			if tt.wantErr {
				var failure *Failure
				require.ErrorAs(t, err, &failure)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, payload.Scores)
		})
	}
}
