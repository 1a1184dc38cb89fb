package filtering

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultTagFilter_ShouldInclude(t *testing.T) {
	t.Parallel()

	filter := NewDefaultTagFilter()

	tests := []struct {
		name    string
		tags    []string
		include []string
		exclude []string
		want    bool
	}{
		{name: "no filters", tags: []string{"tech"}, want: true},
		{name: "no tags, no filters", want: true},
		{name: "include match", tags: []string{"tech", "hottest"}, include: []string{"hottest"}, want: true},
		{name: "include miss", tags: []string{"tech"}, include: []string{"finance"}, want: false},
		{name: "no tags with include", include: []string{"tech"}, want: false},
		{name: "exclude match", tags: []string{"tech", DisabledTag}, exclude: []string{DisabledTag}, want: false},
		{
			name:    "exclude takes precedence",
			tags:    []string{"tech", DisabledTag},
			include: []string{"tech"},
			exclude: []string{DisabledTag},
			want:    false,
		},
		{name: "exclude only, no match", tags: []string{"tech"}, exclude: []string{DisabledTag}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, reason := filter.ShouldInclude(tt.tags, tt.include, tt.exclude)
			assert.Equal(t, tt.want, got, reason)
			assert.NotEmpty(t, reason)
		})
	}
}

func TestExtractTags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		config string
		want   []string
	}{
		{name: "column and type", config: `{"name":"Tech","column":"tech","type":"realtime"}`, want: []string{"tech", "realtime"}},
		{name: "disabled", config: `{"name":"Old","column":"china","disable":true}`, want: []string{"china", DisabledTag}},
		{name: "disable false", config: `{"name":"On","disable":false}`, want: nil},
		{name: "non-string column ignored", config: `{"column":3,"type":"hottest"}`, want: []string{"hottest"}},
		{name: "empty column ignored", config: `{"column":""}`, want: nil},
		{name: "no tags", config: `{"name":"Plain"}`, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, ExtractTags(json.RawMessage(tt.config)))
		})
	}
}
