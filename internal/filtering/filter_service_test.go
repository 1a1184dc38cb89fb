package filtering

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newsnow-ops/source-registry-server/internal/registry"
)

func testEntries() []*registry.Entry {
	return []*registry.Entry{
		{ID: "hackernews", Config: json.RawMessage(`{"name":"Hacker News","column":"tech","type":"hottest"}`), ModulePresent: true},
		{ID: "techblog", Config: json.RawMessage(`{"name":"Tech Blog","column":"tech"}`), ModulePresent: true},
		{ID: "techblog-test", Config: json.RawMessage(`{"name":"Tech Blog","column":"tech","disable":true}`)},
		{ID: "wallstreetcn", Config: json.RawMessage(`{"name":"WallStreetCN","column":"finance","type":"realtime"}`), ModulePresent: true},
	}
}

func ids(entries []*registry.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}

func TestNewDefaultFilterService(t *testing.T) {
	t.Parallel()

	service, ok := NewDefaultFilterService().(*defaultFilterService)
	require.True(t, ok)
	assert.NotNil(t, service.nameFilter)
	assert.NotNil(t, service.tagFilter)
}

func TestNewFilterService(t *testing.T) {
	t.Parallel()

	nameFilter := NewDefaultNameFilter()
	tagFilter := NewDefaultTagFilter()

	service, ok := NewFilterService(nameFilter, tagFilter).(*defaultFilterService)
	require.True(t, ok)
	assert.Equal(t, nameFilter, service.nameFilter)
	assert.Equal(t, tagFilter, service.tagFilter)
}

func TestDefaultFilterService_Apply(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		criteria *Criteria
		want     []string
	}{
		{
			name: "nil criteria",
			want: []string{"hackernews", "techblog", "techblog-test", "wallstreetcn"},
		},
		{
			name:     "empty criteria",
			criteria: &Criteria{},
			want:     []string{"hackernews", "techblog", "techblog-test", "wallstreetcn"},
		},
		{
			name:     "identifier include",
			criteria: &Criteria{IncludeIDs: []string{"tech*"}},
			want:     []string{"techblog", "techblog-test"},
		},
		{
			name:     "identifier include and exclude",
			criteria: &Criteria{IncludeIDs: []string{"tech*"}, ExcludeIDs: []string{"*-test"}},
			want:     []string{"techblog"},
		},
		{
			name:     "tag include",
			criteria: &Criteria{IncludeTags: []string{"realtime", "hottest"}},
			want:     []string{"hackernews", "wallstreetcn"},
		},
		{
			name:     "disabled sources excluded",
			criteria: &Criteria{ExcludeTags: []string{DisabledTag}},
			want:     []string{"hackernews", "techblog", "wallstreetcn"},
		},
		{
			name:     "both filters must pass",
			criteria: &Criteria{IncludeIDs: []string{"*news*"}, IncludeTags: []string{"tech"}},
			want:     []string{"hackernews"},
		},
		{
			name:     "nothing selected",
			criteria: &Criteria{IncludeTags: []string{"sports"}},
			want:     []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := NewDefaultFilterService().Apply(context.Background(), testEntries(), tt.criteria)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestCriteria_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		criteria *Criteria
		wantErr  string
	}{
		{name: "nil"},
		{name: "valid", criteria: &Criteria{IncludeIDs: []string{"tech*"}, ExcludeIDs: []string{"?ews"}}},
		{name: "tags are not patterns", criteria: &Criteria{IncludeTags: []string{"tech["}}},
		{name: "invalid include", criteria: &Criteria{IncludeIDs: []string{"tech["}}, wantErr: "invalid glob pattern"},
		{name: "empty exclude", criteria: &Criteria{ExcludeIDs: []string{""}}, wantErr: "empty glob pattern"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.criteria.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
