// Package filtering selects sources from a registry listing.
//
// Sources are matched on their identifier with glob patterns and on tags
// derived from their configuration entry. Both kinds of filter support include
// and exclude rules, with exclude taking precedence over include.
//
// # Identifier Filtering
//
// Identifier patterns use gobwas/glob syntax, so '*' matches any run of
// characters. Examples:
//
//   - "tech*" matches "techblog", "techcrunch"
//   - "*-cn" matches "weibo-cn", "zhihu-cn"
//   - "v2ex?" matches "v2ex1" but not "v2ex"
//
// # Tag Filtering
//
// Tags are read from the configuration entry of each source:
//
//   - the value of "column" (for example "tech" or "finance")
//   - the value of "type" ("realtime" or "hottest")
//   - "disabled" when "disable" is true
//
// A source is included if any of its tags matches an include tag, and
// excluded if any of its tags matches an exclude tag.
//
// # Filtering Logic
//
//  1. If exclude patterns/tags are specified and match -> exclude (precedence)
//  2. If include patterns/tags are specified and match -> include
//  3. If include patterns/tags are specified but no match -> exclude
//  4. If only exclude patterns/tags specified and no match -> include
//  5. If no filters specified -> include (default behavior)
//
// A source must pass BOTH identifier and tag filtering to be listed.
//
// # Usage Example
//
//	criteria := &filtering.Criteria{
//		IncludeIDs:  []string{"tech*"},
//		ExcludeTags: []string{"disabled"},
//	}
//	if err := criteria.Validate(); err != nil {
//		return err
//	}
//	listed := filtering.NewDefaultFilterService().Apply(ctx, entries, criteria)
package filtering
