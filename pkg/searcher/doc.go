// Package searcher runs artifact queries over a set of index contexts.
//
// Three response shapes are offered:
//
//   - [Engine.SearchFlat]: every hit, ordered by uinfo then context id,
//     windowed by From and Count.
//   - [Engine.SearchGrouped]: hits bucketed by a grouping key (groupId:artifactId
//     by default). Groups are ordered by key, members by uinfo then context id.
//     All ordering is ordinal (byte-wise) and stable for unchanged data.
//   - [Engine.SearchIterator]: a lazily produced sequence that pins index
//     readers until [Iterator.Close] is called.
//
// Contexts flagged non-searchable are skipped unless the search is forced.
// A context reachable twice (directly and through a merged context) is
// searched once.
//
// # Thread Safety
//
// The engine is safe for concurrent use. Iterators are not; each belongs to
// the goroutine that consumes it.
package searcher
