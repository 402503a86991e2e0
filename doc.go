// Package meili implements an embeddable full-text search index: a
// write pipeline that turns JSON documents into inverted, faceted, and
// geo structures; a query pipeline that expands a user query into typo/
// prefix/synonym alternatives and ranks candidates through a
// configurable rule chain; and a single mmap key-value store providing
// one writer and many snapshot-isolated readers for every artifact.
//
// It descends from a small in-memory inverted-index demo (see the
// internal/posting package's skip list, adapted from that demo's own
// position index) generalized into the multi-database, transactional
// design described by internal/{kvstore,writer,facet,filter,
// querygraph,ranking,settingsapply,deletion,autobatch}.
package meili
