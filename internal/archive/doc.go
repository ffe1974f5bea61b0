// Package archive uploads signed certificates to a hierarchical remote store.
//
// Documents land under <root>/<year>/<course>/<student>. Each folder segment
// is looked up by exact name under its parent and created only when absent, so
// repeated runs reuse the same tree. A failure part way through leaves the
// folders already created in place; the next attempt finds and reuses them.
//
// Backends implement ObjectStore: Google Drive (the default) and Alibaba Cloud
// OSS, where folders are key prefixes with marker objects.
package archive
