// Package main provides the revdal command. It migrates the storage of the review
// platform and inspects the revision history of its content entities. The data access
// layer itself lives under internal/dal: schema descriptors, multilingual strings, the
// model layer over gorm, the revision engine and the per-connection model registry.
package main
