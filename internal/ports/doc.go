// Package ports defines the downstream collaborator interfaces the
// retrieval pipeline consumes: the four search backends, the chunk and
// importance-map stores, the bounded-latency text generator, and the
// feedback sink.
//
// Every interface here is read-only from the pipeline's point of view and
// independently mockable. The ingestion pipeline that populates the stores
// lives outside this repository; internal/storage ships a SQLite-backed
// adapter for serving a locally indexed snapshot.
package ports
