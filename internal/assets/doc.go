// Package assets moves generated media into Storyreel's own object storage.
// It defines the ObjectStorage contract, a MinIO-backed implementation, and
// an Uploader that serializes same-scene writes and skips re-uploads whose
// content checksum already matches the stored asset.
package assets
