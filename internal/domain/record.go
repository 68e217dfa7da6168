package domain

import "time"

// ProcessedChunkRecord is what the Writer consumes: a chunk's final
// post-stage-chain bytes plus enough metadata to place and verify it
// (§3.1).
type ProcessedChunkRecord struct {
	Sequence       uint64
	Payload        []byte // final bytes, post all stages
	Checksum       []byte // optional per-chunk checksum, nil if not computed
	Nonce          []byte // AEAD nonce; the engine leaves it nil, as the Encryption stage prepends its nonce to Payload
	OriginalOffset uint64
	OriginalSize   uint64
}

// StageDescriptor is the restoration-plan entry for one stage, recorded in
// the container footer so a reader can re-derive the reverse order without
// consulting the original Pipeline object.
type StageDescriptor struct {
	Name         string            `json:"name"`
	Type         StageType         `json:"type"`
	Algorithm    AlgorithmTag      `json:"algorithm"`
	Params       map[string]string `json:"parameters,omitempty"`
	ParallelSafe bool              `json:"parallel_safe"`
}

// FormatVersion is the .adapipe container format's major.minor version.
type FormatVersion struct {
	Major uint8 `json:"major"`
	Minor uint8 `json:"minor"`
}

// CurrentFormatVersion is the version this module writes (§6.1: "this spec
// is 1.0").
var CurrentFormatVersion = FormatVersion{Major: 1, Minor: 0}

// ContainerMetadata is written to the output footer (§3.1, §6.1). Field
// tags match §6.1's named footer fields exactly; Version is an addition
// beyond that named list, carried as harmless extra metadata.
type ContainerMetadata struct {
	OriginalFilename string            `json:"original_filename"`
	OriginalSize     uint64            `json:"original_size"`
	OriginalChecksum string            `json:"original_checksum"` // SHA-256 hex by default
	ChunkCount       uint64            `json:"chunk_count"`
	ChunkSize        ChunkSize         `json:"chunk_size"`
	Stages           []StageDescriptor `json:"stages"`
	Version          FormatVersion     `json:"version"`
	CompletedAt      time.Time         `json:"completed_at"`
}
