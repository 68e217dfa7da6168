package domain

import "fmt"

// Preset builds a pre-configured, in-scope Pipeline. Deduplication scope
// and post-quantum key wrapping are out of scope for this engine; these
// presets keep only the compression/encryption/checksum shape that does
// apply.
type Preset string

const (
	PresetBalanced    Preset = "balanced"
	PresetArchive     Preset = "archive"
	PresetPassthrough Preset = "passthrough"
)

// BuildPreset returns a ready-to-validate Pipeline for a named preset.
func BuildPreset(name Preset) (*Pipeline, error) {
	switch name {
	case PresetBalanced:
		return NewPipeline("balanced", []PipelineStage{
			{ID: NewStageID(), Name: "compress", Type: StageCompression, Algorithm: CompressionZstd, Enabled: true, Order: 0, ParallelSafe: true, Params: map[string]string{"level": "3"}},
			{ID: NewStageID(), Name: "encrypt", Type: StageEncryption, Algorithm: EncryptionAES256GCM, Enabled: true, Order: 1, ParallelSafe: true},
			{ID: NewStageID(), Name: "checksum", Type: StageChecksum, Algorithm: ChecksumSHA256, Enabled: true, Order: 2, ParallelSafe: true},
		}, nil)
	case PresetArchive:
		return NewPipeline("archive", []PipelineStage{
			{ID: NewStageID(), Name: "compress", Type: StageCompression, Algorithm: CompressionZstd, Enabled: true, Order: 0, ParallelSafe: true, Params: map[string]string{"level": "19"}},
			{ID: NewStageID(), Name: "encrypt", Type: StageEncryption, Algorithm: EncryptionAES256GCM, Enabled: true, Order: 1, ParallelSafe: true},
			{ID: NewStageID(), Name: "checksum", Type: StageChecksum, Algorithm: ChecksumSHA256, Enabled: true, Order: 2, ParallelSafe: true},
		}, nil)
	case PresetPassthrough:
		return NewPipeline("passthrough", []PipelineStage{
			{ID: NewStageID(), Name: "store", Type: StagePassThrough, Enabled: true, Order: 0, ParallelSafe: true},
		}, nil)
	default:
		return nil, fmt.Errorf("unknown preset %q", name)
	}
}
