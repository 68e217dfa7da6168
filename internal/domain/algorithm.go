package domain

import "fmt"

// StageType is the closed taxonomy of §3.3: Compression, Encryption,
// Checksum, Tee, PassThrough, and Transform for user/registered extensions.
type StageType string

const (
	StageCompression StageType = "compression"
	StageEncryption  StageType = "encryption"
	StageChecksum    StageType = "checksum"
	StageTee         StageType = "tee"
	StagePassThrough StageType = "passthrough"
	StageTransform   StageType = "transform"
)

// AlgorithmTag is a namespaced string like "compression:zstd" resolved
// against a static, per-type registry at stage-construction time.
type AlgorithmTag string

// Namespace and Name split an AlgorithmTag into "compression" / "zstd".
func (t AlgorithmTag) split() (string, string) {
	for i := 0; i < len(t); i++ {
		if t[i] == ':' {
			return string(t[:i]), string(t[i+1:])
		}
	}
	return string(t), ""
}

func (t AlgorithmTag) Namespace() string { ns, _ := t.split(); return ns }
func (t AlgorithmTag) Name() string      { _, n := t.split(); return n }

func (t AlgorithmTag) String() string { return string(t) }

// Known algorithm tags. The Registry below validates a
// PipelineStage's tag against the set permitted for its StageType.
const (
	CompressionZstd   AlgorithmTag = "compression:zstd"
	CompressionGzip   AlgorithmTag = "compression:gzip"
	CompressionLZ4    AlgorithmTag = "compression:lz4"
	CompressionBrotli AlgorithmTag = "compression:brotli"

	EncryptionAES256GCM AlgorithmTag = "encryption:aes-256-gcm"
	EncryptionAES128GCM AlgorithmTag = "encryption:aes-128-gcm"
	EncryptionChaCha    AlgorithmTag = "encryption:chacha20-poly1305"

	ChecksumSHA256 AlgorithmTag = "hash:sha-256"
	ChecksumBLAKE3 AlgorithmTag = "hash:blake3"
	ChecksumXXHash AlgorithmTag = "hash:xxhash"
)

// Registry validates that an algorithm tag is permitted for a stage type.
// Built-in variants have a fixed permitted set; Transform stages validate
// only that a tag is registered by the caller (the engine's one open
// extension point per §9).
type Registry struct {
	transforms map[AlgorithmTag]struct{}
}

// NewRegistry returns a Registry seeded with the built-in stage types'
// permitted algorithm sets.
func NewRegistry() *Registry {
	return &Registry{transforms: make(map[AlgorithmTag]struct{})}
}

// RegisterTransform declares a user-extension algorithm tag as valid for
// StageTransform. Built-in stage types cannot be extended this way.
func (r *Registry) RegisterTransform(tag AlgorithmTag) {
	r.transforms[tag] = struct{}{}
}

var builtinPermitted = map[StageType]map[AlgorithmTag]struct{}{
	StageCompression: {
		CompressionZstd:   {},
		CompressionGzip:   {},
		CompressionLZ4:    {},
		CompressionBrotli: {},
	},
	StageEncryption: {
		EncryptionAES256GCM: {},
		EncryptionAES128GCM: {},
		EncryptionChaCha:    {},
	},
	StageChecksum: {
		ChecksumSHA256: {},
		ChecksumBLAKE3: {},
		ChecksumXXHash: {},
	},
}

// Validate reports whether tag is permitted for stageType. Tee and
// PassThrough carry no algorithm (an empty tag is the only valid value).
func (r *Registry) Validate(stageType StageType, tag AlgorithmTag) error {
	switch stageType {
	case StageTee, StagePassThrough:
		if tag != "" {
			return fmt.Errorf("stage type %s does not take an algorithm tag, got %q", stageType, tag)
		}
		return nil
	case StageTransform:
		if _, ok := r.transforms[tag]; !ok {
			return fmt.Errorf("algorithm tag %q is not registered for transform stages", tag)
		}
		return nil
	default:
		permitted, ok := builtinPermitted[stageType]
		if !ok {
			return fmt.Errorf("unknown stage type %q", stageType)
		}
		if _, ok := permitted[tag]; !ok {
			return fmt.Errorf("algorithm tag %q is not permitted for stage type %s", tag, stageType)
		}
		return nil
	}
}
