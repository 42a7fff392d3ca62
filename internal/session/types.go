package session

import "github.com/netint/go-xcoder/internal/sei"

// Packet is a compressed bitstream buffer handed to Decoder.Write or
// returned from Encoder.Read (spec.md §3 Packet).
type Packet struct {
	Data          []byte
	PTS           int64
	DTS           int64
	StartOfStream bool
	EndOfStream   bool
	CustomSEI     []byte

	// Encoder-read-only metadata (ni_metadata_enc_bstream_t, spec.md §4.5.2).
	FrameTimestamp int64
	FrameType      uint16
	AvgQP          int32
	RecycleIndex   uint32
	AV1ShowFrame   bool
	MetadataSize   uint16
	SSIM           [3]float64
	HasSSIM        bool
}

// Frame is a raw YUV (or HW-frame) buffer handed to Encoder.Write or
// returned from Decoder.Read (spec.md §3 Frame).
type Frame struct {
	Data []byte

	Width  int
	Height int
	PTS    int64
	DTS    int64

	PictType uint8
	Crop     sei.CropRect

	EndOfStream    bool
	SequenceChange bool

	Metadata sei.Metadata

	// Encoder-write-side hints (spec.md §4.5.2).
	ForceKeyFrame bool
	SEIOverride   uint8
	ForceQP       int32
}
