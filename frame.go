package xcoder

import "github.com/netint/go-xcoder/internal/session"

// Frame is a raw YUV (or HW-frame) buffer handed to Encoder.Write or
// returned from Decoder.Read (spec.md §3 Frame).
type Frame = session.Frame

// Packet is a compressed bitstream buffer handed to Decoder.Write or
// returned from Encoder.Read (spec.md §3 Packet).
type Packet = session.Packet

// TensorLayer describes one input or output tensor an AI network
// binary declares (spec.md §4.5.5).
type TensorLayer = session.TensorLayer

// DataFormat is a tensor layer's element encoding.
type DataFormat = session.DataFormat

// QuantFormat is a tensor layer's quantization scheme.
type QuantFormat = session.QuantFormat
