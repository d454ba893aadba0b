// Package embeddings provides text embeddings for the semantic intent
// backend.
//
// Three providers are available: "hashing" (deterministic feature hashing,
// no model files), "fastembed" (local ONNX models, requires cgo) and "tei"
// (an external text-embeddings-inference server).
package embeddings
