package ir

// Version constants for the chain encoding and the compiler.
const (
	// EncodingVersion is the canonical chain encoding version.
	EncodingVersion = "1"

	// CompilerVersion is the traverse compiler version.
	CompilerVersion = "0.1.0"
)
