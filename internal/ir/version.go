package ir

// Version constants for compiled patterns and the engine.
const (
	// PatternFormatVersion is the version of the compiled step record format.
	PatternFormatVersion = 1

	// EngineVersion is the sheetflow engine version.
	EngineVersion = "0.1.0"
)
