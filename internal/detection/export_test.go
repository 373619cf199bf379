package detection

// ParseGeminiDetections exposes the response parser to external tests.
var ParseGeminiDetections = parseGeminiDetections
