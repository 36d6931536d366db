package rewrite

// Exports for testing. These allow black-box tests to exercise internal
// logic without modifying the public API.

var (
	BatchPrompt           = batchPrompt
	ParseNumberedResponse = parseNumberedResponse
	OutputBudget          = outputBudget
)
