package pipeline

// Exports for testing internal heuristics.

var (
	BatchCapacity     = batchCapacity
	LooksLikeSentence = looksLikeSentence
)
