package domain

// KeyPrefix namespaces every key agentdex writes into the shared cache.
const KeyPrefix = "agentdex:"
