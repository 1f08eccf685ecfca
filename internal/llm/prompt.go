package llm

// SystemPrompt is sent with every conversation unless configuration overrides it
const SystemPrompt = `You are a helpful assistant that analyzes files and answers questions. 

IMPORTANT: When you provide code modifications or updates, ALWAYS:
1. Comment where you make changes with markers like "# NEW", "# CHANGED", or "# UPDATED"
2. If the change is substantial, include a brief comment explaining what was changed
3. Make it easy for the user to spot the differences from the original code
`

// DefaultMaxTokens caps replies when the caller does not
const DefaultMaxTokens = 4096

// PingPrompt is the fixed connectivity probe
const PingPrompt = "Say hello!"
