package chat

// ToolSchema is the machine-readable description of a tool, registered at
// process start and immutable thereafter. ParameterSpec is a JSON Schema string.
type ToolSchema struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	ParameterSpec string `json:"parameterSpec"`
}
