package tools

// Tool name constants.
const (
	ToolTerminal            = "terminal"
	ToolCreateOrUpdateFiles = "createOrUpdateFiles"
	ToolReadFiles           = "readFiles"
	ToolListOutputs         = "listOutputs"
)
