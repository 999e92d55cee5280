package tools

import (
	"fmt"
	"strings"
	"sync"

	"mlforge/pkg/sandbox"
	"mlforge/pkg/state"
)

// AgentContext contains run-specific configuration for tool creation.
//
//nolint:govet // fieldalignment: Logical grouping preferred over memory optimization
type AgentContext struct {
	Sandbox   sandbox.Client
	SandboxID string
	State     *state.SharedState
	WorkDir   string
}

// ToolFactory creates a tool instance configured for a specific agent context.
type ToolFactory func(ctx AgentContext) (Tool, error)

// ToolMeta contains metadata about a tool for documentation and discovery.
type ToolMeta struct {
	Name        string
	Description string
	InputSchema InputSchema
}

// toolDescriptor contains the factory and metadata for a tool.
//
//nolint:govet // fieldalignment: Logical grouping preferred over memory optimization
type toolDescriptor struct {
	meta    ToolMeta
	factory ToolFactory
}

// immutableRegistry is the global, read-only tool registry.
//
//nolint:govet // fieldalignment: Logical grouping preferred over memory optimization
type immutableRegistry struct {
	mu     sync.RWMutex
	sealed bool
	tools  map[string]toolDescriptor
}

//nolint:gochecknoglobals // Factory pattern requires global registry
var globalRegistry = &immutableRegistry{
	tools: make(map[string]toolDescriptor),
}

// Register adds a tool factory to the global registry.
// Panics if called after the registry is sealed.
func Register(name string, factory ToolFactory, meta *ToolMeta) {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()

	if globalRegistry.sealed {
		panic(fmt.Sprintf("tool registry sealed - cannot register tool '%s'", name))
	}

	globalRegistry.tools[name] = toolDescriptor{
		meta:    *meta,
		factory: factory,
	}
}

// Seal prevents further tool registrations.
// Called automatically when first ToolProvider is created.
func Seal() {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()
	globalRegistry.sealed = true
}

// ListTools returns metadata for all registered tools.
func ListTools() []ToolMeta {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	result := make([]ToolMeta, 0, len(globalRegistry.tools))
	for _, desc := range globalRegistry.tools {
		result = append(result, desc.meta)
	}
	return result
}

// ToolProvider creates and manages tool instances for a specific run context.
//
//nolint:govet // fieldalignment: Logical grouping preferred over memory optimization
type ToolProvider struct {
	ctx      AgentContext
	tools    map[string]Tool
	allowSet map[string]struct{}
	order    []string
	mu       sync.Mutex
}

// NewProvider creates a new ToolProvider for the given agent context and
// allowed tools. Automatically seals the global registry on first use.
func NewProvider(ctx AgentContext, allowedTools []string) *ToolProvider {
	Seal()

	allowSet := make(map[string]struct{}, len(allowedTools))
	order := make([]string, 0, len(allowedTools))
	for _, name := range allowedTools {
		if _, dup := allowSet[name]; dup {
			continue
		}
		allowSet[name] = struct{}{}
		order = append(order, name)
	}

	return &ToolProvider{
		ctx:      ctx,
		tools:    make(map[string]Tool),
		allowSet: allowSet,
		order:    order,
	}
}

// Get retrieves a tool instance, creating it lazily if needed.
func (p *ToolProvider) Get(name string) (Tool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.allowSet[name]; !ok {
		return nil, fmt.Errorf("tool '%s' not allowed in this context", name)
	}

	if tool, ok := p.tools[name]; ok {
		return tool, nil
	}

	globalRegistry.mu.RLock()
	desc, exists := globalRegistry.tools[name]
	globalRegistry.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("tool '%s' not registered", name)
	}

	tool, err := desc.factory(p.ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool '%s': %w", name, err)
	}

	p.tools[name] = tool
	return tool, nil
}

// Must is like Get but panics on error. Use for tools that must exist.
func (p *ToolProvider) Must(name string) Tool {
	tool, err := p.Get(name)
	if err != nil {
		panic(err)
	}
	return tool
}

// List returns metadata for all allowed tools in registration order.
func (p *ToolProvider) List() []ToolMeta {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	result := make([]ToolMeta, 0, len(p.order))
	for _, name := range p.order {
		if desc, ok := globalRegistry.tools[name]; ok {
			result = append(result, desc.meta)
		}
	}
	return result
}

// Definitions returns the LLM tool declarations for all allowed tools.
func (p *ToolProvider) Definitions() []ToolDefinition {
	metas := p.List()
	defs := make([]ToolDefinition, 0, len(metas))
	for _, meta := range metas {
		defs = append(defs, ToolDefinition{
			Name:        meta.Name,
			Description: meta.Description,
			InputSchema: meta.InputSchema,
		})
	}
	return defs
}

// GenerateToolDocumentation generates tool documentation for this provider's allowed tools.
func (p *ToolProvider) GenerateToolDocumentation() string {
	metas := p.List()
	if len(metas) == 0 {
		return "No tools available"
	}

	var doc strings.Builder
	doc.WriteString("## Available Tools\n\n")
	for _, meta := range metas {
		doc.WriteString(fmt.Sprintf("- **%s** - %s\n", meta.Name, meta.Description))
	}
	return doc.String()
}

// TOOL FACTORY FUNCTIONS

func createTerminalTool(ctx AgentContext) (Tool, error) {
	if ctx.Sandbox == nil {
		return nil, fmt.Errorf("terminal tool requires a sandbox client")
	}
	return NewTerminalTool(ctx.Sandbox, ctx.SandboxID, ctx.State), nil
}

func createFilesTool(ctx AgentContext) (Tool, error) {
	if ctx.Sandbox == nil {
		return nil, fmt.Errorf("createOrUpdateFiles tool requires a sandbox client")
	}
	return NewCreateOrUpdateFilesTool(ctx.Sandbox, ctx.SandboxID, ctx.State), nil
}

func createReadFilesTool(ctx AgentContext) (Tool, error) {
	if ctx.Sandbox == nil {
		return nil, fmt.Errorf("readFiles tool requires a sandbox client")
	}
	return NewReadFilesTool(ctx.Sandbox, ctx.SandboxID), nil
}

func createListOutputsTool(ctx AgentContext) (Tool, error) {
	if ctx.Sandbox == nil {
		return nil, fmt.Errorf("listOutputs tool requires a sandbox client")
	}
	return NewListOutputsTool(ctx.Sandbox, ctx.SandboxID), nil
}

//nolint:gochecknoinits // Factory pattern requires init() for tool registration
func init() {
	Register(ToolTerminal, createTerminalTool, &ToolMeta{
		Name:        ToolTerminal,
		Description: "Run shell commands in the sandbox and return their output",
		InputSchema: NewTerminalTool(nil, "", nil).Definition().InputSchema,
	})

	Register(ToolCreateOrUpdateFiles, createFilesTool, &ToolMeta{
		Name:        ToolCreateOrUpdateFiles,
		Description: "Create or update files in the sandbox",
		InputSchema: NewCreateOrUpdateFilesTool(nil, "", nil).Definition().InputSchema,
	})

	Register(ToolReadFiles, createReadFilesTool, &ToolMeta{
		Name:        ToolReadFiles,
		Description: "Read files from the sandbox",
		InputSchema: NewReadFilesTool(nil, "").Definition().InputSchema,
	})

	Register(ToolListOutputs, createListOutputsTool, &ToolMeta{
		Name:        ToolListOutputs,
		Description: "List generated files in the sandbox outputs directory",
		InputSchema: NewListOutputsTool(nil, "").Definition().InputSchema,
	})
}
