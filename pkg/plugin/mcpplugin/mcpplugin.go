// Package mcpplugin is one concrete plugin step transport: it forwards a
// plugin step's plan/run calls to an external MCP tool server over stdio.
// Grounded directly on cmd/gert-mcp/main.go + pkg/ecosystem/mcp/handlers.go
// (gert exposes its own operations as MCP tools; here the direction is
// inverted — flowctl is the MCP *client*, dispatching to whatever tool
// server the plugin reference names). Uses github.com/mark3labs/mcp-go.
package mcpplugin

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/flowctl/flowctl/pkg/executor"
	"github.com/flowctl/flowctl/pkg/model"
)

// Handler implements executor.PluginHandler by forwarding to an MCP tool
// server launched as a child process over stdio. One Handler corresponds
// to one model.PluginRef with Transport == "mcp".
type Handler struct {
	Command string
	Args    []string
	Env     []string
	// PlanTool/RunTool name the MCP tools invoked for preview vs live
	// execution; PlanTool defaults to RunTool when unset (a plugin
	// server that offers no side-effect-free preview tool is run for
	// both, same as gert's `gert/exec --mode dry-run` dual-purpose
	// tool).
	PlanTool string
	RunTool  string

	mu     sync.Mutex
	client *client.Client
	ready  bool
}

// New builds a Handler from a plugin reference's config map: `command`
// (required), `args` (space-separated), `planTool`, `runTool` (defaults
// to the step's own `type`).
func New(ref model.PluginRef) (*Handler, error) {
	cmdLine := ref.Config["command"]
	if cmdLine == "" {
		return nil, fmt.Errorf("mcpplugin: plugin %q: config.command is required", ref.Type)
	}
	var env []string
	for k, v := range ref.Config {
		if strings.HasPrefix(k, "env.") {
			env = append(env, strings.TrimPrefix(k, "env.")+"="+v)
		}
	}
	runTool := ref.Config["runTool"]
	if runTool == "" {
		runTool = ref.Type
	}
	planTool := ref.Config["planTool"]
	if planTool == "" {
		planTool = runTool
	}
	return &Handler{
		Command:  cmdLine,
		Args:     strings.Fields(ref.Config["args"]),
		Env:      env,
		PlanTool: planTool,
		RunTool:  runTool,
	}, nil
}

func (h *Handler) ensureClient(ctx context.Context) (*client.Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ready {
		return h.client, nil
	}
	c, err := client.NewStdioMCPClient(h.Command, h.Env, h.Args...)
	if err != nil {
		return nil, fmt.Errorf("mcpplugin: start %s: %w", h.Command, err)
	}
	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "flowctl", Version: "dev"}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		c.Close()
		return nil, fmt.Errorf("mcpplugin: initialize %s: %w", h.Command, err)
	}
	h.client = c
	h.ready = true
	return c, nil
}

// Close shuts down the underlying MCP client process, if started.
func (h *Handler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.ready {
		return nil
	}
	h.ready = false
	return h.client.Close()
}

func (h *Handler) Plan(ctx context.Context, step model.Step, helpers executor.Helpers) (executor.PluginResult, error) {
	return h.call(ctx, h.PlanTool, step, helpers)
}

func (h *Handler) Run(ctx context.Context, step model.Step, helpers executor.Helpers) (executor.PluginResult, error) {
	return h.call(ctx, h.RunTool, step, helpers)
}

func (h *Handler) call(ctx context.Context, tool string, step model.Step, helpers executor.Helpers) (executor.PluginResult, error) {
	c, err := h.ensureClient(ctx)
	if err != nil {
		return executor.PluginResult{}, err
	}

	args := make(map[string]any, len(step.Body))
	for k, v := range step.Body {
		rendered, rerr := renderLeaf(v, helpers)
		if rerr != nil {
			return executor.PluginResult{}, fmt.Errorf("mcpplugin: render arg %q: %w", k, rerr)
		}
		args[k] = rendered
	}
	args["stepId"] = step.ID

	req := mcp.CallToolRequest{}
	req.Params.Name = tool
	req.Params.Arguments = args

	res, err := c.CallTool(ctx, req)
	if err != nil {
		return executor.PluginResult{}, fmt.Errorf("mcpplugin: call %s: %w", tool, err)
	}
	if res.IsError {
		return executor.PluginResult{}, fmt.Errorf("mcpplugin: %s returned an error: %s", tool, textOf(res))
	}

	helpers.Log("info", fmt.Sprintf("plugin %q (%s): %s", step.ID, tool, textOf(res)))
	return executor.PluginResult{Status: textOf(res)}, nil
}

func renderLeaf(v any, helpers executor.Helpers) (any, error) {
	s, ok := v.(string)
	if !ok {
		return v, nil
	}
	return helpers.Render(s)
}

func textOf(res *mcp.CallToolResult) string {
	var sb strings.Builder
	for _, c := range res.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	return sb.String()
}
