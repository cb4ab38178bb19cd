package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/fsledger/internal/manager"
	"github.com/Aman-CERP/fsledger/internal/service"
	"github.com/Aman-CERP/fsledger/pkg/version"
)

// ServerName is reported to MCP clients.
const ServerName = "fsledger"

// Server is the MCP server for fsledger. It registers one tool per service
// operation and does no work of its own beyond argument decoding.
type Server struct {
	mcp    *mcp.Server
	svc    *service.Service
	logger *slog.Logger

	// dispatch runs a tool from raw JSON arguments. The SDK handlers and
	// CallTool share it.
	dispatch map[string]func(ctx context.Context, args json.RawMessage) (any, error)
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

// NewServer creates a new MCP server over svc.
func NewServer(svc *service.Service, logger *slog.Logger) (*Server, error) {
	if svc == nil {
		return nil, errors.New("service is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		svc:      svc,
		logger:   logger,
		dispatch: make(map[string]func(context.Context, json.RawMessage) (any, error)),
	}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    ServerName,
			Version: version.Version,
		},
		nil, // capabilities are inferred from registered tools
	)
	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return ServerName, version.Version
}

// ListTools returns all registered tools sorted by name.
func (s *Server) ListTools() []ToolInfo {
	tools := make([]ToolInfo, 0, len(s.dispatch))
	for name := range s.dispatch {
		tools = append(tools, ToolInfo{Name: name, Description: toolDescriptions[name]})
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
	return tools
}

// CallTool invokes a tool by name with the given arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	run, ok := s.dispatch[name]
	if !ok {
		return nil, NewMethodNotFoundError(name)
	}
	var raw json.RawMessage
	if args != nil {
		data, err := json.Marshal(args)
		if err != nil {
			return nil, NewInvalidParamsError(err.Error())
		}
		raw = data
	}
	return run(ctx, raw)
}

// registerTools wires every service operation. Tools whose results carry
// timestamps return untyped structured content.
func (s *Server) registerTools() {
	svc := s.svc

	addTool(s, ToolStartWatching, func(ctx context.Context, in service.StartRequest) (any, error) {
		return svc.StartWatching(ctx, in)
	})
	addTool(s, ToolStopWatching, func(_ context.Context, in WatcherIDInput) (service.StopResult, error) {
		if in.WatcherID == "" {
			return service.StopResult{}, NewInvalidParamsError("watcher_id is required")
		}
		return svc.StopWatching(in.WatcherID)
	})
	addTool(s, ToolListWatchers, func(context.Context, ListWatchersInput) (any, error) {
		return svc.ListWatchers()
	})
	addTool(s, ToolGetWatcher, func(_ context.Context, in WatcherIDInput) (any, error) {
		if in.WatcherID == "" {
			return nil, NewInvalidParamsError("watcher_id is required")
		}
		return svc.GetWatcher(in.WatcherID)
	})
	addTool(s, ToolUpdateWatcher, func(_ context.Context, in UpdateWatcherInput) (manager.UpdateResult, error) {
		if in.WatcherID == "" {
			return manager.UpdateResult{}, NewInvalidParamsError("watcher_id is required")
		}
		return svc.UpdateWatcher(in.WatcherID, in.request())
	})
	addTool(s, ToolRestartWatcher, func(ctx context.Context, in WatcherIDInput) (any, error) {
		if in.WatcherID == "" {
			return nil, NewInvalidParamsError("watcher_id is required")
		}
		return svc.RestartWatcher(ctx, in.WatcherID)
	})
	addTool(s, ToolGetEvents, func(_ context.Context, in service.EventsRequest) (any, error) {
		return svc.GetEvents(in)
	})
	addTool(s, ToolGetEventStats, func(_ context.Context, in service.StatsRequest) (any, error) {
		return svc.GetEventStats(in)
	})
	addTool(s, ToolExportEvents, func(_ context.Context, in service.ExportRequest) (service.ExportResult, error) {
		return svc.ExportEvents(in)
	})
	addTool(s, ToolClearEvents, func(_ context.Context, in service.ClearRequest) (service.ClearResult, error) {
		return svc.ClearEvents(in)
	})
	addTool(s, ToolGetFileHash, func(ctx context.Context, in service.HashRequest) (service.HashResult, error) {
		return svc.GetFileHash(ctx, in)
	})

	s.logger.Info("MCP tools registered", slog.Int("count", len(s.dispatch)))
}

// addTool registers fn with the SDK and with the local dispatch table.
func addTool[In, Out any](s *Server, name string, fn func(context.Context, In) (Out, error)) {
	call := func(ctx context.Context, in In) (Out, error) {
		requestID := generateRequestID()
		start := time.Now()

		out, err := fn(ctx, in)
		if err != nil {
			mapped := MapError(err)
			s.logger.Warn("tool failed",
				slog.String("tool", name),
				slog.String("request_id", requestID),
				slog.Duration("duration", time.Since(start)),
				slog.Int("code", mapped.Code),
				slog.String("error", err.Error()))
			var zero Out
			return zero, mapped
		}
		s.logger.Debug("tool completed",
			slog.String("tool", name),
			slog.String("request_id", requestID),
			slog.Duration("duration", time.Since(start)))
		return out, nil
	}

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        name,
		Description: toolDescriptions[name],
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in In) (*mcp.CallToolResult, Out, error) {
		out, err := call(ctx, in)
		return nil, out, err
	})

	s.dispatch[name] = func(ctx context.Context, raw json.RawMessage) (any, error) {
		var in In
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &in); err != nil {
				return nil, NewInvalidParamsError(fmt.Sprintf("invalid arguments for %s: %v", name, err))
			}
		}
		return call(ctx, in)
	}
}

// Serve runs the server on the given transport until ctx is canceled.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("Starting MCP server", slog.String("transport", transport))

	switch transport {
	case "stdio", "":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("MCP server stopped gracefully")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
