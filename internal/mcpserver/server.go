// Package mcpserver exposes vocabulary trees to MCP clients.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/agentic-research/termtree/internal/metrics"
	"github.com/agentic-research/termtree/internal/taxonomy"
)

// Name is the server name announced during the MCP handshake.
const Name = "termtree"

// VocabularyLister enumerates the stored vocabularies.
type VocabularyLister interface {
	Vocabularies() ([]string, error)
}

// Config wires the server to its collaborators. Storage and Vocabularies are
// required; Metrics may be nil.
type Config struct {
	Storage      taxonomy.TermStorage
	Vocabularies VocabularyLister
	Logger       *slog.Logger
	Metrics      *metrics.Collector
	Version      string
}

// Server holds the MCP server and the tool handlers behind it.
type Server struct {
	storage taxonomy.TermStorage
	lister  VocabularyLister
	logger  *slog.Logger
	metrics *metrics.Collector
	mcp     *server.MCPServer
}

// New registers the termtree tools on a fresh MCP server.
func New(cfg Config) *Server {
	s := &Server{
		storage: cfg.Storage,
		lister:  cfg.Vocabularies,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.metrics != nil {
		s.storage = s.metrics.Wrap(s.storage)
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	s.mcp = server.NewMCPServer(
		Name,
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)
	s.mcp.AddTool(listVocabulariesTool(), s.handleListVocabularies)
	s.mcp.AddTool(loadTreeTool(), s.handleLoadTree)
	s.mcp.AddTool(getTermTool(), s.handleGetTerm)
	return s
}

const instructions = `termtree serves taxonomy vocabularies as nested, weight-ordered trees.
Call list_vocabularies first, then load_tree with one of the returned ids.
Use get_term to fetch a single term together with its descendants.`

// MCP returns the underlying server, e.g. to serve it over another transport.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// ServeStdio serves MCP over stdin/stdout until the client disconnects.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func listVocabulariesTool() mcp.Tool {
	return mcp.NewTool("list_vocabularies",
		mcp.WithDescription("List the ids of all stored vocabularies, sorted."),
	)
}

func loadTreeTool() mcp.Tool {
	return mcp.NewTool("load_tree",
		mcp.WithDescription("Load a vocabulary as a nested tree. Every level is ordered by ascending weight."),
		mcp.WithString("vocabulary",
			mcp.Required(),
			mcp.Description("Vocabulary id"),
		),
		mcp.WithBoolean("strict",
			mcp.Description("Fail instead of skipping children the storage reports inconsistently"),
		),
		mcp.WithBoolean("flat",
			mcp.Description("Return (id, parent, depth) placements instead of nested nodes"),
		),
	)
}

func getTermTool() mcp.Tool {
	return mcp.NewTool("get_term",
		mcp.WithDescription("Return one term of a vocabulary with its subtree, at its first placement in tree order."),
		mcp.WithString("vocabulary",
			mcp.Required(),
			mcp.Description("Vocabulary id"),
		),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Term id"),
		),
	)
}

func (s *Server) handleListVocabularies(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids, err := s.lister.Vocabularies()
	if err != nil {
		s.logger.Warn("mcp: list vocabularies failed", "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	if ids == nil {
		ids = []string{}
	}
	return jsonResult(ids)
}

func (s *Server) handleLoadTree(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	vocabulary, err := req.RequireString("vocabulary")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tree, err := s.load(vocabulary, req.GetBool("strict", false))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if req.GetBool("flat", false) {
		placements := tree.Flatten()
		if placements == nil {
			placements = []taxonomy.Placement{}
		}
		return jsonResult(placements)
	}
	return jsonResult(tree)
}

func (s *Server) handleGetTerm(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	vocabulary, err := req.RequireString("vocabulary")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tree, err := s.load(vocabulary, false)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	errFound := errors.New("found")
	var node *taxonomy.TermNode
	_ = tree.Walk(func(n, _ *taxonomy.TermNode, _ int) error {
		if n.ID == id {
			node = n
			return errFound
		}
		return nil
	})
	if node == nil {
		return mcp.NewToolResultError(fmt.Sprintf("term %q not found in vocabulary %q", id, vocabulary)), nil
	}
	return jsonResult(node)
}

func (s *Server) load(vocabulary string, strict bool) (*taxonomy.Tree, error) {
	opts := []taxonomy.Option{taxonomy.WithLogger(s.logger)}
	if strict {
		opts = append(opts, taxonomy.WithStrict())
	}
	tree, err := taxonomy.NewTreeBuilder(s.storage, opts...).Load(vocabulary)
	if s.metrics != nil {
		s.metrics.TrackLoad(err)
	}
	if err != nil {
		s.logger.Warn("mcp: load tree failed", "vocabulary", vocabulary, "error", err)
		return nil, err
	}
	s.logger.Debug("mcp: tree loaded", "vocabulary", vocabulary, "roots", tree.Len())
	return tree, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}
