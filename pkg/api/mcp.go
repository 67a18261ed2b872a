package api

import (
	"errors"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hazyhaar/namefinder/pkg/finder"
	"github.com/hazyhaar/namefinder/pkg/kit"
)

// RegisterMCPTools registers the four name finder MCP tools on the server.
// File arguments are paths on the machine running the server.
func RegisterMCPTools(srv *server.MCPServer, f *finder.Finder, opts Options) {
	opts = opts.withDefaults()
	eps := newEndpoints(f, opts)
	registerNormalizeName(srv, eps.normalize)
	registerFindPerson(srv, eps.findPerson, opts.DefaultThreshold)
	registerGetColumns(srv, eps.columns)
	registerCompareNames(srv, eps.compare, opts.DefaultThreshold)
}

func registerNormalizeName(srv *server.MCPServer, ep kit.Endpoint) {
	tool := mcp.NewTool("normalize_name",
		mcp.WithDescription("Normalize a person name into its canonical comparison key (lowercase, accents removed, dash separated)."),
		mcp.WithString("name", mcp.Required(), mcp.Description("The name to normalize")),
	)
	kit.RegisterMCPTool(srv, tool, ep, func(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		name, _ := req.GetArguments()["name"].(string)
		return &kit.MCPDecodeResult{Request: &normalizeReq{Name: name}}, nil
	})
}

func registerFindPerson(srv *server.MCPServer, ep kit.Endpoint, defaultThreshold float64) {
	tool := mcp.NewTool("find_person",
		mcp.WithDescription("Find people in the reference dataset whose first_name+family_name is similar to a name (Jaro-Winkler)."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Name to look for; whitespace is ignored")),
		mcp.WithNumber("threshold", mcp.Description("Minimum similarity, exclusive, in [0,1]"), mcp.Min(0), mcp.Max(1)),
	)
	kit.RegisterMCPTool(srv, tool, ep, func(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		args := req.GetArguments()
		name, _ := args["name"].(string)
		if name == "" {
			return nil, errors.New("name is required")
		}
		return &kit.MCPDecodeResult{Request: &findPersonReq{
			Name:      name,
			Threshold: numberArg(args, "threshold", defaultThreshold),
		}}, nil
	})
}

func registerGetColumns(srv *server.MCPServer, ep kit.Endpoint) {
	tool := mcp.NewTool("get_columns",
		mcp.WithDescription("List the columns of a CSV, Parquet or Excel file without reading its rows."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path to the file")),
	)
	kit.RegisterMCPTool(srv, tool, ep, func(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		path, _ := req.GetArguments()["path"].(string)
		if path == "" {
			return nil, errors.New("path is required")
		}
		return &kit.MCPDecodeResult{Request: &columnsReq{Path: path}}, nil
	})
}

func registerCompareNames(srv *server.MCPServer, ep kit.Endpoint, defaultThreshold float64) {
	tool := mcp.NewTool("compare_names",
		mcp.WithDescription("Compare every row of a file with every reference person and return pairs above the threshold with Jaro-Winkler and Levenshtein scores."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path to the comparison file")),
		mcp.WithString("first_name_column", mcp.Description("First name column (default: first column)")),
		mcp.WithString("family_name_column", mcp.Description("Family name column (default: second column)")),
		mcp.WithNumber("threshold", mcp.Description("Minimum similarity, exclusive, in [0,1]"), mcp.Min(0), mcp.Max(1)),
	)
	kit.RegisterMCPTool(srv, tool, ep, func(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		args := req.GetArguments()
		path, _ := args["path"].(string)
		if path == "" {
			return nil, errors.New("path is required")
		}
		first, _ := args["first_name_column"].(string)
		family, _ := args["family_name_column"].(string)
		return &kit.MCPDecodeResult{Request: &compareReq{
			Path:             path,
			FirstNameColumn:  first,
			FamilyNameColumn: family,
			Threshold:        numberArg(args, "threshold", defaultThreshold),
		}}, nil
	})
}

// numberArg reads a JSON number argument, falling back to def when absent.
func numberArg(args map[string]any, key string, def float64) float64 {
	if v, ok := args[key].(float64); ok {
		return v
	}
	return def
}
