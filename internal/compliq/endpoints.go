package compliq

import (
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Tool identifies one of the COMPLiQ ingestion operations.
type Tool string

const (
	// ToolInputPrompt submits the user prompt that started a request.
	ToolInputPrompt Tool = "inputPrompt"
	// ToolAddFile attaches a file to a request.
	ToolAddFile Tool = "addFile"
	// ToolIntermediateResults reports a named intermediate step.
	ToolIntermediateResults Tool = "intermediateResults"
	// ToolProcessingResult submits the final result of a request.
	ToolProcessingResult Tool = "processingResult"
)

// DefaultBaseURL is the production COMPLiQ API base.
const DefaultBaseURL = "https://api.compliq.io/v1"

var defaultPaths = map[Tool]string{
	ToolInputPrompt:         "/input-prompt",
	ToolAddFile:             "/attach-file",
	ToolIntermediateResults: "/intermediate-result",
	ToolProcessingResult:    "/processing-result",
}

// Endpoints maps each tool to its upstream URL. The mapping is built
// once at startup and immutable afterwards.
type Endpoints struct {
	byTool map[Tool]string
}

// DefaultEndpoints returns the standard tool-to-URL mapping rooted at
// baseURL. An empty baseURL falls back to DefaultBaseURL.
func DefaultEndpoints(baseURL string) *Endpoints {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	byTool := make(map[Tool]string, len(defaultPaths))
	for tool, path := range defaultPaths {
		byTool[tool] = baseURL + path
	}
	return &Endpoints{byTool: byTool}
}

// endpointsFile is the YAML override structure.
type endpointsFile struct {
	BaseURL   string            `yaml:"base_url"`
	Endpoints map[string]string `yaml:"endpoints"`
}

// LoadEndpoints reads the optional YAML override file at path. If the
// file does not exist, the defaults rooted at baseURL are returned (not
// an error). Overrides replace individual tool URLs wholesale.
func LoadEndpoints(path, baseURL string) (*Endpoints, error) {
	if path == "" {
		return DefaultEndpoints(baseURL), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultEndpoints(baseURL), nil
		}
		return nil, err
	}

	var file endpointsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	if file.BaseURL != "" {
		baseURL = file.BaseURL
	}
	eps := DefaultEndpoints(baseURL)
	for name, url := range file.Endpoints {
		tool := Tool(name)
		if _, ok := eps.byTool[tool]; ok && url != "" {
			eps.byTool[tool] = url
		}
	}
	return eps, nil
}

// URL returns the upstream URL for tool. Returns ("", false) for an
// unknown tool.
func (e *Endpoints) URL(tool Tool) (string, bool) {
	url, ok := e.byTool[tool]
	return url, ok
}

// Tools returns the known tool names in stable order.
func (e *Endpoints) Tools() []Tool {
	tools := make([]Tool, 0, len(e.byTool))
	for tool := range e.byTool {
		tools = append(tools, tool)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i] < tools[j] })
	return tools
}
