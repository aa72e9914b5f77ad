// Package bundle implements the StaticBundleAnalyzer and GraphBundleStore
// of spec.md sections 4.4 and 4.5: it turns a parsed Graph plus the
// DeclarationRegistry into a portable, content-addressable GraphBundle,
// and caches bundles keyed by (csv_hash, graph_name).
package bundle

import (
	"time"

	"github.com/kadirpekel/agentmap/pkg/graph"
)

// GraphStructure carries the derived structural stats of spec.md section
// 4.4 step 9.
type GraphStructure struct {
	NodeCount     int  `json:"node_count"`
	IsDAG         bool `json:"is_dag"`
	ParallelEdges bool `json:"parallel_edges"`
}

// GraphBundle is the portable, content-addressable compiled artifact of
// spec.md section 3. It carries no agent instances.
type GraphBundle struct {
	BundleID             string                    `json:"bundle_id"`
	GraphName            string                    `json:"graph_name"`
	CSVHash              string                    `json:"csv_hash"`
	Nodes                map[string]*graph.Node    `json:"nodes"`
	EntryPoint           string                    `json:"entry_point"`
	RequiredAgents       map[string]bool           `json:"required_agents"`
	RequiredServices     map[string]bool           `json:"required_services"`
	ServiceLoadOrder     []string                  `json:"service_load_order"`
	AgentClassMappings   map[string]string         `json:"agent_class_mappings"`
	ProtocolMappings     map[string]string         `json:"protocol_mappings"`
	FunctionMappings     map[string]string         `json:"function_mappings"`
	MissingDeclarations  map[string]bool           `json:"missing_declarations"`
	GraphStructureStats  GraphStructure            `json:"graph_structure"`
	ValidationMetadata   map[string]string         `json:"validation_metadata"`
	CreatedAt            time.Time                 `json:"created_at"`
	BundleFormat         string                    `json:"bundle_format"`
}

// BundleFormatV1 is the on-disk format tag (spec.md section 3).
const BundleFormatV1 = "metadata-v1"
