package engine

import "github.com/ncanvas/flowengine/internal/domain"

// testNode builds a minimal domain.Node for unit tests that only need a
// kind and an id, with config populated via testConfig.
func testNode(id string, kind domain.Kind, config ...map[string]any) *domain.Node {
	cfg := map[string]any{}
	if len(config) > 0 {
		cfg = config[0]
	}
	return &domain.Node{ID: id, Kind: kind, Config: cfg}
}
