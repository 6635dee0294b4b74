package artifact

import (
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-json"
)

// leaf marks a node without children.
const leaf = -1

// RandomForest is a fitted regression forest. The prediction is the mean of
// the tree outputs.
type RandomForest struct {
	nFeatures int
	trees     []tree
}

type tree struct {
	nodes []node
}

type node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
}

type forestFile struct {
	NFeatures int `json:"n_features"`
	Trees     []struct {
		Nodes []node `json:"nodes"`
	} `json:"trees"`
}

// LoadForest reads a forest export from path.
func LoadForest(path string) (*RandomForest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	return ParseForest(data)
}

// ParseForest decodes a forest export and checks every tree is walkable.
func ParseForest(data []byte) (*RandomForest, error) {
	var f forestFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if len(f.Trees) == 0 {
		return nil, errors.New("model has no trees")
	}

	m := &RandomForest{nFeatures: f.NFeatures, trees: make([]tree, len(f.Trees))}
	for i, t := range f.Trees {
		if err := validateTree(t.Nodes, f.NFeatures); err != nil {
			return nil, fmt.Errorf("model tree %d: %w", i, err)
		}
		m.trees[i] = tree{nodes: t.Nodes}
	}
	return m, nil
}

// NumFeatures returns the input width the forest was trained on, or 0 when
// the export did not record it.
func (m *RandomForest) NumFeatures() int {
	return m.nFeatures
}

// Predict returns the mean tree output for a scaled feature vector.
func (m *RandomForest) Predict(features []float64) (float64, error) {
	if m.nFeatures > 0 && len(features) != m.nFeatures {
		return 0, fmt.Errorf("model expects %d features, got %d", m.nFeatures, len(features))
	}
	var sum float64
	for i := range m.trees {
		v, err := m.trees[i].predict(features)
		if err != nil {
			return 0, fmt.Errorf("tree %d: %w", i, err)
		}
		sum += v
	}
	return sum / float64(len(m.trees)), nil
}

func (t tree) predict(features []float64) (float64, error) {
	i := 0
	for {
		n := t.nodes[i]
		if n.Left == leaf {
			return n.Value, nil
		}
		if n.Feature >= len(features) {
			return 0, fmt.Errorf("node %d splits on feature %d of %d", i, n.Feature, len(features))
		}
		if features[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// validateTree rejects trees whose children point outside the node list or
// back towards the root, so predict always terminates.
func validateTree(nodes []node, nFeatures int) error {
	if len(nodes) == 0 {
		return errors.New("no nodes")
	}
	for i, n := range nodes {
		if n.Left == leaf {
			continue
		}
		if n.Left <= i || n.Right <= i || n.Left >= len(nodes) || n.Right >= len(nodes) {
			return fmt.Errorf("node %d has invalid children %d/%d", i, n.Left, n.Right)
		}
		if n.Feature < 0 || (nFeatures > 0 && n.Feature >= nFeatures) {
			return fmt.Errorf("node %d splits on invalid feature %d", i, n.Feature)
		}
	}
	return nil
}
