package advisor

import (
	"math/rand/v2"
	"sort"
)

// Sample is one training point: lead days and the observed target.
type Sample struct {
	X float64
	Y float64
}

// Node is a regression tree node. Leaves have no children.
type Node struct {
	Threshold float64 `json:"t,omitempty"`
	Value     float64 `json:"v"`
	Left      *Node   `json:"l,omitempty"`
	Right     *Node   `json:"r,omitempty"`
}

// Predict walks the tree for x.
func (n *Node) Predict(x float64) float64 {
	for n.Left != nil {
		if x <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Value
}

// TreeOptions bounds tree growth. MaxDepth <= 0 means unbounded.
type TreeOptions struct {
	MaxDepth int
	MinLeaf  int
}

// FitTree grows a least-squares regression tree over one feature.
func FitTree(samples []Sample, opts TreeOptions) *Node {
	if opts.MinLeaf < 1 {
		opts.MinLeaf = 1
	}
	sorted := append([]Sample(nil), samples...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].X < sorted[j].X })
	return grow(sorted, 0, opts)
}

// grow expects s sorted by X.
func grow(s []Sample, depth int, opts TreeOptions) *Node {
	n := len(s)
	if n == 0 {
		return &Node{}
	}

	prefix := make([]float64, n+1)
	prefixSq := make([]float64, n+1)
	for i, p := range s {
		prefix[i+1] = prefix[i] + p.Y
		prefixSq[i+1] = prefixSq[i] + p.Y*p.Y
	}
	node := &Node{Value: prefix[n] / float64(n)}
	if n < 2*opts.MinLeaf || (opts.MaxDepth > 0 && depth >= opts.MaxDepth) {
		return node
	}

	sse := func(sum, sumSq float64, count int) float64 {
		return sumSq - sum*sum/float64(count)
	}
	parent := sse(prefix[n], prefixSq[n], n)

	best, bestAt := parent, -1
	for i := opts.MinLeaf; i <= n-opts.MinLeaf; i++ {
		if s[i-1].X == s[i].X {
			continue
		}
		left := sse(prefix[i], prefixSq[i], i)
		right := sse(prefix[n]-prefix[i], prefixSq[n]-prefixSq[i], n-i)
		if left+right < best-1e-9 {
			best, bestAt = left+right, i
		}
	}
	if bestAt < 0 {
		return node
	}

	node.Threshold = (s[bestAt-1].X + s[bestAt].X) / 2
	node.Left = grow(s[:bestAt], depth+1, opts)
	node.Right = grow(s[bestAt:], depth+1, opts)
	return node
}

// ForestOptions configures bagging.
type ForestOptions struct {
	Trees int
	Tree  TreeOptions
	Seed  int64
}

// Forest averages bagged regression trees. Trained on 0/1 labels its
// prediction is a probability.
type Forest struct {
	Trees []*Node `json:"trees"`
}

// FitForest trains opts.Trees trees, each on a bootstrap resample drawn from
// a generator seeded with opts.Seed. A single tree uses all samples.
func FitForest(samples []Sample, opts ForestOptions) *Forest {
	if len(samples) == 0 {
		return &Forest{}
	}
	if opts.Trees <= 1 {
		return &Forest{Trees: []*Node{FitTree(samples, opts.Tree)}}
	}
	rng := rand.New(rand.NewPCG(uint64(opts.Seed), uint64(opts.Seed)^0x9e3779b97f4a7c15))
	f := &Forest{Trees: make([]*Node, 0, opts.Trees)}
	boot := make([]Sample, len(samples))
	for t := 0; t < opts.Trees; t++ {
		for i := range boot {
			boot[i] = samples[rng.IntN(len(samples))]
		}
		f.Trees = append(f.Trees, FitTree(boot, opts.Tree))
	}
	return f
}

// Predict returns the mean prediction of all trees.
func (f *Forest) Predict(x float64) float64 {
	if len(f.Trees) == 0 {
		return 0
	}
	var sum float64
	for _, t := range f.Trees {
		sum += t.Predict(x)
	}
	return sum / float64(len(f.Trees))
}
