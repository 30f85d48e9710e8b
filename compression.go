package ui

import (
	"sort"

	"github.com/emirpasic/gods/sets/linkedhashset"
	"golang.org/x/net/html"
)

// Compression strategies, i.e. where the native listeners of a reference end
// up being attached.
const (
	StrategyNone     = "none"     // nothing matched
	StrategyElements = "elements" // one listener per element
	StrategyParents  = "parents"  // one listener per distinct parent
	StrategyAncestor = "ancestor" // a single listener on the nearest common ancestor
)

const (
	simpleCompressionRatio = 0.5
	maxAverageGap          = 10
)

// CollapsedStructure is the result of the compression analysis of a set of
// elements.
type CollapsedStructure struct {
	Nodes    []*html.Node
	Strategy string
}

// Delegated reports whether listeners sit on other nodes than the elements.
func (c CollapsedStructure) Delegated() bool {
	return c.Strategy == StrategyParents || c.Strategy == StrategyAncestor
}

func perElement(elements []*html.Node) CollapsedStructure {
	if len(elements) == 0 {
		return CollapsedStructure{nil, StrategyNone}
	}
	return CollapsedStructure{elements, StrategyElements}
}

// CollapsedDomStructure computes where listeners for the current element set
// should be attached.
func (r *ElementReference) CollapsedDomStructure() CollapsedStructure {
	return r.collapsedDomStructure(r.Elements())
}

func (r *ElementReference) collapsedDomStructure(elements []*html.Node) CollapsedStructure {
	if !r.compression || len(elements) <= 1 {
		return perElement(elements)
	}

	parents := linkedhashset.New()
	for _, e := range elements {
		if e.Parent != nil {
			parents.Add(e.Parent)
		}
	}
	if parents.Size() > 0 && float64(parents.Size())/float64(len(elements)) < simpleCompressionRatio {
		nodes := make([]*html.Node, 0, parents.Size())
		for _, p := range parents.Values() {
			nodes = append(nodes, p.(*html.Node))
		}
		return CollapsedStructure{nodes, StrategyParents}
	}

	if !r.complexCompression {
		return perElement(elements)
	}

	ancestor := commonAncestor(elements)
	if ancestor == nil || r.isDocumentRoot(ancestor) {
		return perElement(elements)
	}

	avg, median := gapStatistics(ancestor, elements)
	if avg < median || avg >= maxAverageGap {
		return perElement(elements)
	}
	return CollapsedStructure{[]*html.Node{ancestor}, StrategyAncestor}
}

func (r *ElementReference) isDocumentRoot(n *html.Node) bool {
	if n.Type == html.DocumentNode || n.Parent == nil {
		return true
	}
	return r.doc != nil && n == r.doc.DocumentElement()
}

func depth(n *html.Node) int {
	d := 0
	for p := n.Parent; p != nil; p = p.Parent {
		d++
	}
	return d
}

// lowestCommonAncestor returns the deepest node that is an ancestor of, or
// equal to, both a and b.
func lowestCommonAncestor(a, b *html.Node) *html.Node {
	da, db := depth(a), depth(b)
	for da > db {
		a = a.Parent
		da--
	}
	for db > da {
		b = b.Parent
		db--
	}
	for a != b {
		if a == nil || b == nil {
			return nil
		}
		a, b = a.Parent, b.Parent
	}
	return a
}

func commonAncestor(elements []*html.Node) *html.Node {
	if len(elements) == 0 {
		return nil
	}
	anc := elements[0]
	for _, e := range elements[1:] {
		anc = lowestCommonAncestor(anc, e)
		if anc == nil {
			return nil
		}
	}
	return anc
}

// gapStatistics returns the average and the median tree distance between
// ancestor and each element.
func gapStatistics(ancestor *html.Node, elements []*html.Node) (avg, median float64) {
	base := depth(ancestor)
	gaps := make([]int, 0, len(elements))
	sum := 0
	for _, e := range elements {
		g := depth(e) - base
		gaps = append(gaps, g)
		sum += g
	}
	sort.Ints(gaps)
	avg = float64(sum) / float64(len(gaps))
	mid := len(gaps) / 2
	if len(gaps)%2 == 0 {
		median = float64(gaps[mid-1]+gaps[mid]) / 2
	} else {
		median = float64(gaps[mid])
	}
	return avg, median
}
