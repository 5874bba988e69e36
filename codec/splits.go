package codec

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/mycok/uGraph/graph"
)

// SplitPoints maps an encoded boundary identifier to the index of the
// partition that starts at it.
type SplitPoints map[string]int

// Keys returns the boundary keys in ascending order.
func (sp SplitPoints) Keys() [][]byte {
	keys := make([][]byte, 0, len(sp))
	for k := range sp {
		keys = append(keys, []byte(k))
	}

	sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i], keys[j]) < 0 })

	return keys
}

// NumPartitions returns the number of partitions described by the split
// points. An empty map describes a single partition.
func (sp SplitPoints) NumPartitions() int {
	if len(sp) == 0 {
		return 1
	}

	return len(sp)
}

// Partition returns the partition a record key belongs to: the partition of
// the greatest boundary that is less than or equal to key, or 0 when key
// sorts before every boundary.
func (sp SplitPoints) Partition(key []byte) int {
	keys := sp.Keys()
	idx := sort.Search(len(keys), func(i int) bool { return bytes.Compare(keys[i], key) > 0 })
	if idx == 0 {
		return 0
	}

	return sp[string(keys[idx-1])]
}

// CalculateSplitPoints samples the identifiers of the elements of group and
// picks up to numSplits boundaries that divide them into partitions of
// roughly equal size. Every sampleRate-th element of the group, counted in
// encounter order from zero, is sampled. The iterator is drained but not
// closed.
func (c *Converter) CalculateSplitPoints(
	it graph.ElementIterator, group string, numSplits, sampleRate int,
) (SplitPoints, error) {

	if numSplits < 1 {
		return nil, fmt.Errorf("split points: number of splits must be positive, got %d", numSplits)
	} else if sampleRate < 1 {
		return nil, fmt.Errorf("split points: sample rate must be positive, got %d", sampleRate)
	}

	var (
		seen    = make(map[string]struct{})
		samples [][]byte
		count   int
	)

	for it.Next() {
		el := it.Element()
		if el.GetGroup() != group {
			continue
		}

		if count%sampleRate == 0 {
			id, err := c.identifyingValue(el)
			if err != nil {
				return nil, err
			}

			if _, dup := seen[string(id)]; !dup {
				seen[string(id)] = struct{}{}
				samples = append(samples, id)
			}
		}

		count++
	}

	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("split points: %w", err)
	}

	sort.Slice(samples, func(i, j int) bool { return bytes.Compare(samples[i], samples[j]) < 0 })

	step := len(samples) / numSplits
	if step < 1 {
		step = 1
	}

	splits := make(SplitPoints)
	for i := 0; i < len(samples) && len(splits) < numSplits; i += step {
		splits[string(samples[i])] = len(splits)
	}

	return splits, nil
}

// identifyingValue returns the encoded identifier that leads the primary
// record of el.
func (c *Converter) identifyingValue(el graph.Element) ([]byte, error) {
	switch e := el.(type) {
	case *graph.Entity:
		return c.EncodeIdentifier(e.Vertex)
	case *graph.Edge:
		src, err := c.EncodeIdentifier(e.Source)
		if err != nil || e.Directed {
			return src, err
		}

		dest, err := c.EncodeIdentifier(e.Destination)
		if err != nil {
			return nil, err
		}

		if bytes.Compare(dest, src) < 0 {
			return dest, nil
		}

		return src, nil
	default:
		return nil, conversionErrorf(nil, "unsupported element type %T", el)
	}
}
