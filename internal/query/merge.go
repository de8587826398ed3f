package query

import (
	"container/heap"

	"github.com/openobserve/corelake/internal/cluster"
	"github.com/openobserve/corelake/internal/model"
)

// mergeResults k-way merges partials' already-locally-sorted Records by
// the _timestamp sort key; limit truncation is the caller's job, applied
// post-merge per spec.md §4.5.
func mergeResults(partials []*cluster.PartialResult, sortDesc bool) []model.Record {
	h := &mergeHeap{desc: sortDesc}
	total := 0
	for i, p := range partials {
		if p == nil || len(p.Records) == 0 {
			continue
		}
		total += len(p.Records)
		heap.Push(h, mergeItem{streamIdx: i, pos: 0, rec: p.Records[0]})
	}

	out := make([]model.Record, 0, total)
	for h.Len() > 0 {
		item := heap.Pop(h).(mergeItem)
		out = append(out, item.rec)

		src := partials[item.streamIdx].Records
		next := item.pos + 1
		if next < len(src) {
			heap.Push(h, mergeItem{streamIdx: item.streamIdx, pos: next, rec: src[next]})
		}
	}
	return out
}

type mergeItem struct {
	streamIdx int
	pos       int
	rec       model.Record
}

type mergeHeap struct {
	items []mergeItem
	desc  bool
}

func (h *mergeHeap) Len() int { return len(h.items) }

func (h *mergeHeap) Less(i, j int) bool {
	if h.desc {
		return h.items[i].rec.TimestampUs > h.items[j].rec.TimestampUs
	}
	return h.items[i].rec.TimestampUs < h.items[j].rec.TimestampUs
}

func (h *mergeHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *mergeHeap) Push(x any) { h.items = append(h.items, x.(mergeItem)) }

func (h *mergeHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}
