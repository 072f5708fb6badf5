package grid

import "sort"

// 整列重排：放置完成后按列重新计算行偏移。
// 紧排去掉占用跳格留下的空洞；匀排把列内剩余行数平均分摊到条目之间。
// 两种模式都以列首条目已解析出的偏移为基线，而不是从绝对零起算，
// 列首的强制缩进必须在重排后原样保留。
// 匀排按列独立进行，不跨页均摊：跨列注文之外的列不应被扰动。

// Repack 按 mode 就地重排 res。含块放置的列（及块跨到的列）不参与：
// 它们的格已写入占用集，移动会破坏占用语义。
func Repack(res *Result, mode PackMode) {
	if res == nil || mode == PackNone {
		return
	}

	anchored := blockAnchoredColumns(res)

	type colKey struct {
		page, col int
	}
	groups := map[colKey][]int{}
	for i := range res.Placements {
		pl := &res.Placements[i]
		if pl.Layer != LayerMain && pl.Layer != LayerNote {
			continue
		}
		k := colKey{pl.Pos.Page, pl.Pos.Column}
		if anchored[pageCol{k.page, k.col}] {
			continue
		}
		groups[k] = append(groups[k], i)
	}

	for _, idxs := range groups {
		repackColumn(res, idxs, mode)
	}
}

// repackColumn 重排单列。同一原始行上的条目（夹注平衡对）保持同行。
func repackColumn(res *Result, idxs []int, mode PackMode) {
	rows := make([]Rat, 0, len(idxs))
	seen := map[Rat]bool{}
	for _, i := range idxs {
		r := res.Placements[i].Pos.Row.norm()
		if !seen[r] {
			seen[r] = true
			rows = append(rows, r)
		}
	}
	if len(rows) == 0 {
		return
	}
	sort.Slice(rows, func(a, b int) bool { return rows[a].Cmp(rows[b]) < 0 })

	// 基线 = 列首条目已解析的偏移。
	base := rows[0].Floor()
	k := len(rows)

	remap := make(map[Rat]Rat, k)
	switch mode {
	case PackTight:
		for i, r := range rows {
			remap[r] = R(base + i)
		}
	case PackNatural:
		leftover := res.Config.Rows - base - k
		if leftover < 0 {
			leftover = 0
		}
		for i, r := range rows {
			// 第 i 条 = 基线 + i + i·leftover/k，首条恒等于基线。
			remap[r] = R(base + i).Add(RatOf(int64(leftover)*int64(i), int64(k)))
		}
	default:
		return
	}

	for _, i := range idxs {
		pl := &res.Placements[i]
		nr := remap[pl.Pos.Row.norm()]
		pl.Pos.Row = nr
		if pl.Index >= 0 && pl.Layer == LayerMain {
			pos := res.ByIndex[pl.Index]
			pos.Row = nr
			res.ByIndex[pl.Index] = pos
		}
	}
}

// blockAnchoredColumns 收集所有被块占用（含跨列部分）的 (页,列)。
func blockAnchoredColumns(res *Result) map[pageCol]bool {
	out := map[pageCol]bool{}
	for i := range res.Placements {
		pl := &res.Placements[i]
		if pl.Unit == nil || pl.Unit.Kind != UnitBlock {
			continue
		}
		span := pl.Unit.Span
		if span.Cols < 1 {
			span.Cols = 1
		}
		for dc := 0; dc < span.Cols; dc++ {
			out[pageCol{pl.Pos.Page, pl.Pos.Column + dc}] = true
		}
	}
	return out
}
