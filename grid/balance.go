package grid

// 夹注配平：把注文流按双半列（外=右半列先读，内=左半列）摊进当前列的
// 剩余容量，不足时续排到后续非保留列。外侧第 i 条与内侧第 i 条同行。

// balanceNote 将 units 配平放置，anchor 用于起始列的缩进解析。
// 溢出后的续排列不再解析缩进，从第 0 行起排。
func (p *placer) balanceNote(anchor *Unit, units []Unit, idx int) error {
	remaining := units
	brokeForOrphan := false
	continuation := false

	for len(remaining) > 0 {
		if continuation && !p.colStarted {
			p.row = 0
			p.colStarted = true
			if _, ok := p.colBase[p.key()]; !ok {
				p.colBase[p.key()] = 0
			}
		}
		p.startColumn(anchor)
		capRows := p.cfg.Rows - p.row
		capacity := capRows * 2

		// 孤注控制：不足一对完整行时先换列，保证平衡对同列起排。
		if capacity < 2 {
			if brokeForOrphan {
				return &OrphanError{UnitIndex: idx, Cursor: p.cursor()}
			}
			if err := p.advanceColumn(idx); err != nil {
				return err
			}
			brokeForOrphan = true
			continue
		}
		brokeForOrphan = false

		n := len(remaining)
		if n > capacity {
			n = capacity
		}
		outer := (n + 1) / 2
		inner := n - outer

		for i := 0; i < outer; i++ {
			p.emit(&remaining[i], -1, Position{
				Page:   p.page,
				Column: p.col,
				Row:    R(p.row + i),
				Sub:    SubOuter,
			}, LayerNote)
		}
		for i := 0; i < inner; i++ {
			p.emit(&remaining[outer+i], -1, Position{
				Page:   p.page,
				Column: p.col,
				Row:    R(p.row + i),
				Sub:    SubInner,
			}, LayerNote)
		}

		// 注文结束后主游标落在消费行数的下一行。
		p.row += outer
		p.pageDirty = true
		remaining = remaining[n:]

		if len(remaining) > 0 {
			if err := p.advanceColumn(idx); err != nil {
				return err
			}
			continuation = true
		}
	}
	return nil
}
