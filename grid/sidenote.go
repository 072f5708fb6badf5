package grid

// 旁注放置：不占主流格，相对最近的主流单元定位，逐列维护独立于
// OccupancyMap 的高水位，换列沿用保留列跳过规则。

// placeSideNote 查表取出旁注并沿锚点竖排。
func (p *placer) placeSideNote(u *Unit, idx int) error {
	sn, ok := p.reg.Side[u.NoteID]
	if !ok {
		p.logger.Warn("旁注登记缺失，按零格跳过", "id", u.NoteID, "unit", idx)
		return nil
	}
	delete(p.reg.Side, u.NoteID)
	if len(sn.Units) == 0 {
		return nil
	}

	page, col := p.page, p.col
	anchorRow := -1
	if p.lastMain != nil {
		page = p.lastMain.Page
		col = p.lastMain.Column
		anchorRow = p.lastMain.Row.Floor()
	}

	pad := sn.Pad
	if pad <= 0 {
		pad = p.cfg.TopPadding
	}
	if p.cfg.Rows > 0 && pad >= p.cfg.Rows {
		pad = p.cfg.Rows - 1
	}
	start := anchorRow + 1
	if pad > start {
		start = pad
	}
	start += sn.YOffset
	if start < 0 {
		start = 0
	}
	// 同列已有旁注时顺延到其高水位之后。
	if hw, used := p.sideHigh[pageCol{page, col}]; used && start <= hw {
		start = hw + 1
	}

	row := start
	for i := range sn.Units {
		for p.cfg.Rows > 0 && row >= p.cfg.Rows {
			var err error
			page, col, err = p.sideAdvance(page, col, idx)
			if err != nil {
				return err
			}
			row = pad
			if hw, used := p.sideHigh[pageCol{page, col}]; used && row <= hw {
				row = hw + 1
			}
		}
		p.emit(&sn.Units[i], -1, Position{Page: page, Column: col, Row: R(row)}, LayerSide)
		p.sideHigh[pageCol{page, col}] = row
		row++
	}
	return nil
}

// sideAdvance 是旁注自己的换列：跳过保留列，越过页宽时翻页并校验页数上限。
func (p *placer) sideAdvance(page, col, idx int) (int, int, error) {
	col++
	for col < p.cfg.Columns && p.cfg.Reserved(col) {
		col++
	}
	if col < p.cfg.Columns {
		return page, col, nil
	}
	if p.cfg.MaxPages > 0 && page+2 > p.cfg.MaxPages {
		return page, col, &CapacityError{
			UnitIndex: idx,
			Cursor:    Cursor{Page: page, Column: col, Row: 0},
			Pages:     page + 2,
			MaxPages:  p.cfg.MaxPages,
		}
	}
	return page + 1, firstContentColumn(p.cfg), nil
}
