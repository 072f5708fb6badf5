package grid

// stream 是可前瞻的单元流：智能断行需要 peek 一个单元而不消费它，
// 用显式前瞻代替临时缓冲。
type stream struct {
	units []Unit
	pos   int
}

func newStream(units []Unit) *stream {
	return &stream{units: units}
}

// next 返回下一个单元并前进；流尽时返回 nil。
func (s *stream) next() *Unit {
	if s.pos >= len(s.units) {
		return nil
	}
	u := &s.units[s.pos]
	s.pos++
	return u
}

// peek 返回下一个单元但不前进；流尽时返回 nil。
func (s *stream) peek() *Unit {
	if s.pos >= len(s.units) {
		return nil
	}
	return &s.units[s.pos]
}

// index 返回最近一次 next 返回的单元序号。
func (s *stream) index() int {
	return s.pos - 1
}
