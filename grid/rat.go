package grid

import "fmt"

// Rat 表示精确有理数，用于行号：主流内容的行始终是整数，
// 但注文配平与 natural 重排会产生分数行，用浮点会在比较时引入误差。
type Rat struct {
	Num int64 `json:"num"`
	Den int64 `json:"den"`
}

// R 构造整数行。
func R(n int) Rat { return Rat{Num: int64(n), Den: 1} }

// RatOf 构造 n/d 并约分；d 为 0 时按整数 n 处理。
func RatOf(n, d int64) Rat {
	if d == 0 {
		return Rat{Num: n, Den: 1}
	}
	if d < 0 {
		n, d = -n, -d
	}
	g := gcd(abs64(n), d)
	if g > 1 {
		n /= g
		d /= g
	}
	return Rat{Num: n, Den: d}
}

func (r Rat) norm() Rat {
	if r.Den == 0 {
		return Rat{Num: r.Num, Den: 1}
	}
	return RatOf(r.Num, r.Den)
}

// Add 返回 r + o。
func (r Rat) Add(o Rat) Rat {
	r, o = r.norm(), o.norm()
	return RatOf(r.Num*o.Den+o.Num*r.Den, r.Den*o.Den)
}

// Cmp 比较两个有理数：-1、0、1。
func (r Rat) Cmp(o Rat) int {
	r, o = r.norm(), o.norm()
	l := r.Num * o.Den
	x := o.Num * r.Den
	switch {
	case l < x:
		return -1
	case l > x:
		return 1
	default:
		return 0
	}
}

// Floor 返回不大于 r 的最大整数。
func (r Rat) Floor() int {
	r = r.norm()
	q := r.Num / r.Den
	if r.Num%r.Den != 0 && r.Num < 0 {
		q--
	}
	return int(q)
}

// IsInt 报告 r 是否为整数。
func (r Rat) IsInt() bool {
	r = r.norm()
	return r.Den == 1
}

// Float64 返回近似浮点值，仅供坐标换算使用。
func (r Rat) Float64() float64 {
	r = r.norm()
	return float64(r.Num) / float64(r.Den)
}

func (r Rat) String() string {
	r = r.norm()
	if r.Den == 1 {
		return fmt.Sprintf("%d", r.Num)
	}
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func abs64(a int64) int64 {
	if a < 0 {
		return -a
	}
	return a
}
