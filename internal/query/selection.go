package query

import "time"

// Selection restricts a field to a set of values. The zero value is the
// "all" sentinel and matches everything; Only with no values matches nothing.
type Selection[T comparable] struct {
	set      map[T]struct{}
	explicit bool
}

func All[T comparable]() Selection[T] { return Selection[T]{} }

func Only[T comparable](values ...T) Selection[T] {
	s := Selection[T]{set: make(map[T]struct{}, len(values)), explicit: true}
	for _, v := range values {
		s.set[v] = struct{}{}
	}
	return s
}

func (s Selection[T]) IsAll() bool { return !s.explicit }

func (s Selection[T]) Match(v T) bool {
	if !s.explicit {
		return true
	}
	_, ok := s.set[v]
	return ok
}

// DateRange is inclusive on both ends and compares calendar dates in the
// location of From. The zero value matches every time.
type DateRange struct {
	From time.Time
	To   time.Time
	set  bool
}

// Between builds a range over the calendar days of from and to.
// A range with to before from matches nothing.
func Between(from, to time.Time) DateRange {
	return DateRange{From: from, To: to, set: true}
}

func (r DateRange) IsAll() bool { return !r.set }

func (r DateRange) Contains(t time.Time) bool {
	if !r.set {
		return true
	}
	loc := r.From.Location()
	day := dayKey(t.In(loc))
	return day >= dayKey(r.From) && day <= dayKey(r.To.In(loc))
}

func dayKey(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}
