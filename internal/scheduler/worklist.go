package scheduler

import "github.com/noah-isme/sma-timetable-api/internal/models"

// RequirementState tracks a (group, subject) requirement through the run.
type RequirementState string

const (
	StatePending            RequirementState = "PENDING"
	StatePartiallyScheduled RequirementState = "PARTIALLY_SCHEDULED"
	StateSatisfied          RequirementState = "SATISFIED"
	StateExhausted          RequirementState = "EXHAUSTED"
)

// Shortfall reasons.
const (
	ReasonNoEligibleTeacher = "NO_ELIGIBLE_TEACHER"
	ReasonSearchExhausted   = "SEARCH_EXHAUSTED"
)

type requirement struct {
	classID   string
	batchID   *string
	subject   models.Subject
	teachers  []models.Teacher
	required  int
	scheduled int
	state     RequirementState
	reason    string
}

func (r *requirement) group() string {
	return groupKey(r.classID, r.batchID)
}

func (r *requirement) accept() {
	r.scheduled++
	if r.scheduled >= r.required {
		r.state = StateSatisfied
		return
	}
	r.state = StatePartiallyScheduled
}

func (r *requirement) finish() {
	if r.state == StateSatisfied {
		return
	}
	r.state = StateExhausted
	if r.reason == "" {
		r.reason = ReasonSearchExhausted
	}
}

// worklist is an arena of requirement records processed in index order.
type worklist struct {
	items []requirement
	next  int
}

func (w *worklist) push(r requirement) {
	r.state = StatePending
	if r.required <= 0 {
		r.state = StateSatisfied
	}
	w.items = append(w.items, r)
}

func (w *worklist) pop() (*requirement, bool) {
	if w.next >= len(w.items) {
		return nil, false
	}
	r := &w.items[w.next]
	w.next++
	return r, true
}

// dayQueue is an index-based FIFO of days to try for one requirement. Requeues of
// days already at their daily cap are bounded so the loop always terminates.
type dayQueue struct {
	items       []int
	head        int
	requeues    int
	maxRequeues int
}

func newDayQueue(days []int) *dayQueue {
	items := make([]int, len(days))
	copy(items, days)
	return &dayQueue{items: items, maxRequeues: len(days)}
}

func (q *dayQueue) empty() bool {
	return q.head >= len(q.items)
}

func (q *dayQueue) pop() int {
	day := q.items[q.head]
	q.head++
	return day
}

// push appends a day that still has room for the requirement. It is only called
// after a placement, so pushes are bounded by the requirement's required count.
func (q *dayQueue) push(day int) {
	q.items = append(q.items, day)
}

// requeue retries a capped day later; it reports false once the budget is spent.
func (q *dayQueue) requeue(day int) bool {
	if q.requeues >= q.maxRequeues {
		return false
	}
	q.requeues++
	q.items = append(q.items, day)
	return true
}
