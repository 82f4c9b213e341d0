package engine

import "testing"

func TestWorkQueueClassString(t *testing.T) {
	cases := map[WorkQueueClass]string{
		ClassFast:     "fast",
		ClassAccept:   "accept",
		ClassRead:     "read",
		ClassSocket:   "socket",
		ClassConnect:  "connect",
		ClassWrite:    "write",
		ClassShutdown: "shutdown",
		ClassClose:    "close",
		WorkQueueClass(99): "unknown",
	}
	for class, want := range cases {
		if got := class.String(); got != want {
			t.Errorf("WorkQueueClass(%d).String() = %q, want %q", class, got, want)
		}
	}
}

func TestWorkQueueFIFO(t *testing.T) {
	var q workQueue
	var order []int
	for i := 0; i < queueChunkSize*3+7; i++ {
		idx := i
		q.push(func() { order = append(order, idx) })
	}
	for i := 0; i < queueChunkSize*3+7; i++ {
		task, ok := q.pop()
		if !ok {
			t.Fatalf("pop %d: expected a task, got none", i)
		}
		task()
	}
	if !q.empty() {
		t.Fatal("queue should be empty after draining every pushed task")
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("order[%d] = %d, want %d (FIFO violated)", i, v, i)
		}
	}
}

func TestQueueBatteryPriorityOrder(t *testing.T) {
	b := newQueueBattery()
	var order []WorkQueueClass
	record := func(c WorkQueueClass) Task {
		return func() { order = append(order, c) }
	}

	// Enqueue out of priority order; pop must still drain fast first, then
	// accept, then read, etc.
	b.enqueue(ClassClose, record(ClassClose))
	b.enqueue(ClassWrite, record(ClassWrite))
	b.enqueue(ClassFast, record(ClassFast))
	b.enqueue(ClassRead, record(ClassRead))

	for {
		task, _, ok := b.pop()
		if !ok {
			break
		}
		task()
	}

	want := []WorkQueueClass{ClassFast, ClassRead, ClassWrite, ClassClose}
	if len(order) != len(want) {
		t.Fatalf("got %d tasks, want %d", len(order), len(want))
	}
	for i, c := range want {
		if order[i] != c {
			t.Errorf("order[%d] = %v, want %v", i, order[i], c)
		}
	}
}

// TestQueueBatteryRoundRobinAfterFastEmpty verifies that once fast is empty,
// the cursor walks forward through the remaining classes round-robin, so a
// later class is reached as soon as the cursor's class runs dry.
func TestQueueBatteryRoundRobinAfterFastEmpty(t *testing.T) {
	b := newQueueBattery()

	var order []WorkQueueClass
	b.enqueue(ClassAccept, func() { order = append(order, ClassAccept) })
	b.enqueue(ClassSocket, func() { order = append(order, ClassSocket) })

	// First pop drains accept (cursor starts at fast, fast empty, walk
	// forward finds accept first).
	task, class, ok := b.pop()
	if !ok || class != ClassAccept {
		t.Fatalf("first pop: class=%v ok=%v, want accept", class, ok)
	}
	task()

	// Re-enqueue accept work while socket is still pending: the cursor
	// has advanced to accept, so the next pop takes the refilled accept
	// task first; once accept is empty again the walk from the cursor
	// reaches socket.
	b.enqueue(ClassAccept, func() { order = append(order, ClassAccept) })

	task, class, ok = b.pop()
	if !ok {
		t.Fatal("second pop: expected a task")
	}
	task()

	task, class, ok = b.pop()
	if !ok {
		t.Fatal("third pop: expected a task")
	}
	task()

	if len(order) != 3 {
		t.Fatalf("got %d executions, want 3", len(order))
	}
	sawSocket := false
	for _, c := range order {
		if c == ClassSocket {
			sawSocket = true
		}
	}
	if !sawSocket {
		t.Error("socket class work was starved; round-robin cursor never reached it")
	}
}

// TestQueueBatteryCursorDrainsBeforeFallback pins the cursor mid-battery
// and verifies the documented drain order: the cursor's own class first,
// then the forward walk from cursor+1 wrapping through fast, so a class
// numerically before the cursor is reached only after later classes.
func TestQueueBatteryCursorDrainsBeforeFallback(t *testing.T) {
	b := newQueueBattery()
	b.cursor = ClassWrite

	var order []WorkQueueClass
	record := func(c WorkQueueClass) Task {
		return func() { order = append(order, c) }
	}
	b.enqueue(ClassRead, record(ClassRead))
	b.enqueue(ClassWrite, record(ClassWrite))
	b.enqueue(ClassAccept, record(ClassAccept))

	for {
		task, _, ok := b.pop()
		if !ok {
			break
		}
		task()
	}

	want := []WorkQueueClass{ClassWrite, ClassAccept, ClassRead}
	if len(order) != len(want) {
		t.Fatalf("got %d tasks, want %d", len(order), len(want))
	}
	for i, c := range want {
		if order[i] != c {
			t.Errorf("order[%d] = %v, want %v", i, order[i], c)
		}
	}
	if b.cursor != ClassFast {
		t.Errorf("cursor after total drain = %v, want fast", b.cursor)
	}
}

func TestQueueBatteryEmptyReturnsFalse(t *testing.T) {
	b := newQueueBattery()
	if _, _, ok := b.pop(); ok {
		t.Fatal("pop on empty battery should report ok=false")
	}
	if b.total() != 0 {
		t.Fatalf("total() = %d, want 0", b.total())
	}
}

func TestQueueBatteryLenAndTotal(t *testing.T) {
	b := newQueueBattery()
	b.enqueue(ClassRead, func() {})
	b.enqueue(ClassRead, func() {})
	b.enqueue(ClassWrite, func() {})

	if n := b.len(ClassRead); n != 2 {
		t.Errorf("len(ClassRead) = %d, want 2", n)
	}
	if n := b.len(ClassWrite); n != 1 {
		t.Errorf("len(ClassWrite) = %d, want 1", n)
	}
	if n := b.total(); n != 3 {
		t.Errorf("total() = %d, want 3", n)
	}
}
