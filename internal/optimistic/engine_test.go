package optimistic_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"kanbandash/internal/gateway"
	"kanbandash/internal/kanban"
	"kanbandash/internal/logging"
	"kanbandash/internal/optimistic"
	"kanbandash/internal/store"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) FetchBoardState(ctx context.Context) (*kanban.NormalizedState, error) {
	args := m.Called(ctx)
	state := args.Get(0)
	if state == nil {
		return nil, args.Error(1)
	}
	return state.(*kanban.NormalizedState).Clone(), args.Error(1)
}

func (m *MockGateway) CreateTask(ctx context.Context, fields kanban.TaskFields) (*kanban.Task, error) {
	args := m.Called(ctx, fields)
	task := args.Get(0)
	if task == nil {
		return nil, args.Error(1)
	}
	return task.(*kanban.Task), args.Error(1)
}

func (m *MockGateway) ArchiveTask(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockGateway) MoveTask(ctx context.Context, id, columnID string, order float64) (*kanban.Task, error) {
	args := m.Called(ctx, id, columnID, order)
	task := args.Get(0)
	if task == nil {
		return nil, args.Error(1)
	}
	return task.(*kanban.Task), args.Error(1)
}

var _ gateway.Gateway = (*MockGateway)(nil)

// sampleState: next-up is empty, in-progress holds 3 (order 2000) above 4
// (order 1000), done holds 5.
func sampleState() *kanban.NormalizedState {
	s := kanban.NewState(kanban.Board{ID: "main-board", Title: "Main Board", ColumnIDs: []string{"next-up", "in-progress", "done"}})
	s.Columns["next-up"] = &kanban.Column{ID: "next-up", Title: "Next Up", Order: 0, Color: "bg-amber-500", TaskIDs: []string{}}
	s.Columns["in-progress"] = &kanban.Column{ID: "in-progress", Title: "In Progress", Order: 1, Color: "bg-purple-500", TaskIDs: []string{"3", "4"}}
	s.Columns["done"] = &kanban.Column{ID: "done", Title: "Done", Order: 2, Color: "bg-green-500", TaskIDs: []string{"5"}}
	s.Tasks["3"] = &kanban.Task{ID: "3", Title: "Usability Testing", Priority: kanban.PriorityLow, Order: 2000, ColumnID: "in-progress"}
	s.Tasks["4"] = &kanban.Task{ID: "4", Title: "Front-end Development", Priority: kanban.PriorityHigh, Order: 1000, ColumnID: "in-progress"}
	s.Tasks["5"] = &kanban.Task{ID: "5", Title: "Kickoff", Priority: kanban.PriorityMedium, Order: 1000, ColumnID: "done"}
	return s
}

type fixture struct {
	gw     *MockGateway
	cache  *store.Cache
	engine *optimistic.Engine
	reg    *prometheus.Registry
	seen   []optimistic.Transition
	mu     sync.Mutex
}

func setup(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{gw: new(MockGateway), reg: prometheus.NewRegistry()}
	f.gw.On("FetchBoardState", mock.Anything).Return(sampleState(), nil).Once()
	f.cache = store.New("board:u1", f.gw, store.WithLogger(logging.NewNop()))
	require.NoError(t, f.cache.Revalidate(context.Background()))

	record := optimistic.ObserverFunc(func(tr optimistic.Transition) {
		f.mu.Lock()
		f.seen = append(f.seen, tr)
		f.mu.Unlock()
	})
	f.engine = optimistic.New(f.cache, f.gw,
		optimistic.WithLogger(logging.NewNop()),
		optimistic.WithObserver(optimistic.Observers(record, optimistic.NewMetrics(f.reg))),
	)
	return f
}

func (f *fixture) state() *kanban.NormalizedState {
	return f.cache.Read().Data
}

func (f *fixture) phases() []optimistic.Phase {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []optimistic.Phase
	for _, tr := range f.seen {
		out = append(out, tr.To)
	}
	return out
}

func TestCreate_EmptyColumnGetsFirstOrder(t *testing.T) {
	// Arrange
	f := setup(t)
	want := kanban.TaskFields{Title: "Mockups", Priority: kanban.PriorityMedium, DueDate: "2023-12-10", ColumnID: "next-up", Order: 1000}
	stored := &kanban.Task{ID: "perm-1", Title: "Mockups", Priority: kanban.PriorityMedium, DueDate: "2023-12-10", Order: 1000, ColumnID: "next-up"}
	f.gw.On("CreateTask", mock.Anything, want).Return(stored, nil)

	// Act
	task, err := f.engine.Create(context.Background(), optimistic.CreateInput{
		Title: "Mockups", Priority: kanban.PriorityMedium, DueDate: "2023-12-10", ColumnID: "next-up",
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "perm-1", task.ID)
	s := f.state()
	assert.Equal(t, []string{"perm-1"}, s.Columns["next-up"].TaskIDs)
	assert.Equal(t, 1000.0, s.Tasks["perm-1"].Order)
	assert.Nil(t, s.Tasks["perm-1"].ArchivedAt)
	for id := range s.Tasks {
		assert.False(t, kanban.IsTempID(id), "temp id left behind: %s", id)
	}
	assert.NoError(t, s.Validate())
	assert.Equal(t, []optimistic.Phase{optimistic.PhaseApplied, optimistic.PhaseSettled}, f.phases())
	f.gw.AssertExpectations(t)
}

func TestCreate_ShowsProvisionalTaskWhilePending(t *testing.T) {
	// Arrange
	f := setup(t)
	gate := make(chan struct{})
	stored := &kanban.Task{ID: "perm-9", Title: "Write tests", Priority: kanban.PriorityLow, Order: 3000, ColumnID: "in-progress"}
	f.gw.On("CreateTask", mock.Anything, mock.Anything).Run(func(mock.Arguments) { <-gate }).Return(stored, nil)
	done := make(chan error, 1)

	// Act
	go func() {
		_, err := f.engine.Create(context.Background(), optimistic.CreateInput{Title: "Write tests", Priority: kanban.PriorityLow, ColumnID: "in-progress"})
		done <- err
	}()

	// Assert: provisional entry at the head under a temp id.
	require.Eventually(t, func() bool { return len(f.state().Columns["in-progress"].TaskIDs) == 3 }, time.Second, 5*time.Millisecond)
	pending := f.state()
	head := pending.Columns["in-progress"].TaskIDs[0]
	assert.True(t, kanban.IsTempID(head))
	assert.Equal(t, 3000.0, pending.Tasks[head].Order)
	assert.NoError(t, pending.Validate())

	close(gate)
	require.NoError(t, <-done)
	assert.Equal(t, []string{"perm-9", "3", "4"}, f.state().Columns["in-progress"].TaskIDs)
}

func titled(title string) any {
	return mock.MatchedBy(func(f kanban.TaskFields) bool { return f.Title == title })
}

func TestCreate_SettlesInPlaceAmongConcurrentEdits(t *testing.T) {
	// Arrange: three creates into in-progress are held open while task 3 is
	// archived underneath them.
	f := setup(t)
	gateA, gateB, gateC := make(chan struct{}), make(chan struct{}), make(chan struct{})
	storedA := &kanban.Task{ID: "perm-A", Title: "A", Priority: kanban.PriorityLow, Order: 3000, ColumnID: "in-progress"}
	storedC := &kanban.Task{ID: "perm-C", Title: "C", Priority: kanban.PriorityLow, Order: 4000, ColumnID: "in-progress"}
	f.gw.On("CreateTask", mock.Anything, titled("A")).Run(func(mock.Arguments) { <-gateA }).Return(storedA, nil).Once()
	f.gw.On("CreateTask", mock.Anything, titled("C")).Run(func(mock.Arguments) { <-gateC }).Return(storedC, nil).Once()
	f.gw.On("CreateTask", mock.Anything, titled("B")).Run(func(mock.Arguments) { <-gateB }).Return(nil, errors.New("offline")).Once()
	f.gw.On("ArchiveTask", mock.Anything, "3").Return(nil).Once()
	column := func() []string { return f.state().Columns["in-progress"].TaskIDs }

	start := func(title string) chan error {
		done := make(chan error, 1)
		go func() {
			_, err := f.engine.Create(context.Background(), optimistic.CreateInput{Title: title, Priority: kanban.PriorityLow, ColumnID: "in-progress"})
			done <- err
		}()
		return done
	}

	// Act
	doneA := start("A")
	require.Eventually(t, func() bool { return len(column()) == 3 }, time.Second, 5*time.Millisecond)
	tempA := column()[0]
	doneC := start("C")
	require.Eventually(t, func() bool { return len(column()) == 4 }, time.Second, 5*time.Millisecond)
	tempC := column()[0]
	doneB := start("B")
	require.Eventually(t, func() bool { return len(column()) == 5 }, time.Second, 5*time.Millisecond)
	tempB := column()[0]
	require.NoError(t, f.engine.Archive(context.Background(), "3"))

	// Assert
	assert.Equal(t, []string{tempB, tempC, tempA, "4"}, column())
	assert.NoError(t, f.state().Validate())

	close(gateA)
	require.NoError(t, <-doneA)
	assert.Equal(t, []string{tempB, tempC, "perm-A", "4"}, column())

	close(gateB)
	assert.Error(t, <-doneB)
	assert.Equal(t, []string{tempC, "perm-A", "4"}, column())
	assert.Contains(t, f.state().Tasks, tempC)
	assert.NotContains(t, f.state().Tasks, tempB)

	close(gateC)
	require.NoError(t, <-doneC)
	s := f.state()
	assert.Equal(t, []string{"perm-C", "perm-A", "4"}, s.Columns["in-progress"].TaskIDs)
	assert.True(t, s.Tasks["3"].Archived())
	for id := range s.Tasks {
		assert.False(t, kanban.IsTempID(id), "temp id left behind: %s", id)
	}
	assert.NoError(t, s.Validate())
}

func TestCreate_FailureRestoresPriorState(t *testing.T) {
	// Arrange
	f := setup(t)
	before := f.state()
	boom := &gateway.Error{Kind: gateway.KindTransport, Op: "create task", Err: errors.New("connection reset")}
	f.gw.On("CreateTask", mock.Anything, mock.Anything).Return(nil, boom)

	// Act
	_, err := f.engine.Create(context.Background(), optimistic.CreateInput{Title: "Doomed", Priority: kanban.PriorityHigh, ColumnID: "in-progress"})

	// Assert
	assert.ErrorIs(t, err, gateway.ErrTransport)
	assert.Equal(t, before, f.state())
	assert.Equal(t, []optimistic.Phase{optimistic.PhaseApplied, optimistic.PhaseRolledBack}, f.phases())
	expected := `
# HELP kanban_optimistic_operations_total Optimistic operations by kind and outcome
# TYPE kanban_optimistic_operations_total counter
kanban_optimistic_operations_total{kind="create",outcome="rolled_back"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(f.reg, strings.NewReader(expected), "kanban_optimistic_operations_total"))
}

func TestCreate_UnknownColumn(t *testing.T) {
	f := setup(t)

	_, err := f.engine.Create(context.Background(), optimistic.CreateInput{Title: "x", Priority: kanban.PriorityLow, ColumnID: "nope"})

	assert.ErrorIs(t, err, optimistic.ErrUnknownColumn)
	f.gw.AssertNotCalled(t, "CreateTask", mock.Anything, mock.Anything)
	assert.Empty(t, f.phases())
}

func TestCreate_PanickingRemoteRollsBack(t *testing.T) {
	f := setup(t)
	before := f.state()
	f.gw.On("CreateTask", mock.Anything, mock.Anything).Run(func(mock.Arguments) { panic("kaboom") }).Return(nil, nil)

	_, err := f.engine.Create(context.Background(), optimistic.CreateInput{Title: "x", Priority: kanban.PriorityLow, ColumnID: "done"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
	assert.Equal(t, before, f.state())
}

func TestCreate_SequentialOrdersIncrease(t *testing.T) {
	f := setup(t)
	for i, id := range []string{"p1", "p2", "p3"} {
		order := float64(1000 * (i + 1))
		f.gw.On("CreateTask", mock.Anything, mock.MatchedBy(func(fields kanban.TaskFields) bool {
			return fields.Order == order
		})).Return(&kanban.Task{ID: id, Title: "t", Priority: kanban.PriorityLow, Order: order, ColumnID: "next-up"}, nil).Once()
	}

	for i := 0; i < 3; i++ {
		_, err := f.engine.Create(context.Background(), optimistic.CreateInput{Title: "t", Priority: kanban.PriorityLow, ColumnID: "next-up"})
		require.NoError(t, err)
	}

	s := f.state()
	assert.Equal(t, []string{"p3", "p2", "p1"}, s.Columns["next-up"].TaskIDs)
	assert.Equal(t, 1000.0, s.Tasks["p1"].Order)
	assert.Equal(t, 2000.0, s.Tasks["p2"].Order)
	assert.Equal(t, 3000.0, s.Tasks["p3"].Order)
	assert.NoError(t, s.Validate())
	f.gw.AssertExpectations(t)
}

func TestArchive_RemovesFromColumnAndRepeatIsNoop(t *testing.T) {
	// Arrange
	f := setup(t)
	f.gw.On("ArchiveTask", mock.Anything, "3").Return(nil).Once()

	// Act
	require.NoError(t, f.engine.Archive(context.Background(), "3"))
	second := f.engine.Archive(context.Background(), "3")

	// Assert
	assert.NoError(t, second)
	s := f.state()
	require.NotNil(t, s.Tasks["3"].ArchivedAt)
	assert.Equal(t, []string{"4"}, s.Columns["in-progress"].TaskIDs)
	assert.NoError(t, s.Validate())
	f.gw.AssertNumberOfCalls(t, "ArchiveTask", 1)
}

func TestArchive_UnknownTaskIsNoop(t *testing.T) {
	f := setup(t)
	before := f.state()

	assert.NoError(t, f.engine.Archive(context.Background(), "missing"))

	assert.Equal(t, before, f.state())
	f.gw.AssertNotCalled(t, "ArchiveTask", mock.Anything, mock.Anything)
}

func TestArchive_FailureRestoresTaskAtHead(t *testing.T) {
	// Arrange
	f := setup(t)
	f.gw.On("ArchiveTask", mock.Anything, "4").Return(&gateway.Error{Kind: gateway.KindValidation, Op: "archive task", Status: 400})

	// Act
	err := f.engine.Archive(context.Background(), "4")

	// Assert
	assert.ErrorIs(t, err, gateway.ErrValidation)
	s := f.state()
	assert.Nil(t, s.Tasks["4"].ArchivedAt)
	assert.Equal(t, []string{"4", "3"}, s.Columns["in-progress"].TaskIDs)
	assert.NoError(t, s.Validate())
}

func TestArchive_IgnoresCallerCancellation(t *testing.T) {
	f := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	f.gw.On("ArchiveTask", mock.Anything, "5").Run(func(args mock.Arguments) {
		cancel()
		assert.NoError(t, args.Get(0).(context.Context).Err())
	}).Return(nil)

	require.NoError(t, f.engine.Archive(ctx, "5"))

	assert.NotNil(t, f.state().Tasks["5"].ArchivedAt)
}

func TestMove_BetweenColumns(t *testing.T) {
	// Arrange
	f := setup(t)
	stored := &kanban.Task{ID: "4", Title: "Front-end Development", Priority: kanban.PriorityHigh, Order: 500, ColumnID: "done"}
	f.gw.On("MoveTask", mock.Anything, "4", "done", 0.0).Return(stored, nil)

	// Act: below task 5 (order 1000) at the bottom.
	task, err := f.engine.Move(context.Background(), optimistic.MoveInput{TaskID: "4", ToColumnID: "done", Index: 5})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "done", task.ColumnID)
	s := f.state()
	assert.Equal(t, []string{"3"}, s.Columns["in-progress"].TaskIDs)
	assert.Equal(t, []string{"5", "4"}, s.Columns["done"].TaskIDs)
	assert.Equal(t, 500.0, s.Tasks["4"].Order)
	assert.Equal(t, "done", s.Tasks["4"].ColumnID)
	assert.NoError(t, s.Validate())
}

func TestMove_ComputesMidpoint(t *testing.T) {
	f := setup(t)
	f.gw.On("MoveTask", mock.Anything, "5", "in-progress", 1500.0).Return(&kanban.Task{ID: "5", Order: 1500, ColumnID: "in-progress"}, nil)

	_, err := f.engine.Move(context.Background(), optimistic.MoveInput{TaskID: "5", ToColumnID: "in-progress", Index: 1})

	require.NoError(t, err)
	assert.Equal(t, []string{"3", "5", "4"}, f.state().Columns["in-progress"].TaskIDs)
	assert.Equal(t, 1500.0, f.state().Tasks["5"].Order)
}

func TestMove_FailureRestoresPosition(t *testing.T) {
	f := setup(t)
	before := f.state()
	f.gw.On("MoveTask", mock.Anything, "3", "next-up", 1000.0).Return(nil, &gateway.Error{Kind: gateway.KindNotFound, Op: "move task", Status: 404})

	_, err := f.engine.Move(context.Background(), optimistic.MoveInput{TaskID: "3", ToColumnID: "next-up", Index: 0})

	assert.ErrorIs(t, err, gateway.ErrNotFound)
	assert.Equal(t, before, f.state())
}

func TestMove_SamePositionIsNoop(t *testing.T) {
	f := setup(t)

	_, err := f.engine.Move(context.Background(), optimistic.MoveInput{TaskID: "4", ToColumnID: "in-progress", Index: 1})

	assert.NoError(t, err)
	f.gw.AssertNotCalled(t, "MoveTask", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSameTaskOperationsAreSerialized(t *testing.T) {
	// Arrange: the archive holds task 3 until gate closes.
	f := setup(t)
	gate := make(chan struct{})
	f.gw.On("ArchiveTask", mock.Anything, "3").Run(func(mock.Arguments) { <-gate }).Return(nil)
	archived := make(chan error, 1)
	moved := make(chan error, 1)

	// Act
	go func() { archived <- f.engine.Archive(context.Background(), "3") }()
	require.Eventually(t, func() bool { return f.state().Tasks["3"].Archived() }, time.Second, 5*time.Millisecond)
	go func() {
		_, err := f.engine.Move(context.Background(), optimistic.MoveInput{TaskID: "3", ToColumnID: "done", Index: 0})
		moved <- err
	}()
	time.Sleep(20 * time.Millisecond)
	close(gate)

	// Assert: the move waited, then saw an archived task and did nothing.
	require.NoError(t, <-archived)
	require.NoError(t, <-moved)
	f.gw.AssertNotCalled(t, "MoveTask", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.NoError(t, f.state().Validate())
}

func TestDifferentTasksInterleave(t *testing.T) {
	f := setup(t)
	gate := make(chan struct{})
	f.gw.On("ArchiveTask", mock.Anything, "3").Run(func(mock.Arguments) { <-gate }).Return(errors.New("offline"))
	f.gw.On("ArchiveTask", mock.Anything, "5").Return(nil)
	slow := make(chan error, 1)

	go func() { slow <- f.engine.Archive(context.Background(), "3") }()
	require.Eventually(t, func() bool { return f.state().Tasks["3"].Archived() }, time.Second, 5*time.Millisecond)
	require.NoError(t, f.engine.Archive(context.Background(), "5"))
	close(gate)

	assert.Error(t, <-slow)
	s := f.state()
	assert.Nil(t, s.Tasks["3"].ArchivedAt)
	assert.NotNil(t, s.Tasks["5"].ArchivedAt)
	assert.Empty(t, s.Columns["done"].TaskIDs)
	assert.Equal(t, []string{"3", "4"}, s.Columns["in-progress"].TaskIDs)
	assert.NoError(t, s.Validate())
}

func TestBackgroundFetchCannotOverwritePendingState(t *testing.T) {
	f := setup(t)
	gate := make(chan struct{})
	f.gw.On("ArchiveTask", mock.Anything, "4").Run(func(mock.Arguments) { <-gate }).Return(nil)
	f.gw.On("FetchBoardState", mock.Anything).Return(sampleState(), nil)
	done := make(chan error, 1)

	go func() { done <- f.engine.Archive(context.Background(), "4") }()
	require.Eventually(t, func() bool { return f.state().Tasks["4"].Archived() }, time.Second, 5*time.Millisecond)
	require.NoError(t, f.cache.Revalidate(context.Background()))

	assert.True(t, f.state().Tasks["4"].Archived())
	close(gate)
	require.NoError(t, <-done)
}
