package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"poolconnect/internal/config"
	"poolconnect/internal/device"
	"poolconnect/internal/engine"
	"poolconnect/internal/logger"
	"poolconnect/internal/models"
	"poolconnect/internal/repository"
	"poolconnect/internal/repository/db"
	"poolconnect/internal/server"
	"poolconnect/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func pumpHour() models.TimerDefinition {
	return models.TimerDefinition{
		ID:        1,
		Name:      "Filtration",
		Enabled:   true,
		Days:      [7]bool{true, true, true, true, true, true, true},
		StartTime: models.StartTime{Kind: models.StartFixed},
		Actions: []models.Action{
			{Kind: models.ActionRelay, Relay: &models.RelayParams{Index: models.RelayPump, On: true}},
			{Kind: models.ActionWait, Wait: &models.WaitParams{Minutes: 60}},
		},
	}
}

func newRunningPump(t *testing.T) (*device.Simulator, *engine.Scheduler) {
	t.Helper()
	board := device.NewSimulator(device.Config{}, logger.Nop())
	sched := engine.New(board)
	sched.Load([]models.TimerDefinition{pumpHour()})
	sched.Tick(context.Background(), time.Now())
	require.True(t, board.Relays()[models.RelayPump], "pump should run after the first tick")
	return board, sched
}

func TestShutdown_ReleasesOnlyAfterTickLoopReturns(t *testing.T) {
	board, sched := newRunningPump(t)

	schedDone := make(chan struct{})
	returned := make(chan error, 1)
	go func() { returned <- shutdown(&server.Server{}, sched, schedDone, logger.Nop()) }()

	select {
	case <-returned:
		t.Fatal("shutdown returned while the tick loop was still running")
	case <-time.After(50 * time.Millisecond):
	}
	assert.True(t, board.Relays()[models.RelayPump], "relays must stay untouched until the loop stops")

	close(schedDone)
	select {
	case err := <-returned:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("shutdown did not return after the tick loop stopped")
	}
	assert.False(t, board.Relays()[models.RelayPump])
}

func TestShutdown_NoTickAfterRelease(t *testing.T) {
	board, sched := newRunningPump(t)

	ctx, cancel := context.WithCancel(context.Background())
	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		sched.Run(ctx, 5*time.Millisecond)
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	require.NoError(t, shutdown(&server.Server{}, sched, schedDone, logger.Nop()))

	select {
	case <-schedDone:
	default:
		t.Fatal("shutdown returned before the tick loop stopped")
	}
	time.Sleep(30 * time.Millisecond)
	assert.False(t, board.Relays()[models.RelayPump])
	st, ok := sched.Status(1)
	require.True(t, ok)
	assert.Equal(t, models.StateInactive, st.Context.State)
}

func TestLoadTimers_LogsLoadedCountOnce(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := &logger.Logger{SugaredLogger: zap.New(core).Sugar()}

	conn, err := db.InitDB(filepath.Join(t.TempDir(), "pool.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	repos := repository.NewRepository(conn)
	_, err = repos.TimerRepo.Create(context.Background(), pumpHour())
	require.NoError(t, err)

	board := device.NewSimulator(device.Config{}, logger.Nop())
	sched := engine.New(board, engine.WithLogger(log.Named("scheduler")))
	services := service.NewService(repos, sched, board, log)

	require.NoError(t, loadTimers(context.Background(), config.Config{}, services, sched, log))

	loaded := logs.FilterMessage("timers_loaded").All()
	require.Len(t, loaded, 1)
	assert.EqualValues(t, 1, loaded[0].ContextMap()["count"])
	assert.Len(t, sched.Directory(), 1)
}
