package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/quorumhq/quorum/agent"
	"github.com/quorumhq/quorum/llm"
	"github.com/quorumhq/quorum/types"
)

func newTestScheduler(env *testEnv, config DebateConfig) *DebateScheduler {
	return NewDebateScheduler(env.store, env.registry, env.prompts, nil, config, nil)
}

// turn runs one scheduled turn against a fresh snapshot.
func runOneTurn(t *testing.T, env *testEnv, s *DebateScheduler, convID string) {
	t.Helper()
	snap := env.snapshot(t, convID)
	require.NoError(t, s.runTurn(context.Background(), snap))
}

func TestDebateRoundRobinRotation(t *testing.T) {
	env := newTestEnv(t)
	s := newTestScheduler(env, DefaultDebateConfig())
	convID := env.newDebateConv(t, "tabs vs spaces")

	for i := 0; i < 4; i++ {
		runOneTurn(t, env, s, convID)
	}

	responses := env.messagesOfType(t, convID, types.TypeBotResponse)
	require.Len(t, responses, 4)
	assert.Equal(t, "alpha", responses[0].BotID)
	assert.Equal(t, "beta", responses[1].BotID)
	assert.Equal(t, "alpha", responses[2].BotID)
	assert.Equal(t, "beta", responses[3].BotID)

	snap := env.snapshot(t, convID)
	assert.Equal(t, 2, snap.DebateRound)
}

func TestDebateRotationLaw(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		k := rapid.IntRange(1, 5).Draw(t, "participants")
		turns := rapid.IntRange(1, 12).Draw(t, "turns")

		mod := agent.New(types.AgentSpec{ID: "moderator", Name: "Moderator", Model: "mod-model"}, &scriptedClient{}, nil)
		registry := agent.NewRegistry(mod, nil)
		participants := make([]string, k)
		for i := range participants {
			id := fmt.Sprintf("bot-%d", i)
			b := agent.New(types.AgentSpec{ID: id, Name: id, Model: id + "-model"}, &scriptedClient{}, nil)
			require.NoError(t, registry.AddBot(b))
			participants[i] = id
		}

		store := NewStore(nil, nil)
		s := NewDebateScheduler(store, registry, NewPromptBuilder(0, nil), nil, DefaultDebateConfig(), nil)
		conv, _ := store.Create(context.Background(), "", "user-1", "topic", true, participants)

		for i := 0; i < turns; i++ {
			snap, ok := store.Snapshot(conv.ID)
			require.True(t, ok)
			require.NoError(t, s.runTurn(context.Background(), snap))
		}

		snap, _ := store.Snapshot(conv.ID)
		var n int
		for _, m := range snap.Messages {
			if m.Type != types.TypeBotResponse {
				continue
			}
			require.Equal(t, participants[n%k], m.BotID)
			n++
		}
		require.Equal(t, turns, n)
		require.Equal(t, (turns+k-1)/k, snap.DebateRound)
	})
}

func TestDebateRoundAdvancesAtRotationBoundary(t *testing.T) {
	env := newTestEnv(t)
	s := newTestScheduler(env, DefaultDebateConfig())
	convID := env.newDebateConv(t, "topic")

	wantRounds := []int{1, 1, 2, 2, 3}
	for _, want := range wantRounds {
		runOneTurn(t, env, s, convID)
		assert.Equal(t, want, env.snapshot(t, convID).DebateRound)
	}
}

func TestDebateOpeningTurnHasNoContext(t *testing.T) {
	env := newTestEnv(t)
	s := newTestScheduler(env, DefaultDebateConfig())
	convID := env.newDebateConv(t, "topic")

	runOneTurn(t, env, s, convID)
	require.Equal(t, 1, env.alpha.callCount())
	assert.Contains(t, env.alpha.calls[0].Prompt, "opening the debate")

	runOneTurn(t, env, s, convID)
	require.Equal(t, 1, env.beta.callCount())
	assert.Contains(t, env.beta.calls[0].Prompt, "Alpha (alpha-model): alpha findings")
}

func TestDebateContextWindowBounded(t *testing.T) {
	env := newTestEnv(t)
	env.alpha.replies = []string{"a1", "a2", "a3"}
	env.beta.replies = []string{"b1", "b2"}
	s := newTestScheduler(env, DebateConfig{TurnDelay: time.Second, ContextWindow: 2})
	convID := env.newDebateConv(t, "topic")

	for i := 0; i < 5; i++ {
		runOneTurn(t, env, s, convID)
	}

	// Turn five sees only the two most recent contributions.
	last := env.alpha.calls[env.alpha.callCount()-1]
	assert.Contains(t, last.Prompt, "Alpha (alpha-model): a2")
	assert.Contains(t, last.Prompt, "Beta (beta-model): b2")
	assert.NotContains(t, last.Prompt, "b1")
}

func TestDebateTurnFailureRecordsSystemMessage(t *testing.T) {
	env := newTestEnv(t)
	env.alpha.err = errors.New("provider down")
	s := newTestScheduler(env, DefaultDebateConfig())
	convID := env.newDebateConv(t, "topic")

	runOneTurn(t, env, s, convID)

	assert.Empty(t, env.messagesOfType(t, convID, types.TypeBotResponse))
	system := env.messagesOfType(t, convID, types.TypeSystemMessage)
	require.Len(t, system, 1)
	assert.Contains(t, system[0].Content, "Alpha missed their turn")
	assert.Equal(t, types.StatusDebating, env.snapshot(t, convID).Status)
}

func TestDebateStopIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	s := newTestScheduler(env, DefaultDebateConfig())
	convID := env.newDebateConv(t, "topic")
	ctx := context.Background()

	require.NoError(t, s.Stop(ctx, convID))
	snap := env.snapshot(t, convID)
	assert.Equal(t, types.StatusStopped, snap.Status)
	assert.Equal(t, "debate stopped", snap.CurrentPhase)

	require.NoError(t, s.Stop(ctx, convID))
	system := env.messagesOfType(t, convID, types.TypeSystemMessage)
	assert.Len(t, system, 1, "stopping twice must not duplicate the notice")
}

func TestDebateStopDuringTurnReleasesTimer(t *testing.T) {
	mod := agent.New(types.AgentSpec{ID: "moderator", Name: "Moderator", Model: "mod-model"}, &scriptedClient{}, nil)
	registry := agent.NewRegistry(mod, nil)

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	slow := llm.ClientFunc(func(_ context.Context, _ *llm.GenerateRequest) (*llm.GenerateResult, error) {
		once.Do(func() { close(started) })
		<-release
		return &llm.GenerateResult{Text: "late reply"}, nil
	})
	require.NoError(t, registry.AddBot(agent.New(types.AgentSpec{ID: "alpha", Name: "Alpha", Model: "alpha-model"}, slow, nil)))

	store := NewStore(nil, nil)
	s := NewDebateScheduler(store, registry, NewPromptBuilder(0, nil), nil, DebateConfig{TurnDelay: 5 * time.Millisecond, ContextWindow: 6}, nil)
	conv, _ := store.Create(context.Background(), "", "user-1", "topic", true, []string{"alpha"})
	ctx := context.Background()

	s.Start(ctx, conv.ID)
	<-started
	require.NoError(t, s.Stop(ctx, conv.ID))
	close(release)

	// The in-flight turn completes and appends its reply, but the loop
	// must not re-arm and no timer entry may linger.
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.timers) == 0
	}, 2*time.Second, 5*time.Millisecond)

	snap, _ := store.Snapshot(conv.ID)
	assert.Equal(t, types.StatusStopped, snap.Status)
	assert.Equal(t, 1, snap.BotResponseCount())
}

func TestDebateStopConcurrent(t *testing.T) {
	env := newTestEnv(t)
	s := newTestScheduler(env, DefaultDebateConfig())
	convID := env.newDebateConv(t, "topic")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Stop(ctx, convID))
		}()
	}
	wg.Wait()

	assert.Equal(t, types.StatusStopped, env.snapshot(t, convID).Status)
	system := env.messagesOfType(t, convID, types.TypeSystemMessage)
	assert.Len(t, system, 1, "racing stops must not duplicate the notice")
}

func TestDebateStopUnknownConversation(t *testing.T) {
	env := newTestEnv(t)
	s := newTestScheduler(env, DefaultDebateConfig())
	err := s.Stop(context.Background(), "missing")
	assert.True(t, types.IsCode(err, types.ErrConversationNotFound))
}

func TestDebateResumeContinuesRotation(t *testing.T) {
	env := newTestEnv(t)
	s := newTestScheduler(env, DebateConfig{TurnDelay: 5 * time.Millisecond, ContextWindow: 6})
	convID := env.newDebateConv(t, "topic")
	ctx := context.Background()

	runOneTurn(t, env, s, convID)
	require.NoError(t, s.Stop(ctx, convID))

	err := s.Resume(ctx, convID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusDebating, env.snapshot(t, convID).Status)

	require.Eventually(t, func() bool {
		return env.snapshot(t, convID).BotResponseCount() >= 2
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop(ctx, convID))

	responses := env.messagesOfType(t, convID, types.TypeBotResponse)
	assert.Equal(t, "beta", responses[1].BotID, "rotation picks up where it left off")
}

func TestDebateResumeRequiresStopped(t *testing.T) {
	env := newTestEnv(t)
	s := newTestScheduler(env, DefaultDebateConfig())
	convID := env.newDebateConv(t, "topic")

	err := s.Resume(context.Background(), convID)
	assert.True(t, types.IsCode(err, types.ErrInvalidStatus))
}

func TestDebateSchedulerTimerLoop(t *testing.T) {
	env := newTestEnv(t)
	s := newTestScheduler(env, DebateConfig{TurnDelay: 5 * time.Millisecond, ContextWindow: 6})
	convID := env.newDebateConv(t, "topic")
	ctx := context.Background()

	s.Start(ctx, convID)
	require.Eventually(t, func() bool {
		return env.snapshot(t, convID).BotResponseCount() >= 3
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, s.Stop(ctx, convID))
	assert.Equal(t, types.StatusStopped, env.snapshot(t, convID).Status)
}

func TestDebateConclude(t *testing.T) {
	env := newTestEnv(t)
	env.moderator.replies = []string{"BALANCED SUMMARY"}
	s := newTestScheduler(env, DefaultDebateConfig())
	convID := env.newDebateConv(t, "topic")

	runOneTurn(t, env, s, convID)
	runOneTurn(t, env, s, convID)

	text, err := s.Conclude(context.Background(), convID)
	require.NoError(t, err)
	assert.Equal(t, "BALANCED SUMMARY", text)

	snap := env.snapshot(t, convID)
	assert.Equal(t, types.StatusCompleted, snap.Status)
	reports := env.messagesOfType(t, convID, types.TypeFinalReport)
	require.Len(t, reports, 1)
	assert.Equal(t, "BALANCED SUMMARY", reports[0].Content)
}

func TestDebateConcludeModeratorFailure(t *testing.T) {
	env := newTestEnv(t)
	env.moderator.err = errors.New("model unavailable")
	s := newTestScheduler(env, DefaultDebateConfig())
	convID := env.newDebateConv(t, "topic")

	_, err := s.Conclude(context.Background(), convID)
	require.Error(t, err)
	system := env.messagesOfType(t, convID, types.TypeSystemMessage)
	require.Len(t, system, 1)
	assert.Contains(t, system[0].Content, "debate summary could not be generated")
}
