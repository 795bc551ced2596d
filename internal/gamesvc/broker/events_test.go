package broker

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/avvvet/codebreak-services/internal/comm"
	"github.com/avvvet/codebreak-services/internal/gamesvc/codegen"
	"github.com/avvvet/codebreak-services/internal/gamesvc/service"
	"github.com/avvvet/codebreak-services/internal/gamesvc/store"
)

func TestEventsFollowRoundLifecycle(t *testing.T) {
	ctx := context.Background()
	conn := &fakeConn{}
	events := &Events{pub: conn}

	rules := service.DefaultRules()
	rules.WinnerQuota = 1
	opts := []service.Option{service.WithRules(rules), service.WithNotifier(events)}

	s := store.NewMemoryStore()
	rounds := service.NewRoundService(s, opts...)
	codes := service.NewCodeService(s, codegen.New(nil), opts...)
	guesses := service.NewGuessService(s, opts...)

	r, err := rounds.StartRound(ctx)
	require.NoError(t, err)
	_, err = codes.AssignCode(ctx, "alice")
	require.NoError(t, err)

	var code string
	require.NoError(t, s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		uc, err := tx.UserCode(ctx, "alice", r.ID)
		if err == nil {
			code = uc.Code
		}
		return err
	}))
	guess := make([]int, len(code))
	for i := range code {
		guess[i] = int(code[i] - '0')
	}
	_, err = guesses.SubmitGuess(ctx, "alice", guess)
	require.NoError(t, err)

	started := conn.take(t)
	require.Equal(t, comm.GameTopic, started.subject)
	require.Equal(t, comm.TypeRoundStarted, started.msg.Type)

	won := conn.take(t)
	require.Equal(t, comm.TypeWinnerRecorded, won.msg.Type)
	var w comm.WinnerEvent
	require.NoError(t, json.Unmarshal(won.msg.Data, &w))
	require.Equal(t, "alice", w.PlayerID)
	require.Equal(t, 1, w.Rank)
	require.True(t, w.RoundEnd)

	ended := conn.take(t)
	require.Equal(t, comm.TypeRoundEnded, ended.msg.Type)
	var st comm.RoundStatus
	require.NoError(t, json.Unmarshal(ended.msg.Data, &st))
	require.False(t, st.IsActive)
	require.NotNil(t, st.EndedAt)
	require.Equal(t, 1, st.WinnerCount)
}
