package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/healthlab-css/glowup-mrt/internal/auth"
	"github.com/healthlab-css/glowup-mrt/internal/blob"
	"github.com/healthlab-css/glowup-mrt/internal/dispatch"
	"github.com/healthlab-css/glowup-mrt/internal/journal"
	"github.com/healthlab-css/glowup-mrt/internal/notify"
	"github.com/healthlab-css/glowup-mrt/internal/tasks"
)

// printTransport reports instead of sending; backs --dry-run.
type printTransport struct{ out io.Writer }

func (p printTransport) Send(_ context.Context, participantID, messageID string) error {
	fmt.Fprintf(p.out, "would send %s to %s\n", messageID, participantID)
	return nil
}

// readOnlyStore discards writes so a dry run leaves the logs untouched.
type readOnlyStore struct{ blob.ObjectStore }

func (readOnlyStore) Put(context.Context, string, []byte) error { return nil }

func runDispatch(ctx context.Context, dryRun bool, out io.Writer) error {
	store, cfg, err := openStore()
	if err != nil {
		return err
	}

	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	var transport dispatch.Transport
	var checker dispatch.CompletionChecker
	if dryRun {
		store = readOnlyStore{store}
		transport = printTransport{out: out}
	} else {
		tokens, err := auth.NewServiceTokenSource(cfg.TokenURL, cfg.ServiceAccount, cfg.PrivateKey)
		if err != nil {
			return err
		}
		transport = notify.NewPushClient(cfg.APIBaseURL, cfg.ProjectID, tokens)
		if cfg.CompletionCheckEnabled {
			checker = tasks.New(cfg.APIBaseURL, cfg.ProjectID, tokens, log)
		}
	}

	sum, err := dispatch.New(journal.New(store), transport, checker, log).Dispatch(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "total=%d already_sent=%d future=%d sent_now=%d skipped=%d\n",
		sum.Total, sum.AlreadySent, sum.Future, sum.SentNow, sum.Skipped)
	return nil
}
