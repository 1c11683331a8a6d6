// Command fieldmate is a terminal front end for the FieldMate sign-up flow.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/hana/fieldmate/internal/attempt"
	"github.com/hana/fieldmate/internal/join"
	"github.com/hana/fieldmate/internal/remote"
	"github.com/hana/fieldmate/internal/setting"
	settingrepo "github.com/hana/fieldmate/internal/setting/repo"
	"github.com/hana/fieldmate/internal/user"
	"github.com/hana/fieldmate/internal/withdrawal"
	"github.com/hana/fieldmate/pkg/database"
	"github.com/hana/fieldmate/pkg/utilities"
)

func main() {
	_ = godotenv.Load()

	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()
	sugar := lg.Sugar()

	db, err := database.Open(database.ConfigFromEnv())
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo := settingrepo.NewRepo(db)
	if err := repo.EnsureTable(ctx); err != nil {
		sugar.Fatalf("ensure settings table: %v", err)
	}
	settings := setting.NewService(repo, nil)
	sessions := user.NewSessionService(settings)
	client := remote.NewClient(remote.ConfigFromEnv(), sessions, sugar, nil)

	joinCtl := join.New(client, sessions, attempt.NewLimiter(settings, nil, sugar), nil, sugar)
	defer joinCtl.Close()
	quitCtl := withdrawal.New(client, sessions, sugar)
	defer quitCtl.Close()

	con := newConsole(joinCtl, quitCtl, os.Stdout, sugar)
	unsubscribe := joinCtl.Subscribe(con.watchTimer())
	defer unsubscribe()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); joinCtl.Events().Drain(ctx, con.onEvent) }()
	go func() { defer wg.Done(); quitCtl.Events().Drain(ctx, con.onEvent) }()

	sugar.Infow("fieldmate started", "session", joinCtl.ID())
	con.printf("%s\n", helpText)

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	var ops sync.WaitGroup
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			work, quit := con.dispatch(ctx, line)
			if quit {
				break loop
			}
			if work != nil {
				ops.Add(1)
				go func() { defer ops.Done(); work() }()
			}
		}
	}

	stop()
	ops.Wait()
	joinCtl.Close()
	quitCtl.Close()
	wg.Wait()
	sugar.Info("goodbye")
}
