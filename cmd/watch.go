package cmd

import (
	"context"
	"fmt"

	"gambler/arena/application"
	"gambler/arena/config"
	"gambler/arena/domain/entities"
	"gambler/arena/infrastructure"
	"gambler/arena/infrastructure/ledgerclient"

	log "github.com/sirupsen/logrus"
)

// Watch follows one match as userID and logs every snapshot until ctx is canceled
func Watch(ctx context.Context, matchID, userID string) error {
	cfg := config.Get()
	identity := application.StaticIdentity{UserID: userID, Admin: cfg.IsAdmin(userID)}
	ledger := ledgerclient.New(cfg.LedgerURL, identity, nil)

	natsClient := infrastructure.NewNATSClient(cfg.NATSServers, "arena-watch")
	if err := natsClient.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect change channel: %w", err)
	}
	defer natsClient.Close()

	feed := application.NewChangeFeed(infrastructure.NewNATSChangeChannel(natsClient), cfg.DebounceWindow, nil)
	view := application.NewMatchView(matchID, ledger, identity, feed, func(err error) {
		log.WithFields(log.Fields{
			"matchID": matchID,
			"error":   err,
		}).Error("Match could not be loaded")
	})

	view.Coordinator().OnSnapshot(func(snapshot *entities.MatchSnapshot) {
		state := view.State()
		log.WithFields(log.Fields{
			"matchID":      matchID,
			"status":       snapshot.Match.Status,
			"participants": len(snapshot.Participants),
			"public":       snapshot.Public,
			"canJoin":      state.Permissions.CanJoin,
			"canReady":     state.Permissions.CanReady,
			"canDeclare":   state.Permissions.CanDeclareResult,
		}).Info("Match updated")
	})

	if err := view.Mount(ctx); err != nil {
		return err
	}
	defer view.Unmount()

	<-ctx.Done()
	stats := view.Coordinator().Stats()
	log.WithFields(log.Fields{
		"fetches":   stats.Fetches,
		"skipped":   stats.Skipped,
		"fallbacks": stats.Fallbacks,
		"failures":  stats.Failures,
	}).Info("Stopped watching match")
	return nil
}
