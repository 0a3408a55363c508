package game

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/mosspond/wildspawn/pkg/chat"
	"github.com/mosspond/wildspawn/pkg/critter"
	"github.com/mosspond/wildspawn/pkg/events"
	"github.com/mosspond/wildspawn/pkg/inventory"
	"github.com/mosspond/wildspawn/pkg/species"
)

// Card accent colors.
const (
	spawnColor = 0x00AE86
	showColor  = 0xC00000
)

// registerCommands populates the command table. Registration order is match
// priority.
func (g *Game) registerCommands() {
	d := g.Dispatcher
	d.Register("help", g.cmdHelp)
	d.Register("spawn", g.cmdSpawn)
	d.Register("box", g.cmdBox)
	d.Register("team", g.cmdTeam)
	d.Register("show", g.cmdShow)
	d.Register("start training", g.cmdStartTraining)
	d.Register("stop training", g.cmdStopTraining)
	d.Register("withdraw", g.cmdWithdraw)
	d.Register("deposit", g.cmdDeposit)
	d.Register("trade", g.cmdTrade)
	d.Register("start spawner", g.cmdStartSpawner)
	d.Register("stop spawner", g.cmdStopSpawner)
	d.Register("history", g.cmdHistory)
	d.Register("shutdown", g.cmdShutdown)
}

// cmdHelp prints the command summary.
func (g *Game) cmdHelp(_ context.Context, msg chat.Message, _ string) {
	g.notice(msg.Channel, g.helpText())
}

// cmdSpawn spawns a creature by name, or a random one.
func (g *Game) cmdSpawn(ctx context.Context, msg chat.Message, args string) {
	g.RunEncounter(ctx, msg.Channel, args)
}

// RunEncounter announces a spawn in the channel and waits for the first
// "catch <name>" reply. On a catch the record is inserted for the catcher;
// on timeout the creature escapes. Used by the spawn command and the
// spawner loop.
func (g *Game) RunEncounter(ctx context.Context, channel, name string) {
	var rec *critter.Record
	if name != "" {
		var err error
		rec, err = critter.SpawnByName(g.Catalog, name)
		if err != nil {
			text := fmt.Sprintf("No species named %q.", name)
			if s := g.Catalog.Suggest(name); s != "" {
				text += fmt.Sprintf(" Did you mean %s?", s)
			}
			g.notice(channel, text)
			return
		}
	} else {
		rec = critter.SpawnRandom(g.Catalog)
	}
	log.Printf("game: spawning %s in %s", rec.Name, channel)

	g.Bus.Emit(events.Event{
		Type:    events.EvSpawn,
		Channel: channel,
		Text:    fmt.Sprintf("A wild %s has appeared!", rec.Name),
		Card: &events.Card{
			Title:       fmt.Sprintf("A wild %s has appeared!", rec.Name),
			Description: fmt.Sprintf("Type 'catch %s' before it escapes.", rec.Name),
			Color:       spawnColor,
			ImageURL:    species.ImageURL(rec.SpeciesID),
		},
	})

	want := "catch " + rec.Name
	reply, err := g.Waits.Await(ctx, Scope{Channel: channel},
		func(m chat.Message) bool { return m.Text == want }, g.Conf.CatchWait())
	if err != nil {
		if errors.Is(err, ErrTimedOut) {
			g.Bus.Emit(events.Event{
				Type: events.EvEscape, Channel: channel,
				Text: fmt.Sprintf("%s escaped.", rec.Name),
			})
		}
		return
	}

	rec.Owner = reply.Author
	loc, err := g.Rules.Catch(rec)
	if err != nil {
		log.Printf("game: catch by %s failed: %v", reply.Author, err)
		g.notice(channel, "Something went wrong storing your catch.")
		return
	}
	text := fmt.Sprintf("Congratulations! @%s caught %s.", reply.Author, rec.Name)
	if loc == critter.Box {
		text += "\nIt was added to your storage."
	}
	g.Bus.Emit(events.Event{
		Type: events.EvCatch, Channel: channel, Source: reply.Author, Text: text,
	})
}

// cmdBox lists the sender's stored creatures.
func (g *Game) cmdBox(_ context.Context, msg chat.Message, _ string) {
	recs, err := g.Rules.Box(msg.Author)
	if err != nil {
		g.failNotice(msg.Channel, "box", err)
		return
	}
	if len(recs) == 0 {
		g.notice(msg.Channel, "Your box is empty.")
		return
	}
	g.notice(msg.Channel, "Your box:\n"+formatRecords(recs))
}

// cmdTeam lists the sender's team.
func (g *Game) cmdTeam(_ context.Context, msg chat.Message, _ string) {
	recs, err := g.Rules.Team(msg.Author)
	if err != nil {
		g.failNotice(msg.Channel, "team", err)
		return
	}
	if len(recs) == 0 {
		g.notice(msg.Channel, "Your team is empty.")
		return
	}
	g.notice(msg.Channel, "Your team:\n"+formatRecords(recs))
}

// cmdShow displays one team member as a card. Defaults to the first slot.
func (g *Game) cmdShow(_ context.Context, msg chat.Message, args string) {
	index := 1
	if args != "" {
		n, err := strconv.Atoi(args)
		if err != nil {
			g.notice(msg.Channel, "Usage: show [index]")
			return
		}
		index = n
	}
	team, err := g.Rules.Team(msg.Author)
	if err != nil {
		g.failNotice(msg.Channel, "show", err)
		return
	}
	if index < 1 || index > len(team) {
		g.notice(msg.Channel, fmt.Sprintf("You have no team member at slot %d.", index))
		return
	}
	rec := team[index-1]
	desc := fmt.Sprintf("Exp: %d", rec.Exp)
	if data, ok := g.Catalog.ByID(rec.SpeciesID); ok && len(data.Types) > 0 {
		desc = fmt.Sprintf("Type: %s · Exp: %d", strings.Join(data.Types, " "), rec.Exp)
	}
	g.Bus.Emit(events.Event{
		Type:    events.EvShow,
		Channel: msg.Channel,
		Source:  msg.Author,
		Card: &events.Card{
			Title:       fmt.Sprintf("%s lv. %d", rec.Name, rec.Level),
			Description: desc,
			Color:       showColor,
			ImageURL:    species.ImageURL(rec.SpeciesID),
		},
	})
}

// cmdStartTraining starts the sender's training timer.
func (g *Game) cmdStartTraining(_ context.Context, msg chat.Message, _ string) {
	if err := g.Tasks.StartTraining(msg.Author, msg.Channel); err != nil {
		g.notice(msg.Channel, "You are already training.")
		return
	}
	g.notice(msg.Channel, "Training started.")
}

// cmdStopTraining triggers early completion; the result notification comes
// from the training task itself.
func (g *Game) cmdStopTraining(_ context.Context, msg chat.Message, _ string) {
	g.Tasks.StopTraining(msg.Author)
}

// cmdWithdraw moves a box creature into the team.
func (g *Game) cmdWithdraw(_ context.Context, msg chat.Message, args string) {
	if args == "" {
		g.notice(msg.Channel, "Usage: withdraw <name>")
		return
	}
	rec, err := g.Rules.Withdraw(msg.Author, args)
	switch {
	case errors.Is(err, inventory.ErrTeamFull):
		g.notice(msg.Channel, "Your team is full.")
	case errors.Is(err, inventory.ErrNotFound):
		g.notice(msg.Channel, fmt.Sprintf("%s is not in your box.", args))
	case err != nil:
		g.failNotice(msg.Channel, "withdraw", err)
	default:
		g.notice(msg.Channel, fmt.Sprintf("%s withdrawn.", rec.Name))
	}
}

// cmdDeposit moves a team creature into the box.
func (g *Game) cmdDeposit(_ context.Context, msg chat.Message, args string) {
	if args == "" {
		g.notice(msg.Channel, "Usage: deposit <name>")
		return
	}
	rec, err := g.Rules.Deposit(msg.Author, args)
	switch {
	case errors.Is(err, inventory.ErrNotFound):
		g.notice(msg.Channel, fmt.Sprintf("%s is not in your team.", args))
	case err != nil:
		g.failNotice(msg.Channel, "deposit", err)
	default:
		g.notice(msg.Channel, fmt.Sprintf("%s sent to box.", rec.Name))
	}
}

// cmdTrade runs the two-party trade handshake: invitation, scoped wait for
// the buyer's offer, finalize with re-validation.
func (g *Game) cmdTrade(ctx context.Context, msg chat.Message, args string) {
	seller := msg.Author
	if len(msg.Mentions) == 0 {
		g.notice(msg.Channel, "Usage: trade <name> @buyer")
		return
	}
	buyer := msg.Mentions[0]
	name := stripMentions(args)
	if name == "" {
		g.notice(msg.Channel, "Usage: trade <name> @buyer")
		return
	}
	if buyer == seller {
		g.notice(msg.Channel, "You cannot trade with yourself.")
		return
	}
	if _, err := g.Store.FindByOwnerAndName(seller, name, critter.Team); err != nil {
		g.notice(msg.Channel, fmt.Sprintf("%s is not in your team.", name))
		return
	}

	g.notice(msg.Channel, fmt.Sprintf(
		"@%s, %s invites you to trade and offers %s.\nEnter '%soffer @%s <name>' to trade.",
		buyer, seller, name, g.Conf.CommandPrefix, seller))

	offerPrefix := g.Conf.CommandPrefix + "offer @" + seller
	reply, err := g.Waits.Await(ctx, Scope{Channel: msg.Channel, Author: buyer},
		func(m chat.Message) bool { return strings.HasPrefix(m.Text, offerPrefix) },
		g.Conf.TradeWait())
	if err != nil {
		if errors.Is(err, ErrTimedOut) {
			g.notice(msg.Channel, "Trade cancelled.")
		}
		return
	}

	offered := strings.TrimSpace(strings.TrimPrefix(reply.Text, offerPrefix))
	if _, ok := g.Catalog.ByName(offered); !ok {
		g.notice(msg.Channel, fmt.Sprintf("No species named %q. Trade cancelled.", offered))
		return
	}

	sRec, bRec, err := g.Rules.Trade(seller, name, buyer, offered)
	if err != nil {
		log.Printf("game: trade %s<->%s aborted: %v", seller, buyer, err)
		g.notice(msg.Channel, "Trade cancelled.")
		return
	}
	g.Bus.Emit(events.Event{
		Type: events.EvTrade, Channel: msg.Channel, Source: seller,
		Text: fmt.Sprintf("Trade completed. @%s received %s, @%s received %s.",
			seller, bRec.Name, buyer, sRec.Name),
	})
}

// cmdStartSpawner starts the channel's recurring spawn loop.
func (g *Game) cmdStartSpawner(_ context.Context, msg chat.Message, _ string) {
	if err := g.Tasks.StartSpawner(msg.Channel); err != nil {
		g.notice(msg.Channel, "Spawner is already running.")
		return
	}
	g.notice(msg.Channel, "Spawner started.")
}

// cmdStopSpawner cancels the channel's spawn loop.
func (g *Game) cmdStopSpawner(_ context.Context, msg chat.Message, _ string) {
	if g.Tasks.StopSpawner(msg.Channel) {
		g.notice(msg.Channel, "Spawner stopped.")
	}
}

// cmdHistory shows the sender's recent activity from the ledger.
func (g *Game) cmdHistory(_ context.Context, msg chat.Message, _ string) {
	if g.Ledger == nil {
		g.notice(msg.Channel, "History is not available.")
		return
	}
	entries, err := g.Ledger.RecentByActor(msg.Author, 10)
	if err != nil {
		g.failNotice(msg.Channel, "history", err)
		return
	}
	if len(entries) == 0 {
		g.notice(msg.Channel, "No recorded activity yet.")
		return
	}
	var b strings.Builder
	b.WriteString("Your recent activity:\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "- [%s] %s\n", e.Kind, e.Detail)
	}
	g.notice(msg.Channel, strings.TrimRight(b.String(), "\n"))
}

// cmdShutdown announces and requests process shutdown.
func (g *Game) cmdShutdown(_ context.Context, msg chat.Message, _ string) {
	g.Bus.Emit(events.Event{
		Type: events.EvShutdown, Channel: msg.Channel, Source: msg.Author,
		Text: "Shutting down.",
	})
	g.Shutdown()
}

// failNotice logs an internal error and tells the user without surfacing
// details.
func (g *Game) failNotice(channel, op string, err error) {
	log.Printf("game: %s: %v", op, err)
	g.notice(channel, "Something went wrong. Try again later.")
}

// formatRecords renders a record list, one bolded name per line.
func formatRecords(recs []*critter.Record) string {
	lines := make([]string, 0, len(recs))
	for _, r := range recs {
		lines = append(lines, fmt.Sprintf("- **%s** lv. %d", r.Name, r.Level))
	}
	return strings.Join(lines, "\n")
}

// stripMentions drops @-tokens from a command argument, leaving the
// creature name.
func stripMentions(args string) string {
	var kept []string
	for _, tok := range strings.Fields(args) {
		if strings.HasPrefix(tok, "@") {
			continue
		}
		kept = append(kept, tok)
	}
	return strings.Join(kept, " ")
}
