package main

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pterm/pterm"

	"github.com/rickgao/pokerledger/internal/model"
	"github.com/rickgao/pokerledger/internal/reconcile"
	"github.com/rickgao/pokerledger/internal/suggest"
)

func renderSummary(sum reconcile.Summary, hints map[string][]suggest.Suggestion) {
	pterm.DefaultSection.Println("Import " + sum.RunID.String())
	renderTable(summaryRows(sum), false)

	if len(sum.Failures) == 0 {
		pterm.Success.Println("no failures")
		return
	}
	pterm.DefaultSection.WithLevel(2).Println("Failures")
	renderTable(failureRows(sum.Failures, hints), true)
}

func summaryRows(sum reconcile.Summary) pterm.TableData {
	rows := pterm.TableData{
		{"Files processed", strconv.Itoa(sum.FilesProcessed)},
		{"Files failed", strconv.Itoa(sum.FilesFailed)},
	}
	if sum.FilesSkipped > 0 {
		rows = append(rows, []string{"Files skipped", strconv.Itoa(sum.FilesSkipped)})
	}
	rows = append(rows,
		[]string{"Entries added", strconv.Itoa(sum.EntriesAdded)},
		[]string{"Entries skipped", strconv.Itoa(sum.EntriesSkipped)},
		[]string{"Games touched", strconv.Itoa(len(sum.Games))},
		[]string{"Players updated", strconv.Itoa(len(sum.Players))},
		[]string{"Duration", sum.Duration.Round(time.Millisecond).String()},
	)
	return rows
}

func failureRows(failures []reconcile.Failure, hints map[string][]suggest.Suggestion) pterm.TableData {
	rows := pterm.TableData{{"Kind", "File", "Line", "Game", "Detail"}}
	for _, f := range failures {
		line := ""
		if f.Line > 0 {
			line = strconv.Itoa(f.Line)
		}
		detail := f.Message
		if f.Kind == reconcile.KindUnknownPlayer {
			detail = fmt.Sprintf("unknown player %q", f.Player)
			if s := hints[f.Player]; len(s) > 0 {
				detail += ", did you mean " + joinAliases(s) + "?"
			}
		}
		rows = append(rows, []string{string(f.Kind), f.File, line, f.GameKey, detail})
	}
	return rows
}

func renderPlayers(players []model.Player) {
	if len(players) == 0 {
		pterm.Info.Println("no players")
		return
	}
	renderTable(playerRows(players), true)
}

// playerRows lists players by rating, highest first.
func playerRows(players []model.Player) pterm.TableData {
	sorted := append([]model.Player(nil), players...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if c := sorted[i].Rating.Cmp(sorted[j].Rating); c != 0 {
			return c > 0
		}
		return sorted[i].Name < sorted[j].Name
	})

	rows := pterm.TableData{{"Player", "Flag", "Games", "Net", "Rating", "Avg", "Up", "Down", "Best", "Worst"}}
	for _, p := range sorted {
		rows = append(rows, []string{
			p.Name,
			p.Flag,
			strconv.Itoa(p.GamesPlayed),
			p.Net.StringFixed(2),
			p.Rating.StringFixed(2),
			p.AverageNet.StringFixed(2),
			strconv.Itoa(p.GamesUp),
			strconv.Itoa(p.GamesDown),
			p.BiggestWin.StringFixed(2),
			p.BiggestLoss.StringFixed(2),
		})
	}
	return rows
}

func renderAliases(aliases map[string]uuid.UUID, players []model.Player) {
	renderTable(aliasRows(aliases, players), true)
}

func aliasRows(aliases map[string]uuid.UUID, players []model.Player) pterm.TableData {
	names := make(map[uuid.UUID]string, len(players))
	for _, p := range players {
		names[p.ID] = p.Name
	}
	keys := make([]string, 0, len(aliases))
	for k := range aliases {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := pterm.TableData{{"Alias", "Player"}}
	for _, k := range keys {
		name, ok := names[aliases[k]]
		if !ok {
			name = aliases[k].String()
		}
		rows = append(rows, []string{k, name})
	}
	return rows
}

func renderSuggestions(raw string, s []suggest.Suggestion) {
	if len(s) == 0 {
		pterm.Info.Printfln("no known alias resembles %q", raw)
		return
	}
	rows := pterm.TableData{{"Alias", "Distance"}}
	for _, x := range s {
		rows = append(rows, []string{x.Alias, strconv.Itoa(x.Distance)})
	}
	renderTable(rows, true)
}

func renderTable(rows pterm.TableData, header bool) {
	if err := pterm.DefaultTable.WithHasHeader(header).WithData(rows).Render(); err != nil {
		pterm.Error.Println(err)
	}
}

func joinAliases(s []suggest.Suggestion) string {
	out := ""
	for i, x := range s {
		if i > 0 {
			out += " or "
		}
		out += strconv.Quote(x.Alias)
	}
	return out
}
