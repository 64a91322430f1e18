package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/purrgrammer/grimoire-sub000/internal/config"
	"github.com/purrgrammer/grimoire-sub000/internal/nostr"
	"github.com/purrgrammer/grimoire-sub000/internal/resolver"
	"github.com/purrgrammer/grimoire-sub000/internal/spell"
)

var version = "dev"

// app wires the shared services behind every command.
type app struct {
	settings *config.Settings
	resolver *resolver.Resolver
	pool     *RelayPool
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "grimoire",
		Short:         "Query nostr relays with a compact command language",
		Long:          "grimoire compiles compact query commands into NIP-01 filters,\nruns them against one or more relays, and streams matching events\nas JSON lines. Queries can be saved as named spells and recast later.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newReqCmd(a),
		newCountCmd(a),
		newSpellCmd(a),
		newVersionCmd(),
	)

	return root
}

func newReqCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:                "req [query...]",
		Short:              "Subscribe to events matching a query",
		Example:            "  grimoire req -k 1,3 -a npub1... -t nostr --since 1h relay.damus.io",
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCommand(cmd.Context(), spell.QueryReq, args)
		},
	}
}

func newCountCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:                "count [query...]",
		Short:              "Count events matching a query (NIP-45)",
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCommand(cmd.Context(), spell.QueryCount, args)
		},
	}
}

func newSpellCmd(a *app) *cobra.Command {
	spellCmd := &cobra.Command{
		Use:   "spell",
		Short: "Manage saved queries",
	}

	save := &cobra.Command{
		Use:                "save <name> [req|count] [query...]",
		Short:              "Save a query under a name",
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 2 {
				return fmt.Errorf("usage: spell save <name> [req|count] <query...>")
			}
			name, rest := args[0], args[1:]

			qt := spell.QueryReq
			switch rest[0] {
			case "req":
				rest = rest[1:]
			case "count":
				qt = spell.QueryCount
				rest = rest[1:]
			}

			q := spell.Compile(rest)
			if !q.Filter.HasConstraints() {
				return fmt.Errorf("spell has no constraints")
			}

			book, err := spell.LoadSpellbook(a.settings.SpellbookPath)
			if err != nil {
				return err
			}
			book.Put(spell.Spell{
				Name:      name,
				Type:      string(qt),
				Command:   spell.BuildCommand(q),
				CreatedAt: time.Now().Unix(),
			})
			if err := book.Save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved spell %q\n", name)
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List saved spells",
		RunE: func(cmd *cobra.Command, args []string) error {
			book, err := spell.LoadSpellbook(a.settings.SpellbookPath)
			if err != nil {
				return err
			}
			for _, s := range book.List() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", s.Name, s.Type, s.Command)
			}
			return nil
		},
	}

	cast := &cobra.Command{
		Use:   "cast <name>",
		Short: "Run a saved spell",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			book, err := spell.LoadSpellbook(a.settings.SpellbookPath)
			if err != nil {
				return err
			}
			s, ok := book.Get(args[0])
			if !ok {
				return fmt.Errorf("no spell named %q", args[0])
			}
			qt, q, err := s.Decode()
			if err != nil {
				return err
			}
			return a.execute(cmd.Context(), qt, q)
		},
	}

	rm := &cobra.Command{
		Use:   "rm <name>",
		Short: "Delete a saved spell",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			book, err := spell.LoadSpellbook(a.settings.SpellbookPath)
			if err != nil {
				return err
			}
			if !book.Remove(args[0]) {
				return fmt.Errorf("no spell named %q", args[0])
			}
			if err := book.Save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed spell %q\n", args[0])
			return nil
		},
	}

	spellCmd.AddCommand(save, list, cast, rm)
	return spellCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "grimoire", version)
		},
	}
}

// runCommand compiles raw tokens and executes them.
func (a *app) runCommand(ctx context.Context, qt spell.QueryType, tokens []string) error {
	return a.execute(ctx, qt, spell.Compile(tokens))
}

// execute resolves, validates and runs one compiled query.
func (a *app) execute(ctx context.Context, qt spell.QueryType, q spell.CompiledQuery) error {
	if q.HasPendingResolution() || q.NeedsAccount {
		q = a.resolver.Merge(ctx, q, a.account())
	}
	if q.NeedsAccount {
		return fmt.Errorf("query uses $me or $contacts but no account_pubkey is configured")
	}
	if !q.Filter.HasConstraints() {
		return fmt.Errorf("query has no constraints; refusing to ask relays for everything")
	}

	if len(q.Relays) == 0 {
		for _, relay := range a.settings.DefaultRelays {
			if normalized := nostr.NormalizeRelayURL(relay); normalized != "" {
				q.Relays = append(q.Relays, normalized)
			}
		}
		slog.Debug("no relays in query, using defaults", "relays", q.Relays)
	}

	runner := NewRunner(a.pool, os.Stdout, os.Stderr, isTerminal(os.Stderr))
	result, err := runner.Run(ctx, qt, q, a.settings.QueryTimeout)
	if err != nil {
		return err
	}

	if qt == spell.QueryCount {
		fmt.Println(result.TotalCount)
	}
	return nil
}

// account builds the alias-resolution snapshot from configuration. npub and
// hex forms are both accepted.
func (a *app) account() *resolver.Account {
	raw := strings.TrimSpace(a.settings.AccountPubkey)
	if raw == "" {
		return nil
	}
	pv := spell.ClassifyPubkeyValue(raw)
	if pv.Kind != spell.PubkeyHex {
		slog.Warn("account_pubkey is not a valid pubkey, ignoring", "value", raw)
		return nil
	}

	acct := &resolver.Account{Pubkey: pv.Value}
	for _, contact := range a.settings.Contacts {
		cv := spell.ClassifyPubkeyValue(strings.TrimSpace(contact))
		if cv.Kind == spell.PubkeyHex {
			acct.Contacts = append(acct.Contacts, cv.Value)
		}
	}
	return acct
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
